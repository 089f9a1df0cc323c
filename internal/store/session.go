package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/earnit-app/earnit/internal/model"
	"github.com/earnit-app/earnit/internal/points"
)

type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Create issues an opaque session token for the member.
func (s *SessionStore) Create(memberID int64, ttl time.Duration, now time.Time) (*model.Session, error) {
	token := uuid.NewString()
	result, err := s.db.Exec(
		`INSERT INTO sessions (token, member_id, expires_at) VALUES (?, ?, ?)`,
		token, memberID, now.Add(ttl).UTC(),
	)
	if err != nil {
		return nil, lockErr("insert session", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	var session model.Session
	err = s.db.QueryRow(`SELECT id, token, member_id, expires_at, created_at FROM sessions WHERE id = ?`, id).
		Scan(&session.ID, &session.Token, &session.MemberID, &session.ExpiresAt, &session.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}

// GetMember resolves a token to its member, rejecting expired sessions.
func (s *SessionStore) GetMember(token string, now time.Time) (*model.Member, error) {
	m, err := scanMember(s.db.QueryRow(
		`SELECT m.id, m.family_id, m.display_name, m.role, m.photo_url, m.pin IS NOT NULL, m.created_at, m.updated_at
		 FROM sessions s JOIN members m ON m.id = s.member_id
		 WHERE s.token = ? AND s.expires_at > ?`,
		token, now.UTC(),
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session: %w", points.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session member: %w", err)
	}
	return m, nil
}

func (s *SessionStore) Delete(token string) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return lockErr("delete session", err)
	}
	return nil
}

// DeleteExpired prunes stale sessions; the server runs this on a ticker.
func (s *SessionStore) DeleteExpired(now time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, lockErr("delete expired sessions", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
