package store

import (
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/earnit-app/earnit/internal/model"
	"github.com/earnit-app/earnit/internal/points"
)

type MemberStore struct {
	db *sql.DB
}

func NewMemberStore(db *sql.DB) *MemberStore {
	return &MemberStore{db: db}
}

func (s *MemberStore) CreateFamily(name string) (*model.Family, error) {
	result, err := s.db.Exec(`INSERT INTO families (name) VALUES (?)`, name)
	if err != nil {
		return nil, lockErr("insert family", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetFamily(id)
}

func (s *MemberStore) GetFamily(id int64) (*model.Family, error) {
	var f model.Family
	err := s.db.QueryRow(`SELECT id, name, created_at FROM families WHERE id = ?`, id).
		Scan(&f.ID, &f.Name, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family: %w", err)
	}
	return &f, nil
}

// memberCols derives has_pin from the presence of a pin hash; the hash itself
// never leaves the store.
const memberCols = `id, family_id, display_name, role, photo_url, pin IS NOT NULL, created_at, updated_at`

func scanMember(scanner interface{ Scan(...any) error }) (*model.Member, error) {
	var m model.Member
	err := scanner.Scan(&m.ID, &m.FamilyID, &m.DisplayName, &m.Role, &m.PhotoURL, &m.HasPIN, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MemberStore) Create(familyID int64, displayName, role, photoURL string) (*model.Member, error) {
	if role != model.RoleKid && role != model.RoleAdmin {
		return nil, &points.ValidationError{Field: "role", Reason: "must be kid or admin"}
	}
	result, err := s.db.Exec(
		`INSERT INTO members (family_id, display_name, role, photo_url) VALUES (?, ?, ?, ?)`,
		familyID, displayName, role, photoURL,
	)
	if err != nil {
		return nil, lockErr("insert member", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.Get(id)
}

func (s *MemberStore) Get(id int64) (*model.Member, error) {
	m, err := scanMember(s.db.QueryRow(`SELECT `+memberCols+` FROM members WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *MemberStore) ListByFamily(familyID int64) ([]model.Member, error) {
	rows, err := s.db.Query(`SELECT `+memberCols+` FROM members WHERE family_id = ? ORDER BY created_at, id`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *MemberStore) Update(id int64, displayName, photoURL string) (*model.Member, error) {
	result, err := s.db.Exec(
		`UPDATE members SET display_name = ?, photo_url = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		displayName, photoURL, id,
	)
	if err != nil {
		return nil, lockErr("update member", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("member %d: %w", id, points.ErrNotFound)
	}
	return s.Get(id)
}

// SetPIN stores a bcrypt hash of the member's PIN. An empty pin clears it.
func (s *MemberStore) SetPIN(id int64, pin string) error {
	var hash any
	if pin != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash pin: %w", err)
		}
		hash = string(h)
	}
	result, err := s.db.Exec(`UPDATE members SET pin = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, hash, id)
	if err != nil {
		return lockErr("set pin", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("member %d: %w", id, points.ErrNotFound)
	}
	return nil
}

// VerifyPIN reports whether the pin matches. Members without a pin set always
// verify, so profiles stay open until a pin is chosen.
func (s *MemberStore) VerifyPIN(id int64, pin string) (bool, error) {
	var hash sql.NullString
	err := s.db.QueryRow(`SELECT pin FROM members WHERE id = ?`, id).Scan(&hash)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("member %d: %w", id, points.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("get pin: %w", err)
	}
	if !hash.Valid {
		return true, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(hash.String), []byte(pin)) == nil, nil
}

func (s *MemberStore) CreateInvite(familyID int64, code, role string, expiresAt time.Time) (*model.Invite, error) {
	if role != model.RoleKid && role != model.RoleAdmin {
		return nil, &points.ValidationError{Field: "role", Reason: "must be kid or admin"}
	}
	result, err := s.db.Exec(
		`INSERT INTO invites (family_id, code, role, expires_at) VALUES (?, ?, ?, ?)`,
		familyID, code, role, expiresAt.UTC(),
	)
	if err != nil {
		return nil, lockErr("insert invite", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	var inv model.Invite
	err = s.db.QueryRow(`SELECT id, family_id, code, role, expires_at, created_at FROM invites WHERE id = ?`, id).
		Scan(&inv.ID, &inv.FamilyID, &inv.Code, &inv.Role, &inv.ExpiresAt, &inv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get invite: %w", err)
	}
	return &inv, nil
}

// AcceptInvite creates a member in the invite's family and consumes the code.
// Both happen in one transaction so a code can only be used once.
func (s *MemberStore) AcceptInvite(code, displayName string, now time.Time) (*model.Member, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var inv model.Invite
	err = tx.QueryRow(`SELECT id, family_id, role, expires_at FROM invites WHERE code = ?`, code).
		Scan(&inv.ID, &inv.FamilyID, &inv.Role, &inv.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invite %q: %w", code, points.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get invite: %w", err)
	}
	if !now.Before(inv.ExpiresAt) {
		return nil, &points.ValidationError{Field: "code", Reason: "invite expired"}
	}

	result, err := tx.Exec(
		`INSERT INTO members (family_id, display_name, role) VALUES (?, ?, ?)`,
		inv.FamilyID, displayName, inv.Role,
	)
	if err != nil {
		return nil, lockErr("insert member", err)
	}
	memberID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM invites WHERE id = ?`, inv.ID); err != nil {
		return nil, lockErr("consume invite", err)
	}

	member, err := scanMember(tx.QueryRow(`SELECT `+memberCols+` FROM members WHERE id = ?`, memberID))
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, lockErr("commit invite", err)
	}
	return member, nil
}
