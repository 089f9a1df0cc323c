package store

import (
	"errors"
	"testing"
	"time"

	"github.com/earnit-app/earnit/internal/points"
)

func TestSessionLifecycle(t *testing.T) {
	db := newTestDB(t)
	_, _, kid := seedFamily(t, db)

	sessions := NewSessionStore(db)

	session, err := sessions.Create(kid.ID, 24*time.Hour, base)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.Token == "" {
		t.Fatal("empty token")
	}

	m, err := sessions.GetMember(session.Token, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m.ID != kid.ID {
		t.Errorf("member = %+v", m)
	}

	// Past the expiry the token stops resolving.
	if _, err := sessions.GetMember(session.Token, base.Add(25*time.Hour)); !errors.Is(err, points.ErrNotFound) {
		t.Errorf("expired session: got %v, want ErrNotFound", err)
	}

	if err := sessions.Delete(session.Token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := sessions.GetMember(session.Token, base.Add(time.Hour)); !errors.Is(err, points.ErrNotFound) {
		t.Errorf("deleted session: got %v, want ErrNotFound", err)
	}
}

func TestDeleteExpired(t *testing.T) {
	db := newTestDB(t)
	_, admin, kid := seedFamily(t, db)

	sessions := NewSessionStore(db)

	if _, err := sessions.Create(kid.ID, time.Hour, base); err != nil {
		t.Fatalf("create session: %v", err)
	}
	live, err := sessions.Create(admin.ID, 48*time.Hour, base)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	n, err := sessions.DeleteExpired(base.Add(2 * time.Hour))
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d sessions, want 1", n)
	}

	if _, err := sessions.GetMember(live.Token, base.Add(2*time.Hour)); err != nil {
		t.Errorf("live session pruned: %v", err)
	}
}
