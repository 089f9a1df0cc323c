package store

import (
	"database/sql"
	"testing"

	"github.com/earnit-app/earnit/internal/database"
	"github.com/earnit-app/earnit/internal/model"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedFamily creates a family with one admin and one kid and returns them.
func seedFamily(t *testing.T, db *sql.DB) (*model.Family, *model.Member, *model.Member) {
	t.Helper()

	members := NewMemberStore(db)
	family, err := members.CreateFamily("Testers")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	admin, err := members.Create(family.ID, "Alex", model.RoleAdmin, "")
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	kid, err := members.Create(family.ID, "Sam", model.RoleKid, "")
	if err != nil {
		t.Fatalf("create kid: %v", err)
	}
	return family, admin, kid
}
