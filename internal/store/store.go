// Package store persists the earnit entities in SQLite. Every point-affecting
// write happens inside a single transaction so the invariants (daily caps,
// non-negative balance, one resolution per request) hold under concurrent
// clients. Timestamps are normalized to UTC before binding so range
// comparisons stay consistent.
package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/earnit-app/earnit/internal/points"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx, letting the balance
// aggregation run standalone or inside a ledger transaction.
type dbtx interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// lockErr maps SQLite write contention onto the domain conflict error so
// callers see a retryable condition instead of a driver string.
func lockErr(op string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked") {
		return fmt.Errorf("%s: %w", op, points.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
