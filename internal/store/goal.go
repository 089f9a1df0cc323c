package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/earnit-app/earnit/internal/model"
	"github.com/earnit-app/earnit/internal/points"
)

// GoalStore owns goals and their completion notifications. A member has at
// most one goal row and at most one unresolved notification; the latter is
// enforced by a partial unique index on goal_notifications.
type GoalStore struct {
	db *sql.DB
}

func NewGoalStore(db *sql.DB) *GoalStore {
	return &GoalStore{db: db}
}

const goalCols = `id, member_id, title, total_cost, parent_percent, photo_url, link, created_at, updated_at`

func scanGoal(scanner interface{ Scan(...any) error }) (*model.Goal, error) {
	var g model.Goal
	err := scanner.Scan(&g.ID, &g.MemberID, &g.Title, &g.TotalCost, &g.ParentPercent, &g.PhotoURL, &g.Link, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *GoalStore) Get(memberID int64) (*model.Goal, error) {
	g, err := scanGoal(s.db.QueryRow(`SELECT `+goalCols+` FROM goals WHERE member_id = ?`, memberID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

// Set creates or replaces the member's goal. It fails with GoalPendingError
// while a completed goal still awaits admin resolution, so a kid cannot roll
// a fulfilled goal into a new one before the admin has seen it.
func (s *GoalStore) Set(memberID int64, title string, totalCost, parentPercent int, photoURL, link string) (*model.Goal, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var pendingID int64
	err = tx.QueryRow(`SELECT id FROM goal_notifications WHERE member_id = ? AND resolved = 0`, memberID).Scan(&pendingID)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("check pending notification: %w", err)
	}
	if err == nil {
		return nil, &points.GoalPendingError{NotificationID: pendingID}
	}

	_, err = tx.Exec(
		`INSERT INTO goals (member_id, title, total_cost, parent_percent, photo_url, link) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(member_id) DO UPDATE SET
		   title = excluded.title, total_cost = excluded.total_cost, parent_percent = excluded.parent_percent,
		   photo_url = excluded.photo_url, link = excluded.link, updated_at = CURRENT_TIMESTAMP`,
		memberID, title, totalCost, parentPercent, photoURL, link,
	)
	if err != nil {
		return nil, lockErr("upsert goal", err)
	}

	goal, err := scanGoal(tx.QueryRow(`SELECT `+goalCols+` FROM goals WHERE member_id = ?`, memberID))
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, lockErr("commit goal", err)
	}
	return goal, nil
}

const notificationCols = `id, member_id, goal_id, points_spent, message, resolved, created_at`

func scanNotification(scanner interface{ Scan(...any) error }) (*model.GoalNotification, error) {
	var n model.GoalNotification
	err := scanner.Scan(&n.ID, &n.MemberID, &n.GoalID, &n.PointsSpent, &n.Message, &n.Resolved, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// CheckProgress creates a completion notification when the member's balance
// has reached the goal target. The partial unique index makes the insert a
// no-op when an unresolved notification already exists, so calling this after
// every balance-affecting event yields exactly one notification per crossing.
// Returns the new notification, or nil when nothing happened.
func (s *GoalStore) CheckProgress(memberID int64, balance int, now time.Time) (*model.GoalNotification, error) {
	goal, err := s.Get(memberID)
	if err != nil {
		return nil, err
	}
	if goal == nil {
		return nil, nil
	}

	if balance < points.GoalTarget(goal.TotalCost, goal.ParentPercent) {
		return nil, nil
	}

	var name string
	if err := s.db.QueryRow(`SELECT display_name FROM members WHERE id = ?`, memberID).Scan(&name); err != nil {
		return nil, fmt.Errorf("get member name: %w", err)
	}

	result, err := s.db.Exec(
		`INSERT OR IGNORE INTO goal_notifications (member_id, goal_id, points_spent, message, created_at) VALUES (?, ?, ?, ?, ?)`,
		memberID, goal.ID, goal.TotalCost, fmt.Sprintf("%s reached the goal %q", name, goal.Title), now.UTC(),
	)
	if err != nil {
		return nil, lockErr("insert goal notification", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		// An unresolved notification already exists for this member.
		return nil, nil
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	notification, err := scanNotification(s.db.QueryRow(`SELECT `+notificationCols+` FROM goal_notifications WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return notification, nil
}

func (s *GoalStore) GetNotification(id int64) (*model.GoalNotification, error) {
	n, err := scanNotification(s.db.QueryRow(`SELECT `+notificationCols+` FROM goal_notifications WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

// Resolve marks the notification handled and clears the member's goal so a
// new one can be set. Resolving an already-resolved notification is a no-op.
func (s *GoalStore) Resolve(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	n, err := scanNotification(tx.QueryRow(`SELECT `+notificationCols+` FROM goal_notifications WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return fmt.Errorf("notification %d: %w", id, points.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get notification: %w", err)
	}
	if n.Resolved {
		return nil
	}

	if _, err := tx.Exec(`UPDATE goal_notifications SET resolved = 1 WHERE id = ?`, id); err != nil {
		return lockErr("resolve notification", err)
	}
	if _, err := tx.Exec(`DELETE FROM goals WHERE id = ?`, n.GoalID); err != nil {
		return lockErr("clear goal", err)
	}

	if err := tx.Commit(); err != nil {
		return lockErr("commit resolve", err)
	}
	return nil
}

// Dismiss marks the notification read without touching the goal or any
// ledger. The goal stays in place; if the balance still meets the target the
// next balance-affecting event will raise a fresh notification.
func (s *GoalStore) Dismiss(id int64) error {
	result, err := s.db.Exec(`UPDATE goal_notifications SET resolved = 1 WHERE id = ?`, id)
	if err != nil {
		return lockErr("dismiss notification", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("notification %d: %w", id, points.ErrNotFound)
	}
	return nil
}

// ListUnresolved returns the family's unresolved goal notifications, newest
// first.
func (s *GoalStore) ListUnresolved(familyID int64) ([]model.GoalNotification, error) {
	rows, err := s.db.Query(
		`SELECT n.id, n.member_id, n.goal_id, n.points_spent, n.message, n.resolved, n.created_at
		 FROM goal_notifications n JOIN members m ON m.id = n.member_id
		 WHERE m.family_id = ? AND n.resolved = 0
		 ORDER BY n.created_at DESC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list unresolved notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.GoalNotification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, *n)
	}
	return notifications, rows.Err()
}
