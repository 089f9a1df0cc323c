package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/earnit-app/earnit/internal/model"
	"github.com/earnit-app/earnit/internal/points"
)

// LedgerStore owns the four point-affecting tables: task completions, bonus
// points, purchases, and reward requests. All rows are append-only except the
// one-way status column on reward requests.
type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// --- Balance aggregation ---

// Approved requests are excluded: their purchase row carries the cost.
// Rejected requests stay in the committed sum, exactly offset by their refund
// bonus, so a rejection restores the balance instead of double-crediting it.
const summarySQL = `
SELECT
    COALESCE((SELECT SUM(t.points)
              FROM task_completions tc JOIN tasks t ON t.id = tc.task_id
              WHERE tc.member_id = ?), 0)
  + COALESCE((SELECT SUM(points) FROM bonus_points WHERE member_id = ?), 0),
    COALESCE((SELECT SUM(cost) FROM purchases WHERE member_id = ?), 0)
  + COALESCE((SELECT SUM(points_deducted) FROM reward_requests
              WHERE member_id = ? AND status != 'approved'), 0)`

// Summary computes the member's account state. This is the only balance
// computation in the codebase; redemption and goal checks reuse it through
// summaryIn so there is exactly one formula.
func (s *LedgerStore) Summary(memberID int64) (points.Summary, error) {
	return summaryIn(s.db, memberID)
}

func summaryIn(q dbtx, memberID int64) (points.Summary, error) {
	var earned, committed int
	err := q.QueryRow(summarySQL, memberID, memberID, memberID, memberID).Scan(&earned, &committed)
	if err != nil {
		return points.Summary{}, fmt.Errorf("summary: %w", err)
	}
	return points.NewSummary(earned, committed), nil
}

// --- Task completions ---

const completionCols = `id, member_id, task_id, completed_at, photo_before, photo_after`

func scanCompletion(scanner interface{ Scan(...any) error }) (*model.TaskCompletion, error) {
	var c model.TaskCompletion
	err := scanner.Scan(&c.ID, &c.MemberID, &c.TaskID, &c.CompletedAt, &c.PhotoBefore, &c.PhotoAfter)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// RecordCompletion counts the member's completions of the task within the
// calendar day containing now and inserts a new one, all in one transaction.
// The (N+1)th attempt past the task's daily cap fails with LimitExceededError
// and writes nothing.
func (s *LedgerStore) RecordCompletion(memberID, taskID, familyID int64, now time.Time, photoBefore, photoAfter string) (*model.TaskCompletion, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var taskPoints, maxPerDay int
	err = tx.QueryRow(`SELECT points, max_per_day FROM tasks WHERE id = ? AND family_id = ?`, taskID, familyID).
		Scan(&taskPoints, &maxPerDay)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %d: %w", taskID, points.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	dayStart, dayEnd := points.DayBounds(now)
	var count int
	err = tx.QueryRow(
		`SELECT COUNT(*) FROM task_completions WHERE member_id = ? AND task_id = ? AND completed_at >= ? AND completed_at < ?`,
		memberID, taskID, dayStart.UTC(), dayEnd.UTC(),
	).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("count completions: %w", err)
	}
	if count >= maxPerDay {
		return nil, &points.LimitExceededError{TaskID: taskID, MaxPerDay: maxPerDay}
	}

	result, err := tx.Exec(
		`INSERT INTO task_completions (member_id, task_id, completed_at, photo_before, photo_after) VALUES (?, ?, ?, ?, ?)`,
		memberID, taskID, now.UTC(), photoBefore, photoAfter,
	)
	if err != nil {
		return nil, lockErr("insert completion", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	completion, err := scanCompletion(tx.QueryRow(`SELECT `+completionCols+` FROM task_completions WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, lockErr("commit completion", err)
	}
	return completion, nil
}

// ListCompletions returns the member's completion history, newest first.
func (s *LedgerStore) ListCompletions(memberID int64) ([]model.TaskCompletion, error) {
	rows, err := s.db.Query(
		`SELECT `+completionCols+` FROM task_completions WHERE member_id = ? ORDER BY completed_at DESC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var completions []model.TaskCompletion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		completions = append(completions, *c)
	}
	return completions, rows.Err()
}

// --- Bonus points ---

const bonusCols = `id, member_id, points, reason, given_by, request_id, created_at`

func scanBonus(scanner interface{ Scan(...any) error }) (*model.BonusGrant, error) {
	var b model.BonusGrant
	var givenBy, requestID sql.NullInt64

	err := scanner.Scan(&b.ID, &b.MemberID, &b.Points, &b.Reason, &givenBy, &requestID, &b.CreatedAt)
	if err != nil {
		return nil, err
	}

	if givenBy.Valid {
		b.GivenBy = &givenBy.Int64
	}
	if requestID.Valid {
		b.RequestID = &requestID.Int64
	}
	return &b, nil
}

// GrantBonus appends a signed point grant. Negative points are admin
// corrections and are allowed to push the balance below zero; redemptions
// simply fail until it recovers.
func (s *LedgerStore) GrantBonus(memberID int64, pts int, reason string, givenBy int64) (*model.BonusGrant, error) {
	result, err := s.db.Exec(
		`INSERT INTO bonus_points (member_id, points, reason, given_by) VALUES (?, ?, ?, ?)`,
		memberID, pts, reason, givenBy,
	)
	if err != nil {
		return nil, lockErr("insert bonus", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	b, err := scanBonus(s.db.QueryRow(`SELECT ` + bonusCols + ` FROM bonus_points WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("get bonus: %w", err)
	}
	return b, nil
}

// ListBonuses returns the member's bonus history, newest first.
func (s *LedgerStore) ListBonuses(memberID int64) ([]model.BonusGrant, error) {
	rows, err := s.db.Query(
		`SELECT `+bonusCols+` FROM bonus_points WHERE member_id = ? ORDER BY created_at DESC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bonuses: %w", err)
	}
	defer rows.Close()

	var bonuses []model.BonusGrant
	for rows.Next() {
		b, err := scanBonus(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bonus: %w", err)
		}
		bonuses = append(bonuses, *b)
	}
	return bonuses, rows.Err()
}

// --- Purchases ---

const purchaseCols = `id, member_id, reward_id, request_id, cost, created_at`

func scanPurchase(scanner interface{ Scan(...any) error }) (*model.Purchase, error) {
	var p model.Purchase
	var requestID sql.NullInt64

	err := scanner.Scan(&p.ID, &p.MemberID, &p.RewardID, &requestID, &p.Cost, &p.CreatedAt)
	if err != nil {
		return nil, err
	}

	if requestID.Valid {
		p.RequestID = &requestID.Int64
	}
	return &p, nil
}

// ListPurchases returns the member's purchase history, newest first.
func (s *LedgerStore) ListPurchases(memberID int64) ([]model.Purchase, error) {
	rows, err := s.db.Query(
		`SELECT `+purchaseCols+` FROM purchases WHERE member_id = ? ORDER BY created_at DESC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []model.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		purchases = append(purchases, *p)
	}
	return purchases, rows.Err()
}

// --- Reward requests ---

const requestCols = `id, member_id, reward_id, points_deducted, status, requested_at, resolved_at, admin_id`

func scanRequest(scanner interface{ Scan(...any) error }) (*model.RewardRequest, error) {
	var r model.RewardRequest
	var resolvedAt sql.NullTime
	var adminID sql.NullInt64

	err := scanner.Scan(&r.ID, &r.MemberID, &r.RewardID, &r.PointsDeducted, &r.Status, &r.RequestedAt, &resolvedAt, &adminID)
	if err != nil {
		return nil, err
	}

	if resolvedAt.Valid {
		r.ResolvedAt = &resolvedAt.Time
	}
	if adminID.Valid {
		r.AdminID = &adminID.Int64
	}
	return &r, nil
}

func getRequest(q dbtx, id int64) (*model.RewardRequest, error) {
	r, err := scanRequest(q.QueryRow(`SELECT `+requestCols+` FROM reward_requests WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return r, nil
}

func (s *LedgerStore) GetRequest(id int64) (*model.RewardRequest, error) {
	return getRequest(s.db, id)
}

// ListPendingRequests returns all pending requests for the family, newest
// first, for the admin notification queue.
func (s *LedgerStore) ListPendingRequests(familyID int64) ([]model.RewardRequest, error) {
	rows, err := s.db.Query(
		`SELECT r.id, r.member_id, r.reward_id, r.points_deducted, r.status, r.requested_at, r.resolved_at, r.admin_id
		 FROM reward_requests r JOIN members m ON m.id = r.member_id
		 WHERE m.family_id = ? AND r.status = 'pending'
		 ORDER BY r.requested_at DESC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	defer rows.Close()

	var requests []model.RewardRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

// --- Redemption ---

// RedemptionResult is the outcome of a redemption attempt: a direct purchase
// when the reward needs no approval, otherwise a pending request.
type RedemptionResult struct {
	Purchase *model.Purchase      `json:"purchase,omitempty"`
	Request  *model.RewardRequest `json:"request,omitempty"`
}

// RequestRedemption checks affordability and cooldown, then either creates a
// purchase (requires_approval = false) or a pending reward request. The
// balance read and the insert share one transaction so two concurrent
// redemptions cannot jointly overspend.
func (s *LedgerStore) RequestRedemption(memberID, rewardID, familyID int64, now time.Time) (*RedemptionResult, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var cost, cooldownDays int
	var requiresApproval bool
	err = tx.QueryRow(
		`SELECT cost, requires_approval, cooldown_days FROM rewards WHERE id = ? AND family_id = ?`,
		rewardID, familyID,
	).Scan(&cost, &requiresApproval, &cooldownDays)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("reward %d: %w", rewardID, points.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}

	summary, err := summaryIn(tx, memberID)
	if err != nil {
		return nil, err
	}
	if cost > summary.Balance {
		return nil, &points.InsufficientBalanceError{Cost: cost, Balance: summary.Balance}
	}

	if cooldownDays > 0 {
		last, err := lastRedemptionActivity(tx, memberID, rewardID)
		if err != nil {
			return nil, err
		}
		if last != nil {
			end := points.CooldownEnd(*last, cooldownDays)
			if now.UTC().Before(end) {
				return nil, &points.CooldownActiveError{RewardID: rewardID, Until: end, Remaining: end.Sub(now.UTC())}
			}
		}
	}

	result := &RedemptionResult{}
	if requiresApproval {
		res, err := tx.Exec(
			`INSERT INTO reward_requests (member_id, reward_id, points_deducted, status, requested_at) VALUES (?, ?, ?, 'pending', ?)`,
			memberID, rewardID, cost, now.UTC(),
		)
		if err != nil {
			return nil, lockErr("insert request", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		result.Request, err = getRequest(tx, id)
		if err != nil {
			return nil, err
		}
	} else {
		res, err := tx.Exec(
			`INSERT INTO purchases (member_id, reward_id, cost, created_at) VALUES (?, ?, ?, ?)`,
			memberID, rewardID, cost, now.UTC(),
		)
		if err != nil {
			return nil, lockErr("insert purchase", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		result.Purchase, err = scanPurchase(tx.QueryRow(`SELECT `+purchaseCols+` FROM purchases WHERE id = ?`, id))
		if err != nil {
			return nil, fmt.Errorf("get purchase: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, lockErr("commit redemption", err)
	}
	return result, nil
}

// lastRedemptionActivity finds the most recent purchase or non-rejected
// request for the member/reward pair; the cooldown window starts there.
// Rejected requests do not count: the points came back, so no cooldown.
func lastRedemptionActivity(q dbtx, memberID, rewardID int64) (*time.Time, error) {
	var last *time.Time

	var purchasedAt time.Time
	err := q.QueryRow(
		`SELECT created_at FROM purchases WHERE member_id = ? AND reward_id = ? ORDER BY created_at DESC LIMIT 1`,
		memberID, rewardID,
	).Scan(&purchasedAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("last purchase: %w", err)
	}
	if err == nil {
		last = &purchasedAt
	}

	var requestedAt time.Time
	err = q.QueryRow(
		`SELECT requested_at FROM reward_requests WHERE member_id = ? AND reward_id = ? AND status != 'rejected' ORDER BY requested_at DESC LIMIT 1`,
		memberID, rewardID,
	).Scan(&requestedAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("last request: %w", err)
	}
	if err == nil && (last == nil || requestedAt.After(*last)) {
		last = &requestedAt
	}

	return last, nil
}

// --- Approval / rejection ---

// ApproveRequest resolves a pending request into a purchase. The status flip
// is a compare-and-swap on status = 'pending'; replaying an approval on an
// already-approved request is a no-op that returns the purchase created by
// the first call.
func (s *LedgerStore) ApproveRequest(requestID, adminID int64, now time.Time) (*model.Purchase, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	req, err := getRequest(tx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("request %d: %w", requestID, points.ErrNotFound)
	}

	switch req.Status {
	case model.RequestApproved:
		return purchaseForRequest(tx, requestID)
	case model.RequestRejected:
		return nil, &points.InvalidStateError{Entity: "reward request", ID: requestID, State: "rejected"}
	}

	res, err := tx.Exec(
		`UPDATE reward_requests SET status = 'approved', resolved_at = ?, admin_id = ? WHERE id = ? AND status = 'pending'`,
		now.UTC(), adminID, requestID,
	)
	if err != nil {
		return nil, lockErr("approve request", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("request %d: %w", requestID, points.ErrConflict)
	}

	result, err := tx.Exec(
		`INSERT INTO purchases (member_id, reward_id, request_id, cost, created_at) VALUES (?, ?, ?, ?, ?)`,
		req.MemberID, req.RewardID, requestID, req.PointsDeducted, now.UTC(),
	)
	if err != nil {
		return nil, lockErr("insert purchase", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	purchase, err := scanPurchase(tx.QueryRow(`SELECT `+purchaseCols+` FROM purchases WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("get purchase: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, lockErr("commit approval", err)
	}
	return purchase, nil
}

func purchaseForRequest(q dbtx, requestID int64) (*model.Purchase, error) {
	p, err := scanPurchase(q.QueryRow(`SELECT `+purchaseCols+` FROM purchases WHERE request_id = ?`, requestID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("purchase for request %d: %w", requestID, points.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get purchase for request: %w", err)
	}
	return p, nil
}

// RejectRequest resolves a pending request with a refund: a bonus grant of
// +points_deducted restores the committed points. Replaying a rejection
// returns the refund created by the first call.
func (s *LedgerStore) RejectRequest(requestID, adminID int64, now time.Time) (*model.BonusGrant, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	req, err := getRequest(tx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("request %d: %w", requestID, points.ErrNotFound)
	}

	switch req.Status {
	case model.RequestRejected:
		return refundForRequest(tx, requestID)
	case model.RequestApproved:
		return nil, &points.InvalidStateError{Entity: "reward request", ID: requestID, State: "approved"}
	}

	res, err := tx.Exec(
		`UPDATE reward_requests SET status = 'rejected', resolved_at = ?, admin_id = ? WHERE id = ? AND status = 'pending'`,
		now.UTC(), adminID, requestID,
	)
	if err != nil {
		return nil, lockErr("reject request", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("request %d: %w", requestID, points.ErrConflict)
	}

	var rewardName string
	if err := tx.QueryRow(`SELECT name FROM rewards WHERE id = ?`, req.RewardID).Scan(&rewardName); err != nil {
		return nil, fmt.Errorf("get reward name: %w", err)
	}

	result, err := tx.Exec(
		`INSERT INTO bonus_points (member_id, points, reason, given_by, request_id) VALUES (?, ?, ?, ?, ?)`,
		req.MemberID, req.PointsDeducted, fmt.Sprintf("Refund: request for %q rejected", rewardName), adminID, requestID,
	)
	if err != nil {
		return nil, lockErr("insert refund", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	refund, err := scanBonus(tx.QueryRow(`SELECT ` + bonusCols + ` FROM bonus_points WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("get refund: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, lockErr("commit rejection", err)
	}
	return refund, nil
}

func refundForRequest(q dbtx, requestID int64) (*model.BonusGrant, error) {
	b, err := scanBonus(q.QueryRow(`SELECT `+bonusCols+` FROM bonus_points WHERE request_id = ?`, requestID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("refund for request %d: %w", requestID, points.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get refund for request: %w", err)
	}
	return b, nil
}
