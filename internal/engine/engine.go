// Package engine composes the stores into the application's core operations.
// Every balance-raising operation is followed by a goal-progress check, so a
// goal notification appears on the first event that carries the balance over
// the target.
package engine

import (
	"log/slog"
	"time"

	"github.com/earnit-app/earnit/internal/model"
	"github.com/earnit-app/earnit/internal/points"
	"github.com/earnit-app/earnit/internal/store"
)

type Engine struct {
	ledger *store.LedgerStore
	goals  *store.GoalStore
	logger *slog.Logger
}

func New(ledger *store.LedgerStore, goals *store.GoalStore, logger *slog.Logger) *Engine {
	return &Engine{
		ledger: ledger,
		goals:  goals,
		logger: logger.With("component", "engine"),
	}
}

func (e *Engine) Summary(memberID int64) (points.Summary, error) {
	return e.ledger.Summary(memberID)
}

// checkGoal runs the goal-progress check off the member's current balance.
// Failures here are logged, not returned: the ledger write already committed
// and a missed notification resurfaces on the next check.
func (e *Engine) checkGoal(memberID int64, now time.Time) *model.GoalNotification {
	summary, err := e.ledger.Summary(memberID)
	if err != nil {
		e.logger.Error("goal check summary failed", "member_id", memberID, "error", err)
		return nil
	}
	n, err := e.goals.CheckProgress(memberID, summary.Balance, now)
	if err != nil {
		e.logger.Error("goal check failed", "member_id", memberID, "error", err)
		return nil
	}
	if n != nil {
		e.logger.Info("goal reached", "member_id", memberID, "notification_id", n.ID)
	}
	return n
}

// RecordCompletion appends a task completion, enforcing the task's daily cap.
func (e *Engine) RecordCompletion(memberID, taskID, familyID int64, now time.Time, photoBefore, photoAfter string) (*model.TaskCompletion, *model.GoalNotification, error) {
	completion, err := e.ledger.RecordCompletion(memberID, taskID, familyID, now, photoBefore, photoAfter)
	if err != nil {
		return nil, nil, err
	}
	return completion, e.checkGoal(memberID, now), nil
}

// GrantBonus appends a signed admin grant. Negative grants are penalties and
// may leave the balance negative.
func (e *Engine) GrantBonus(memberID int64, pts int, reason string, givenBy int64, now time.Time) (*model.BonusGrant, *model.GoalNotification, error) {
	if pts == 0 {
		return nil, nil, &points.ValidationError{Field: "points", Reason: "must not be zero"}
	}
	if reason == "" {
		return nil, nil, &points.ValidationError{Field: "reason", Reason: "must not be empty"}
	}
	grant, err := e.ledger.GrantBonus(memberID, pts, reason, givenBy)
	if err != nil {
		return nil, nil, err
	}
	return grant, e.checkGoal(memberID, now), nil
}

// RequestRedemption spends points on a reward, either directly or through a
// pending approval request. Spending never triggers a goal check.
func (e *Engine) RequestRedemption(memberID, rewardID, familyID int64, now time.Time) (*store.RedemptionResult, error) {
	return e.ledger.RequestRedemption(memberID, rewardID, familyID, now)
}

func (e *Engine) ApproveRequest(requestID, adminID int64, now time.Time) (*model.Purchase, error) {
	return e.ledger.ApproveRequest(requestID, adminID, now)
}

// RejectRequest refunds the held points, which can push the balance back over
// a goal target.
func (e *Engine) RejectRequest(requestID, adminID int64, now time.Time) (*model.BonusGrant, *model.GoalNotification, error) {
	refund, err := e.ledger.RejectRequest(requestID, adminID, now)
	if err != nil {
		return nil, nil, err
	}
	return refund, e.checkGoal(refund.MemberID, now), nil
}

// SetGoal creates or replaces the member's goal and immediately runs a
// progress check: a goal whose target the balance already meets (including a
// target of zero when the parents cover the full cost) notifies right away.
func (e *Engine) SetGoal(memberID int64, title string, totalCost, parentPercent int, photoURL, link string, now time.Time) (*model.Goal, *model.GoalNotification, error) {
	if title == "" {
		return nil, nil, &points.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if totalCost <= 0 {
		return nil, nil, &points.ValidationError{Field: "total_cost", Reason: "must be positive"}
	}
	if parentPercent < 0 || parentPercent > 100 {
		return nil, nil, &points.ValidationError{Field: "parent_percent", Reason: "must be between 0 and 100"}
	}
	goal, err := e.goals.Set(memberID, title, totalCost, parentPercent, photoURL, link)
	if err != nil {
		return nil, nil, err
	}
	return goal, e.checkGoal(memberID, now), nil
}

func (e *Engine) GetGoal(memberID int64) (*model.Goal, error) {
	return e.goals.Get(memberID)
}

func (e *Engine) ResolveGoalNotification(id int64) error {
	return e.goals.Resolve(id)
}

func (e *Engine) DismissGoalNotification(id int64) error {
	return e.goals.Dismiss(id)
}

// PendingNotifications is the admin queue: reward requests awaiting a decision
// and goal notifications awaiting resolution, each newest first.
type PendingNotifications struct {
	RewardRequests    []model.RewardRequest    `json:"reward_requests"`
	GoalNotifications []model.GoalNotification `json:"goal_notifications"`
}

func (e *Engine) ListPending(familyID int64) (*PendingNotifications, error) {
	requests, err := e.ledger.ListPendingRequests(familyID)
	if err != nil {
		return nil, err
	}
	notifications, err := e.goals.ListUnresolved(familyID)
	if err != nil {
		return nil, err
	}
	return &PendingNotifications{RewardRequests: requests, GoalNotifications: notifications}, nil
}
