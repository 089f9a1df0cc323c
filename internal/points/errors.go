package points

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for conditions that carry no extra data.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("concurrent update lost")
)

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// LimitExceededError is returned when a member hits a task's daily cap.
type LimitExceededError struct {
	TaskID    int64
	MaxPerDay int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("task %d already completed %d times today", e.TaskID, e.MaxPerDay)
}

// InsufficientBalanceError is returned when a redemption costs more than the
// member's current balance.
type InsufficientBalanceError struct {
	Cost    int
	Balance int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("reward costs %d points but balance is %d", e.Cost, e.Balance)
}

// CooldownActiveError is returned when a reward is requested again before its
// cooldown window has passed. Remaining is how long until the reward can be
// requested again, for user display.
type CooldownActiveError struct {
	RewardID  int64
	Until     time.Time
	Remaining time.Duration
}

func (e *CooldownActiveError) Error() string {
	return fmt.Sprintf("reward %d on cooldown for another %s", e.RewardID, e.Remaining.Round(time.Second))
}

// InvalidStateError reports a transition attempted on a request or goal that
// is not in the required state.
type InvalidStateError struct {
	Entity string
	ID     int64
	State  string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s %d is %s", e.Entity, e.ID, e.State)
}

// GoalPendingError is returned when a member tries to set a new goal while a
// completed goal still awaits admin resolution.
type GoalPendingError struct {
	NotificationID int64
}

func (e *GoalPendingError) Error() string {
	return fmt.Sprintf("goal completion %d awaits admin resolution", e.NotificationID)
}
