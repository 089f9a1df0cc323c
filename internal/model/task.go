package model

import "time"

const (
	FrequencyOnce   = "once"
	FrequencyDaily  = "daily"
	FrequencyWeekly = "weekly"
)

type Task struct {
	ID        int64     `json:"id"`
	FamilyID  int64     `json:"family_id"`
	Title     string    `json:"title"`
	Points    int       `json:"points"`
	MaxPerDay int       `json:"max_per_day"`
	Frequency string    `json:"frequency"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskCompletion is append-only: rows are never updated or deleted.
type TaskCompletion struct {
	ID          int64     `json:"id"`
	MemberID    int64     `json:"member_id"`
	TaskID      int64     `json:"task_id"`
	CompletedAt time.Time `json:"completed_at"`
	PhotoBefore string    `json:"photo_before,omitempty"`
	PhotoAfter  string    `json:"photo_after,omitempty"`
}
