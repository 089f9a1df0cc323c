package model

import "time"

// Goal is a savings target. A member has at most one goal at a time; the kid
// portion of the cost is total_cost reduced by the percentage the parents pay.
type Goal struct {
	ID            int64     `json:"id"`
	MemberID      int64     `json:"member_id"`
	Title         string    `json:"title"`
	TotalCost     int       `json:"total_cost"`
	ParentPercent int       `json:"parent_percent"`
	PhotoURL      string    `json:"photo_url,omitempty"`
	Link          string    `json:"link,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// GoalNotification is created when a member's balance reaches the goal target.
// At most one unresolved notification exists per member, enforced by a partial
// unique index.
type GoalNotification struct {
	ID          int64     `json:"id"`
	MemberID    int64     `json:"member_id"`
	GoalID      int64     `json:"goal_id"`
	PointsSpent int       `json:"points_spent"`
	Message     string    `json:"message"`
	Resolved    bool      `json:"resolved"`
	CreatedAt   time.Time `json:"created_at"`
}
