package model

import "time"

// BonusGrant records an arbitrary point grant or deduction. Points may be
// negative for admin corrections. Refunds from rejected reward requests are
// recorded here with RequestID set. Append-only.
type BonusGrant struct {
	ID        int64     `json:"id"`
	MemberID  int64     `json:"member_id"`
	Points    int       `json:"points"`
	Reason    string    `json:"reason"`
	GivenBy   *int64    `json:"given_by,omitempty"`
	RequestID *int64    `json:"request_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
