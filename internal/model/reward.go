package model

import "time"

type Reward struct {
	ID               int64     `json:"id"`
	FamilyID         int64     `json:"family_id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	Cost             int       `json:"cost"`
	RequiresApproval bool      `json:"requires_approval"`
	CooldownDays     int       `json:"cooldown_days"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Purchase is a finalized, irreversible spend. Append-only.
type Purchase struct {
	ID        int64     `json:"id"`
	MemberID  int64     `json:"member_id"`
	RewardID  int64     `json:"reward_id"`
	RequestID *int64    `json:"request_id,omitempty"`
	Cost      int       `json:"cost"`
	CreatedAt time.Time `json:"created_at"`
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// RewardRequest is an approval-gated redemption. Status moves one way:
// pending -> approved or pending -> rejected, both terminal.
type RewardRequest struct {
	ID             int64         `json:"id"`
	MemberID       int64         `json:"member_id"`
	RewardID       int64         `json:"reward_id"`
	PointsDeducted int           `json:"points_deducted"`
	Status         RequestStatus `json:"status"`
	RequestedAt    time.Time     `json:"requested_at"`
	ResolvedAt     *time.Time    `json:"resolved_at,omitempty"`
	AdminID        *int64        `json:"admin_id,omitempty"`
}

func (r *RewardRequest) Terminal() bool {
	return r.Status == RequestApproved || r.Status == RequestRejected
}
