package model

import "time"

// Session maps an opaque token to a member. Token issuance (login) is handled
// by the external auth layer; the server only validates tokens against this
// table.
type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	MemberID  int64     `json:"member_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Invite is a pre-generated family invite code. Codes are produced by an
// external flow; accepting one attaches the member to the family and consumes
// the row.
type Invite struct {
	ID        int64     `json:"id"`
	FamilyID  int64     `json:"family_id"`
	Code      string    `json:"code"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
