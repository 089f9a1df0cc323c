package model

import "time"

const (
	RoleKid   = "kid"
	RoleAdmin = "admin"
)

type Family struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Member struct {
	ID          int64     `json:"id"`
	FamilyID    int64     `json:"family_id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	PhotoURL    string    `json:"photo_url"`
	HasPIN      bool      `json:"has_pin"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (m *Member) IsAdmin() bool { return m.Role == RoleAdmin }
