package models

import "time"

// Role of an access profile
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
)

// IsValid checks if the role is a known Role
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleClient
}

// Profile links an identity-provider account to the portal. Its ID is the account id.
// ClientID is nil for administrators; at most one profile references a given client.
type Profile struct {
	ID                 string    `json:"id"`
	ClientID           *int64    `json:"client_id,omitempty"`
	Role               Role      `json:"role"`
	MustChangePassword bool      `json:"must_change_password"`
	CreatedAt          time.Time `json:"created_at"`
}

// IsAdmin reports whether the profile has the admin role
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// NewClientProfile returns the profile granted to a client on first access
func NewClientProfile(accountID string, clientID int64) *Profile {
	id := clientID
	return &Profile{
		ID:                 accountID,
		ClientID:           &id,
		Role:               RoleClient,
		MustChangePassword: true,
	}
}
