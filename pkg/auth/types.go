package auth

import (
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/models"
)

// Claims are the fields the portal reads from a verified caller token
type Claims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	// Role is the identity provider's role claim (e.g. "authenticated"), not the portal role
	Role string `json:"role"`
}

// AuthContext is the authenticated caller of a request. Profile is nil for accounts
// that verified but have no portal profile.
type AuthContext struct {
	AccountID string
	Email     string
	Profile   *models.Profile
}

// IsAdmin reports whether the caller holds the admin role
func (a *AuthContext) IsAdmin() bool {
	return a != nil && a.Profile.IsAdmin()
}

// HasRole reports whether the caller's profile has role
func (a *AuthContext) HasRole(role models.Role) bool {
	return a != nil && a.Profile != nil && a.Profile.Role == role
}

// ClientID returns the client the caller's profile is linked to
func (a *AuthContext) ClientID() (int64, bool) {
	if a == nil || a.Profile == nil || a.Profile.ClientID == nil {
		return 0, false
	}
	return *a.Profile.ClientID, true
}
