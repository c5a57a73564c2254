package identity

import "time"

// Account is a user account held by the identity provider
type Account struct {
	ID               string                 `json:"id"`
	Email            string                 `json:"email"`
	CreatedAt        time.Time              `json:"created_at"`
	EmailConfirmedAt *time.Time             `json:"email_confirmed_at,omitempty"`
	UserMetadata     map[string]interface{} `json:"user_metadata,omitempty"`
}

// CreateAccountRequest is the body of the admin account-creation call
type CreateAccountRequest struct {
	Email        string                 `json:"email"`
	Password     string                 `json:"password"`
	EmailConfirm bool                   `json:"email_confirm"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
}

type listAccountsResponse struct {
	Users []Account `json:"users"`
}
