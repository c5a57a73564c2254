package models

import (
	"regexp"
	"strings"
	"time"
)

// Client is an insured party managed by the portal's administrators
type Client struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	DocumentID string    `json:"document_id"`
	Phone      string    `json:"phone,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ClientUpdate carries the editable profile fields of a client. Nil fields are left unchanged.
type ClientUpdate struct {
	Name  *string
	Email *string
	Phone *string
}

var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail trims and lower-cases an address for matching
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsEligibleEmail reports whether email looks like local@domain.tld
func IsEligibleEmail(email string) bool {
	return emailShape.MatchString(strings.TrimSpace(email))
}

// HasEligibleEmail reports whether the client can be given portal access
func (c *Client) HasEligibleEmail() bool {
	return c.Email != "" && IsEligibleEmail(c.Email)
}
