package models

import (
	"errors"
	"time"
)

// PolicyStatus is the lifecycle state of a policy
type PolicyStatus string

const (
	PolicyActive    PolicyStatus = "active"
	PolicyExpired   PolicyStatus = "expired"
	PolicyCancelled PolicyStatus = "cancelled"
)

// IsValid checks if the status is a known PolicyStatus
func (s PolicyStatus) IsValid() bool {
	switch s {
	case PolicyActive, PolicyExpired, PolicyCancelled:
		return true
	}
	return false
}

// Line of business a policy belongs to
type Line string

const (
	LineAuto   Line = "auto"
	LineHome   Line = "home"
	LineLife   Line = "life"
	LineHealth Line = "health"
	LineOther  Line = "other"
)

// DateLayout is the wire and column format of policy dates
const DateLayout = "2006-01-02"

// Policy is an insurance policy held by a client
type Policy struct {
	ID           string       `json:"id"`
	ClientID     int64        `json:"client_id"`
	PolicyNumber string       `json:"policy_number"`
	Insurer      string       `json:"insurer"`
	Line         Line         `json:"line"`
	Coverage     string       `json:"coverage,omitempty"`
	Premium      string       `json:"premium"`
	Currency     string       `json:"currency"`
	StartDate    time.Time    `json:"start_date"`
	EndDate      time.Time    `json:"end_date"`
	Status       PolicyStatus `json:"status"`
	RenewedFrom  *string      `json:"renewed_from,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Lapsed reports whether the policy ended before the day of now
func (p *Policy) Lapsed(now time.Time) bool {
	return p.EndDate.Before(Day(now))
}

// ErrInvalidDates is returned when a policy does not end after it starts
var ErrInvalidDates = errors.New("end date must be after start date")

// ValidateDates checks that the policy ends after it starts
func (p *Policy) ValidateDates() error {
	if !p.EndDate.After(p.StartDate) {
		return ErrInvalidDates
	}
	return nil
}

// InheritFrom prepares p as the renewal of prev: it belongs to the same client, starts
// when prev ends unless a start was given, and copies the commercial terms left blank.
func (p *Policy) InheritFrom(prev *Policy) {
	p.ClientID = prev.ClientID
	id := prev.ID
	p.RenewedFrom = &id
	p.Status = PolicyActive
	if p.StartDate.IsZero() {
		p.StartDate = prev.EndDate
	}
	if p.Insurer == "" {
		p.Insurer = prev.Insurer
	}
	if p.Line == "" {
		p.Line = prev.Line
	}
	if p.Coverage == "" {
		p.Coverage = prev.Coverage
	}
	if p.Premium == "" {
		p.Premium = prev.Premium
	}
	if p.Currency == "" {
		p.Currency = prev.Currency
	}
}

// Day truncates t to midnight UTC
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PolicyFilter narrows policy listings. Zero values mean no constraint.
type PolicyFilter struct {
	ClientID           int64
	Status             PolicyStatus
	ExpiringWithinDays int
}

// Document is a file attached to a policy, stored in the document bucket under ObjectKey
type Document struct {
	ID          string    `json:"id"`
	PolicyID    string    `json:"policy_id"`
	ObjectKey   string    `json:"-"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
