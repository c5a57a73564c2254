package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/models"
)

// CreateClientRequest is the body of POST /api/admin/clients
type CreateClientRequest struct {
	Name       string `json:"name" validate:"required,max=200"`
	Email      string `json:"email" validate:"omitempty,email"`
	DocumentID string `json:"document_id" validate:"required,max=64"`
	Phone      string `json:"phone" validate:"max=32"`
	// CreateAccess provisions a portal account right away
	CreateAccess bool `json:"createAccess"`
	SendEmail    bool `json:"sendEmail"`
}

// UpdateClientRequest is the body of PUT /api/admin/clients/{id}. Absent fields are
// unchanged; an empty email or phone clears it.
type UpdateClientRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=200"`
	Email *string `json:"email"`
	Phone *string `json:"phone" validate:"omitempty,max=32"`
}

// AccessStatus reports what happened to the access account of a created client
type AccessStatus string

const (
	AccessNotRequested AccessStatus = "not_requested"
	AccessNoEmail      AccessStatus = "skipped_no_email"
	AccessCreated      AccessStatus = "created"
	AccessFailed       AccessStatus = "failed"
)

// AccessOutcome is the access part of a create-client response
type AccessOutcome struct {
	Status    AccessStatus `json:"status"`
	AccountID string       `json:"accountId,omitempty"`
	EmailSent bool         `json:"emailSent"`
	Error     string       `json:"error,omitempty"`
}

// CreateClientResponse is returned by POST /api/admin/clients
type CreateClientResponse struct {
	Client *models.Client `json:"client"`
	Access AccessOutcome  `json:"access"`
}

// CreatePolicyRequest is the body of POST /api/admin/policies
type CreatePolicyRequest struct {
	ClientID     int64  `json:"client_id" validate:"required,gt=0"`
	PolicyNumber string `json:"policy_number" validate:"required,max=64"`
	Insurer      string `json:"insurer" validate:"required,max=120"`
	Line         string `json:"line" validate:"required,oneof=auto home life health other"`
	Coverage     string `json:"coverage" validate:"max=2000"`
	Premium      string `json:"premium" validate:"omitempty,numeric"`
	Currency     string `json:"currency" validate:"required,len=3,alpha"`
	StartDate    string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate      string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// Policy builds the policy described by the request
func (req *CreatePolicyRequest) Policy() (*models.Policy, error) {
	start, end, err := parseDates(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	premium := req.Premium
	if premium == "" {
		premium = "0"
	}
	return &models.Policy{
		ClientID:     req.ClientID,
		PolicyNumber: strings.TrimSpace(req.PolicyNumber),
		Insurer:      strings.TrimSpace(req.Insurer),
		Line:         models.Line(req.Line),
		Coverage:     req.Coverage,
		Premium:      premium,
		Currency:     strings.ToUpper(req.Currency),
		StartDate:    start,
		EndDate:      end,
	}, nil
}

// RenewPolicyRequest is the body of POST /api/admin/policies/{id}/renew. Omitted terms are
// copied from the renewed policy and the start date defaults to its end date.
type RenewPolicyRequest struct {
	PolicyNumber string `json:"policy_number" validate:"required,max=64"`
	StartDate    string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate      string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Insurer      string `json:"insurer" validate:"max=120"`
	Coverage     string `json:"coverage" validate:"max=2000"`
	Premium      string `json:"premium" validate:"omitempty,numeric"`
	Currency     string `json:"currency" validate:"omitempty,len=3,alpha"`
}

// Policy builds the renewal described by the request
func (req *RenewPolicyRequest) Policy() (*models.Policy, error) {
	start, end, err := parseDates(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	return &models.Policy{
		PolicyNumber: strings.TrimSpace(req.PolicyNumber),
		Insurer:      strings.TrimSpace(req.Insurer),
		Coverage:     req.Coverage,
		Premium:      req.Premium,
		Currency:     strings.ToUpper(req.Currency),
		StartDate:    start,
		EndDate:      end,
	}, nil
}

// parseDates parses YYYY-MM-DD dates; an empty start stays zero
func parseDates(startStr, endStr string) (start, end time.Time, err error) {
	if startStr != "" {
		if start, err = time.Parse(models.DateLayout, startStr); err != nil {
			return start, end, fmt.Errorf("invalid start_date: %w", err)
		}
	}
	if end, err = time.Parse(models.DateLayout, endStr); err != nil {
		return start, end, fmt.Errorf("invalid end_date: %w", err)
	}
	return start, end, nil
}

// DownloadResponse carries a presigned document URL
type DownloadResponse struct {
	URL       string `json:"url"`
	FileName  string `json:"file_name"`
	ExpiresIn int    `json:"expires_in"`
}

// MeResponse is returned by GET /api/me
type MeResponse struct {
	AccountID          string         `json:"account_id"`
	Email              string         `json:"email,omitempty"`
	Role               models.Role    `json:"role"`
	MustChangePassword bool           `json:"must_change_password"`
	Client             *models.Client `json:"client,omitempty"`
}
