package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrAccountExists is matched by an APIError rejecting a duplicate email
	ErrAccountExists = errors.New("identity: account already exists")
	// ErrAccountNotFound is matched by an APIError answering 404
	ErrAccountNotFound = errors.New("identity: account not found")
	// ErrPagingStalled is returned when the account listing does not advance
	ErrPagingStalled = errors.New("identity: account listing does not advance")
)

// APIError is a non-2xx answer from the identity provider's admin API
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity provider: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("identity provider: %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is match the package sentinels
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAccountExists:
		return e.isDuplicate()
	case ErrAccountNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

func (e *APIError) isDuplicate() bool {
	if e.Code == "email_exists" || e.Code == "user_already_exists" {
		return true
	}
	if e.StatusCode != http.StatusUnprocessableEntity && e.StatusCode != http.StatusConflict {
		return false
	}
	return strings.Contains(strings.ToLower(e.Message), "already been registered") ||
		strings.Contains(strings.ToLower(e.Message), "already exists")
}

// errorBody covers the error shapes the admin API has used across versions
type errorBody struct {
	Code             interface{} `json:"code"`
	ErrorCode        string      `json:"error_code"`
	Msg              string      `json:"msg"`
	Message          string      `json:"message"`
	Error            string      `json:"error"`
	ErrorDescription string      `json:"error_description"`
}

func (b errorBody) message() string {
	for _, s := range []string{b.Msg, b.Message, b.ErrorDescription, b.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}
