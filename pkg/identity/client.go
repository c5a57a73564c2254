package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultPageSize is the per_page used when listing accounts
	DefaultPageSize = 200
	// DefaultMaxPages bounds ListAllAccounts
	DefaultMaxPages = 10000
)

// Recorder observes admin API calls
type Recorder interface {
	RecordIdentityCall(operation string, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordIdentityCall(string, error) {}

// Client calls the identity provider's admin REST API with the service key
type Client struct {
	baseURL    string
	serviceKey string
	pageSize   int
	maxPages   int
	httpClient *http.Client
	recorder   Recorder
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default 30s-timeout client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPageSize sets the per_page used by ListAllAccounts
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithMaxPages bounds the number of pages ListAllAccounts fetches
func WithMaxPages(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// WithRecorder reports every call to r
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.recorder = r
		}
	}
}

// NewClient creates a client for the backend at baseURL
func NewClient(baseURL, serviceKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		pageSize:   DefaultPageSize,
		maxPages:   DefaultMaxPages,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		recorder:   nopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListAccounts fetches one page (1-based) of accounts
func (c *Client) ListAccounts(ctx context.Context, page, perPage int) ([]Account, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	var resp listAccountsResponse
	err := c.do(ctx, http.MethodGet, "/auth/v1/admin/users?"+q.Encode(), nil, &resp)
	c.recorder.RecordIdentityCall("list_accounts", err)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts page %d: %w", page, err)
	}
	return resp.Users, nil
}

// ListAllAccounts walks the pages in order and stops at the first page shorter than the page size.
// A page that starts with the previous page's first account, or running past the page bound,
// fails with ErrPagingStalled.
func (c *Client) ListAllAccounts(ctx context.Context) ([]Account, error) {
	var (
		all       []Account
		prevFirst string
	)
	for page := 1; page <= c.maxPages; page++ {
		accounts, err := c.ListAccounts(ctx, page, c.pageSize)
		if err != nil {
			return nil, err
		}
		if len(accounts) > 0 {
			if page > 1 && accounts[0].ID == prevFirst {
				return nil, fmt.Errorf("page %d repeats page %d: %w", page, page-1, ErrPagingStalled)
			}
			prevFirst = accounts[0].ID
		}
		all = append(all, accounts...)
		if len(accounts) < c.pageSize {
			return all, nil
		}
	}
	return nil, fmt.Errorf("more than %d pages of %d accounts: %w", c.maxPages, c.pageSize, ErrPagingStalled)
}

// CreateAccount creates an account. A duplicate email yields an error matching ErrAccountExists.
func (c *Client) CreateAccount(ctx context.Context, req CreateAccountRequest) (*Account, error) {
	var account Account
	err := c.do(ctx, http.MethodPost, "/auth/v1/admin/users", req, &account)
	c.recorder.RecordIdentityCall("create_account", err)
	if err != nil {
		return nil, fmt.Errorf("failed to create account for %s: %w", req.Email, err)
	}
	if account.ID == "" {
		return nil, fmt.Errorf("failed to create account for %s: response carried no id", req.Email)
	}
	return &account, nil
}

// DeleteAccount removes the account with the given id
func (c *Client) DeleteAccount(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodDelete, "/auth/v1/admin/users/"+url.PathEscape(id), nil, nil)
	c.recorder.RecordIdentityCall("delete_account", err)
	if err != nil {
		return fmt.Errorf("failed to delete account %s: %w", id, err)
	}
	return nil
}

// do performs an HTTP request and decodes the response.
func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		var eb errorBody
		if json.Unmarshal(respBody, &eb) == nil {
			if msg := eb.message(); msg != "" {
				apiErr.Message = msg
			}
			apiErr.Code = eb.ErrorCode
			if s, ok := eb.Code.(string); ok && apiErr.Code == "" {
				apiErr.Code = s
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
