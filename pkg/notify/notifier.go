// Package notify delivers temporary portal credentials through the backend
// platform's email function.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Credentials is the payload of a credential email
type Credentials struct {
	To                string `json:"to"`
	Name              string `json:"name"`
	TemporaryPassword string `json:"temporaryPassword"`
	LoginURL          string `json:"loginUrl"`
}

// Client invokes the notification function at {baseURL}/functions/v1/{function}
type Client struct {
	endpoint   string
	serviceKey string
	loginURL   string
	httpClient *http.Client
}

// NewClient creates a notification client. loginURL is included in every email.
func NewClient(baseURL, serviceKey, function, loginURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		endpoint:   strings.TrimRight(baseURL, "/") + "/functions/v1/" + url.PathEscape(function),
		serviceKey: serviceKey,
		loginURL:   loginURL,
		httpClient: httpClient,
	}
}

// SendCredentials emails a temporary password to a newly provisioned client
func (c *Client) SendCredentials(ctx context.Context, to, name, temporaryPassword string) error {
	payload, err := json.Marshal(Credentials{
		To:                to,
		Name:              name,
		TemporaryPassword: temporaryPassword,
		LoginURL:          c.loginURL,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notification request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notification function returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
