package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a uniqueness constraint
	ErrConflict = errors.New("conflict")
)

// ClientReader provides read access to clients
type ClientReader interface {
	ListClients(ctx context.Context) ([]*models.Client, error)
	GetClient(ctx context.Context, id int64) (*models.Client, error)
}

// ClientWriter provides write access to clients
type ClientWriter interface {
	CreateClient(ctx context.Context, client *models.Client) error
	UpdateClient(ctx context.Context, id int64, update models.ClientUpdate) (*models.Client, error)
}

// ProfileStore reads and writes access profiles
type ProfileStore interface {
	ListProfiles(ctx context.Context) ([]*models.Profile, error)
	GetProfile(ctx context.Context, accountID string) (*models.Profile, error)
	GetProfileByClient(ctx context.Context, clientID int64) (*models.Profile, error)
	InsertProfile(ctx context.Context, profile *models.Profile) error
}

// PolicyStore manages policies
type PolicyStore interface {
	CreatePolicy(ctx context.Context, policy *models.Policy) error
	GetPolicy(ctx context.Context, id string) (*models.Policy, error)
	ListPolicies(ctx context.Context, filter models.PolicyFilter) ([]*models.Policy, error)
	CancelPolicy(ctx context.Context, id string) (*models.Policy, error)
	// RenewPolicy inserts renewal as the successor of policy id in one transaction
	RenewPolicy(ctx context.Context, id string, renewal *models.Policy) (*models.Policy, error)
	// ExpireLapsedPolicies marks active policies that ended before asOf as expired
	ExpireLapsedPolicies(ctx context.Context, asOf time.Time) (int64, error)
}

// DocumentStore manages policy document metadata
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	ListDocuments(ctx context.Context, policyID string) ([]*models.Document, error)
	GetDocument(ctx context.Context, policyID, id string) (*models.Document, error)
	DeleteDocument(ctx context.Context, policyID, id string) error
}

// ObjectStore holds document contents
type ObjectStore interface {
	PutObject(ctx context.Context, key string, content io.Reader, size int64, contentType string) error
	// PresignGet returns a time-limited download URL that suggests fileName to the browser
	PresignGet(ctx context.Context, key, fileName string) (string, error)
	DeleteObject(ctx context.Context, key string) error
}

// HealthChecker reports backend health
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Store is the full relational storage surface of the portal
type Store interface {
	ClientReader
	ClientWriter
	ProfileStore
	PolicyStore
	DocumentStore
	HealthChecker
}
