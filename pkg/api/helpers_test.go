package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/access"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/auth"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/middleware"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/models"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/observability"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/reconcile"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/storage"
)

// fakeStore keeps clients, policies and documents in memory. Methods the handlers never
// call fall through to the nil embedded interface.
type fakeStore struct {
	storage.Store

	mu        sync.Mutex
	nextID    int64
	clients   map[int64]*models.Client
	policies  map[string]*models.Policy
	documents map[string]*models.Document
	calls     []string

	createClientErr   error
	createDocumentErr error
	deleteDocumentErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clients:   make(map[int64]*models.Client),
		policies:  make(map[string]*models.Policy),
		documents: make(map[string]*models.Document),
	}
}

func (s *fakeStore) record(call string) {
	s.calls = append(s.calls, call)
}

func (s *fakeStore) addClient(c *models.Client) *models.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c.ID = s.nextID
	s.clients[c.ID] = c
	return c
}

func (s *fakeStore) addPolicy(p *models.Policy) *models.Policy {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = fmt.Sprintf("00000000-0000-0000-0000-%012d", len(s.policies)+1)
	}
	if p.Status == "" {
		p.Status = models.PolicyActive
	}
	s.policies[p.ID] = p
	return p
}

func (s *fakeStore) addDocument(d *models.Document) *models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[d.ID] = d
	return d
}

func (s *fakeStore) ListClients(ctx context.Context) ([]*models.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeStore) GetClient(ctx context.Context, id int64) (*models.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[id]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("get client %d: %w", id, storage.ErrNotFound)
}

func (s *fakeStore) CreateClient(ctx context.Context, c *models.Client) error {
	if s.createClientErr != nil {
		return s.createClientErr
	}
	s.addClient(c)
	return nil
}

func (s *fakeStore) UpdateClient(ctx context.Context, id int64, update models.ClientUpdate) (*models.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, fmt.Errorf("update client %d: %w", id, storage.ErrNotFound)
	}
	if update.Name != nil {
		c.Name = *update.Name
	}
	if update.Email != nil {
		c.Email = *update.Email
	}
	if update.Phone != nil {
		c.Phone = *update.Phone
	}
	return c, nil
}

func (s *fakeStore) CreatePolicy(ctx context.Context, p *models.Policy) error {
	s.mu.Lock()
	for _, existing := range s.policies {
		if existing.PolicyNumber == p.PolicyNumber {
			s.mu.Unlock()
			return fmt.Errorf("create policy: %w", storage.ErrConflict)
		}
	}
	s.mu.Unlock()
	s.addPolicy(p)
	return nil
}

func (s *fakeStore) GetPolicy(ctx context.Context, id string) (*models.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.policies[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("get policy %q: %w", id, storage.ErrNotFound)
}

func (s *fakeStore) ListPolicies(ctx context.Context, filter models.PolicyFilter) ([]*models.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Policy, 0)
	for _, p := range s.policies {
		if filter.ClientID != 0 && p.ClientID != filter.ClientID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) CancelPolicy(ctx context.Context, id string) (*models.Policy, error) {
	p, err := s.GetPolicy(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Status = models.PolicyCancelled
	return p, nil
}

func (s *fakeStore) RenewPolicy(ctx context.Context, id string, renewal *models.Policy) (*models.Policy, error) {
	prev, err := s.GetPolicy(ctx, id)
	if err != nil {
		return nil, err
	}
	if prev.Status == models.PolicyCancelled {
		return nil, fmt.Errorf("renew cancelled policy: %w", storage.ErrConflict)
	}
	renewal.InheritFrom(prev)
	if err := renewal.ValidateDates(); err != nil {
		return nil, err
	}
	return s.addPolicy(renewal), nil
}

func (s *fakeStore) CreateDocument(ctx context.Context, d *models.Document) error {
	s.record("create-row")
	if s.createDocumentErr != nil {
		return s.createDocumentErr
	}
	d.ID = fmt.Sprintf("doc-%d", len(s.documents)+1)
	d.UploadedAt = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.addDocument(d)
	return nil
}

func (s *fakeStore) ListDocuments(ctx context.Context, policyID string) ([]*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Document, 0)
	for _, d := range s.documents {
		if d.PolicyID == policyID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *fakeStore) GetDocument(ctx context.Context, policyID, id string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.documents[id]; ok && d.PolicyID == policyID {
		return d, nil
	}
	return nil, fmt.Errorf("get document %q: %w", id, storage.ErrNotFound)
}

func (s *fakeStore) DeleteDocument(ctx context.Context, policyID, id string) error {
	s.record("delete-row")
	if s.deleteDocumentErr != nil {
		return s.deleteDocumentErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, id)
	return nil
}

// fakeObjects records bucket operations into the store's call log
type fakeObjects struct {
	store   *fakeStore
	objects map[string][]byte
	putErr  error
	delErr  error
}

func newFakeObjects(store *fakeStore) *fakeObjects {
	return &fakeObjects{store: store, objects: make(map[string][]byte)}
}

func (o *fakeObjects) PutObject(ctx context.Context, key string, content io.Reader, size int64, contentType string) error {
	o.store.record("put-object")
	if o.putErr != nil {
		return o.putErr
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	o.objects[key] = data
	return nil
}

func (o *fakeObjects) PresignGet(ctx context.Context, key, fileName string) (string, error) {
	return "https://bucket.example.com/" + key + "?X-Amz-Expires=900", nil
}

func (o *fakeObjects) DeleteObject(ctx context.Context, key string) error {
	o.store.record("delete-object")
	if o.delErr != nil {
		return o.delErr
	}
	delete(o.objects, key)
	return nil
}

type fakeReconciler struct {
	report *reconcile.Report
	err    error
	opts   []reconcile.Options
}

func (f *fakeReconciler) Run(ctx context.Context, opts reconcile.Options) (*reconcile.Report, error) {
	f.opts = append(f.opts, opts)
	return f.report, f.err
}

type fakeProvisioner struct {
	result *access.Result
	err    error
	calls  []int64
}

func (f *fakeProvisioner) Create(ctx context.Context, client *models.Client, sendEmail bool) (*access.Result, error) {
	f.calls = append(f.calls, client.ID)
	return f.result, f.err
}

type stubVerifier struct{}

// Verify maps a fixed set of tokens to accounts
func (stubVerifier) Verify(ctx context.Context, raw string) (*auth.Claims, error) {
	switch raw {
	case "admin-token":
		return &auth.Claims{Subject: "acc-admin", Email: "admin@example.com"}, nil
	case "client-token":
		return &auth.Claims{Subject: "acc-client", Email: "ana@example.com"}, nil
	case "other-token":
		return &auth.Claims{Subject: "acc-other", Email: "bruno@example.com"}, nil
	case "orphan-token":
		return &auth.Claims{Subject: "acc-orphan", Email: "nobody@example.com"}, nil
	}
	return nil, auth.ErrInvalidToken
}

type stubProfiles map[string]*models.Profile

func (p stubProfiles) Resolve(ctx context.Context, accountID string) (*models.Profile, error) {
	if prof, ok := p[accountID]; ok {
		return prof, nil
	}
	return nil, auth.ErrNoProfile
}

// testEnv is a server wired to in-memory fakes. Client 1 (Ana) is linked to
// acc-client, client 2 (Bruno) to acc-other.
type testEnv struct {
	server      *Server
	store       *fakeStore
	objects     *fakeObjects
	reconciler  *fakeReconciler
	provisioner *fakeProvisioner
	ana, bruno  *models.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newFakeStore()
	ana := store.addClient(&models.Client{Name: "Ana", Email: "ana@example.com", DocumentID: "1.234.567-8"})
	bruno := store.addClient(&models.Client{Name: "Bruno", Email: "bruno@example.com", DocumentID: "2.345.678-9"})

	profiles := stubProfiles{
		"acc-admin":  {ID: "acc-admin", Role: models.RoleAdmin},
		"acc-client": models.NewClientProfile("acc-client", ana.ID),
		"acc-other":  models.NewClientProfile("acc-other", bruno.ID),
	}

	logger := observability.NewNopLogger()
	audit := auth.NewAuditLogger(logger)
	env := &testEnv{
		store:       store,
		objects:     newFakeObjects(store),
		reconciler:  &fakeReconciler{},
		provisioner: &fakeProvisioner{},
		ana:         ana,
		bruno:       bruno,
	}
	env.server = NewServer(Dependencies{
		Store:          store,
		Objects:        env.objects,
		Reconciler:     env.reconciler,
		Provisioner:    env.provisioner,
		Auth:           middleware.NewAuthMiddleware(stubVerifier{}, profiles, audit, true),
		Audit:          audit,
		Logger:         logger,
		MaxUploadBytes: 1 << 20,
	})
	return env
}

// do sends a request with an optional JSON body and bearer token
func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(req, token)
}

func (e *testEnv) send(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest), w.Body.String())
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decode(t, w, &body)
	return body["error"]
}
