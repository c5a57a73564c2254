package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	op  string
	err error
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (f *fakeRecorder) RecordIdentityCall(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{op, err})
}

func assertServiceHeaders(t *testing.T, r *http.Request) {
	t.Helper()
	assert.Equal(t, "svc-key", r.Header.Get("apikey"))
	assert.Equal(t, "Bearer svc-key", r.Header.Get("Authorization"))
}

func TestClient_ListAllAccounts_Paginates(t *testing.T) {
	const total = 5
	var pages []int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assertServiceHeaders(t, r)
		assert.Equal(t, "/auth/v1/admin/users", r.URL.Path)

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
		pages = append(pages, page)

		var users []Account
		for i := (page - 1) * perPage; i < page*perPage && i < total; i++ {
			users = append(users, Account{ID: fmt.Sprintf("acc-%d", i), Email: fmt.Sprintf("u%d@x.com", i)})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"users": users})
	}))
	defer srv.Close()

	rec := &fakeRecorder{}
	c := NewClient(srv.URL+"/", "svc-key", WithPageSize(2), WithRecorder(rec))

	accounts, err := c.ListAllAccounts(context.Background())
	require.NoError(t, err)

	require.Len(t, accounts, total)
	assert.Equal(t, "acc-0", accounts[0].ID)
	assert.Equal(t, "acc-4", accounts[4].ID)
	assert.Equal(t, []int{1, 2, 3}, pages)
	assert.Len(t, rec.calls, 3)
}

func TestClient_ListAllAccounts_ExactMultipleFetchesEmptyPage(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		users := []Account{}
		if r.URL.Query().Get("page") == "1" {
			users = []Account{{ID: "a"}, {ID: "b"}}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"users": users})
	}))
	defer srv.Close()

	accounts, err := NewClient(srv.URL, "svc-key", WithPageSize(2)).ListAllAccounts(context.Background())
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
	assert.Equal(t, 2, calls)
}

func TestClient_ListAllAccounts_PageFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"msg":"database timeout"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"users": []Account{{ID: "a"}}})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "svc-key", WithPageSize(1)).ListAllAccounts(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page 2")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "database timeout", apiErr.Message)
}

func TestClient_ListAllAccounts_IgnoredPageParameter(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"users": []Account{{ID: "a"}, {ID: "b"}}})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "svc-key", WithPageSize(2)).ListAllAccounts(context.Background())
	require.ErrorIs(t, err, ErrPagingStalled)
	assert.Contains(t, err.Error(), "page 2 repeats page 1")
	assert.Equal(t, 2, calls)
}

func TestClient_ListAllAccounts_MaxPages(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		page := r.URL.Query().Get("page")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"users": []Account{{ID: "acc-" + page}}})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "svc-key", WithPageSize(1), WithMaxPages(3)).ListAllAccounts(context.Background())
	require.ErrorIs(t, err, ErrPagingStalled)
	assert.Equal(t, 3, calls)
}

func TestClient_CreateAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assertServiceHeaders(t, r)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req CreateAccountRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a@x.com", req.Email)
		assert.True(t, req.EmailConfirm)
		assert.Equal(t, float64(1), req.UserMetadata["client_id"])

		_ = json.NewEncoder(w).Encode(Account{ID: "acc-new", Email: req.Email})
	}))
	defer srv.Close()

	account, err := NewClient(srv.URL, "svc-key").CreateAccount(context.Background(), CreateAccountRequest{
		Email:        "a@x.com",
		Password:     "Tmp#1secret",
		EmailConfirm: true,
		UserMetadata: map[string]interface{}{"client_id": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "acc-new", account.ID)
}

func TestClient_CreateAccount_Duplicate(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"error_code", http.StatusUnprocessableEntity, `{"code":422,"error_code":"email_exists","msg":"A user with this email address has already been registered"}`},
		{"legacy message", http.StatusUnprocessableEntity, `{"msg":"A user with this email address has already been registered"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "svc-key").CreateAccount(context.Background(), CreateAccountRequest{Email: "a@x.com"})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrAccountExists)
			assert.NotErrorIs(t, err, ErrAccountNotFound)
		})
	}
}

func TestClient_CreateAccount_MissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "svc-key").CreateAccount(context.Background(), CreateAccountRequest{Email: "a@x.com"})
	assert.ErrorContains(t, err, "no id")
}

func TestClient_DeleteAccount(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assertServiceHeaders(t, r)
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "/auth/v1/admin/users/acc-1", r.URL.Path)
			_, _ = w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		assert.NoError(t, NewClient(srv.URL, "svc-key").DeleteAccount(context.Background(), "acc-1"))
	})

	t.Run("not found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":404,"error_code":"user_not_found","msg":"User not found"}`))
		}))
		defer srv.Close()

		err := NewClient(srv.URL, "svc-key").DeleteAccount(context.Background(), "acc-1")
		assert.ErrorIs(t, err, ErrAccountNotFound)
		assert.Contains(t, err.Error(), "user_not_found")
	})
}

func TestClient_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(srv.URL, "svc-key").ListAccounts(ctx, 1, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAPIError_PlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "svc-key").DeleteAccount(context.Background(), "x")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Bad Gateway", apiErr.Message)
}
