package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/models"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/observability"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/storage"
)

const (
	policyID = "7f1d6c1e-1d0a-4c4e-9c55-2f1f7a1b0c01"
	docID    = "0b3e4a52-6f1c-4f6e-8a0a-5b7d9e2c1a02"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	s := NewStore(db)
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

var (
	clientCols  = []string{"id", "name", "email", "document_id", "phone", "created_at", "updated_at"}
	profileCols = []string{"id", "client_id", "role", "must_change_password", "created_at"}
	policyCols  = []string{"id", "client_id", "policy_number", "insurer", "line", "coverage", "premium", "currency",
		"start_date", "end_date", "status", "renewed_from", "created_at", "updated_at"}
	documentCols = []string{"id", "policy_id", "object_key", "file_name", "content_type", "size_bytes", "uploaded_at"}
)

func policyRow(rows *sqlmock.Rows, id, status string, end time.Time) *sqlmock.Rows {
	return rows.AddRow(id, int64(3), "AU-1", "Sura", "auto", "", "1200.00", "UYU",
		end.AddDate(-1, 0, 0), end, status, nil, fixedNow, fixedNow)
}

func TestWrapError(t *testing.T) {
	assert.ErrorIs(t, wrapError("get client", sql.ErrNoRows), storage.ErrNotFound)

	err := wrapError("insert profile", &pq.Error{Code: "23505", Constraint: "profiles_client_id_key"})
	assert.ErrorIs(t, err, storage.ErrConflict)
	assert.Contains(t, err.Error(), "profiles_client_id_key")

	assert.ErrorIs(t, wrapError("create policy", &pq.Error{Code: "23503"}), storage.ErrNotFound)

	other := errors.New("connection reset")
	err = wrapError("list clients", other)
	assert.ErrorIs(t, err, other)
	assert.Equal(t, "failed to list clients: connection reset", err.Error())

	assert.NoError(t, wrapError("noop", nil))
}

func TestStore_Clients(t *testing.T) {
	ctx := context.Background()

	t.Run("list", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery("SELECT (.+) FROM clients ORDER BY name, id").
			WillReturnRows(sqlmock.NewRows(clientCols).
				AddRow(int64(1), "Ana", "ana@x.com", "1.234.567-8", "", fixedNow, fixedNow).
				AddRow(int64(2), "Bruno", "", "2.345.678-9", "099 123", fixedNow, fixedNow))

		clients, err := s.ListClients(ctx)
		require.NoError(t, err)
		require.Len(t, clients, 2)
		assert.Equal(t, "ana@x.com", clients[0].Email)
		assert.Equal(t, "099 123", clients[1].Phone)
	})

	t.Run("get missing", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery("SELECT (.+) FROM clients WHERE id = \\$1").
			WithArgs(int64(9)).
			WillReturnError(sql.ErrNoRows)

		_, err := s.GetClient(ctx, 9)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("create", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery("INSERT INTO clients").
			WithArgs("Ana", "ana@x.com", "1.234.567-8", "").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(5), fixedNow, fixedNow))

		c := &models.Client{Name: "Ana", Email: "ana@x.com", DocumentID: "1.234.567-8"}
		require.NoError(t, s.CreateClient(ctx, c))
		assert.Equal(t, int64(5), c.ID)
		assert.Equal(t, fixedNow, c.CreatedAt)
	})

	t.Run("update", func(t *testing.T) {
		s, mock := newMockStore(t)
		name := "Ana María"
		mock.ExpectQuery("UPDATE clients SET").
			WithArgs(int64(1), name, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(clientCols).
				AddRow(int64(1), name, "ana@x.com", "1.234.567-8", "", fixedNow, fixedNow))

		c, err := s.UpdateClient(ctx, 1, models.ClientUpdate{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, name, c.Name)
	})
}

func TestStore_Profiles(t *testing.T) {
	ctx := context.Background()

	t.Run("list maps null client ids", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery("SELECT (.+) FROM profiles").
			WillReturnRows(sqlmock.NewRows(profileCols).
				AddRow("acc-admin", nil, "admin", false, fixedNow).
				AddRow("acc-1", int64(1), "client", true, fixedNow))

		profiles, err := s.ListProfiles(ctx)
		require.NoError(t, err)
		require.Len(t, profiles, 2)
		assert.Nil(t, profiles[0].ClientID)
		assert.True(t, profiles[0].IsAdmin())
		require.NotNil(t, profiles[1].ClientID)
		assert.Equal(t, int64(1), *profiles[1].ClientID)
		assert.True(t, profiles[1].MustChangePassword)
	})

	t.Run("insert", func(t *testing.T) {
		s, mock := newMockStore(t)
		p := models.NewClientProfile("acc-1", 1)
		mock.ExpectQuery("INSERT INTO profiles").
			WithArgs("acc-1", int64(1), "client", true).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(fixedNow))

		require.NoError(t, s.InsertProfile(ctx, p))
		assert.Equal(t, fixedNow, p.CreatedAt)
	})

	t.Run("insert duplicate", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery("INSERT INTO profiles").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "profiles_pkey"})

		err := s.InsertProfile(ctx, models.NewClientProfile("acc-1", 1))
		assert.ErrorIs(t, err, storage.ErrConflict)
	})

	t.Run("by client", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery("SELECT (.+) FROM profiles WHERE client_id = \\$1").
			WithArgs(int64(4)).
			WillReturnRows(sqlmock.NewRows(profileCols).AddRow("acc-4", int64(4), "client", false, fixedNow))

		p, err := s.GetProfileByClient(ctx, 4)
		require.NoError(t, err)
		assert.Equal(t, "acc-4", p.ID)
	})
}

func TestStore_ListPolicies(t *testing.T) {
	ctx := context.Background()

	t.Run("no filter", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM policies ORDER BY end_date, policy_number")).
			WillReturnRows(policyRow(sqlmock.NewRows(policyCols), policyID, "active", fixedNow))

		policies, err := s.ListPolicies(ctx, models.PolicyFilter{})
		require.NoError(t, err)
		require.Len(t, policies, 1)
		assert.Equal(t, "1200.00", policies[0].Premium)
		assert.Nil(t, policies[0].RenewedFrom)
	})

	t.Run("all filters", func(t *testing.T) {
		s, mock := newMockStore(t)
		today := models.Day(fixedNow)
		mock.ExpectQuery(regexp.QuoteMeta(
			"WHERE client_id = $1 AND status = $2 AND status = 'active' AND end_date >= $3 AND end_date <= $4")).
			WithArgs(int64(3), "active", today, today.AddDate(0, 0, 30)).
			WillReturnRows(sqlmock.NewRows(policyCols))

		policies, err := s.ListPolicies(ctx, models.PolicyFilter{
			ClientID:           3,
			Status:             models.PolicyActive,
			ExpiringWithinDays: 30,
		})
		require.NoError(t, err)
		assert.NotNil(t, policies)
		assert.Empty(t, policies)
	})
}

func TestStore_Policies(t *testing.T) {
	ctx := context.Background()

	t.Run("create rejects inverted dates", func(t *testing.T) {
		s, _ := newMockStore(t)
		err := s.CreatePolicy(ctx, &models.Policy{StartDate: fixedNow, EndDate: fixedNow.AddDate(0, 0, -1)})
		assert.ErrorIs(t, err, models.ErrInvalidDates)
	})

	t.Run("create duplicate number", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery("INSERT INTO policies").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "policies_policy_number_key"})

		p := &models.Policy{ClientID: 3, PolicyNumber: "AU-1", StartDate: fixedNow, EndDate: fixedNow.AddDate(1, 0, 0)}
		err := s.CreatePolicy(ctx, p)
		assert.ErrorIs(t, err, storage.ErrConflict)
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, models.PolicyActive, p.Status)
	})

	t.Run("get with malformed id", func(t *testing.T) {
		s, _ := newMockStore(t)
		_, err := s.GetPolicy(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("cancel", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery("UPDATE policies SET status = 'cancelled'").
			WithArgs(policyID).
			WillReturnRows(policyRow(sqlmock.NewRows(policyCols), policyID, "cancelled", fixedNow))

		p, err := s.CancelPolicy(ctx, policyID)
		require.NoError(t, err)
		assert.Equal(t, models.PolicyCancelled, p.Status)
	})

	t.Run("expire lapsed", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec("UPDATE policies SET status = 'expired'").
			WithArgs(models.Day(fixedNow)).
			WillReturnResult(sqlmock.NewResult(0, 4))

		n, err := s.ExpireLapsedPolicies(ctx, fixedNow)
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
	})
}

func TestStore_RenewPolicy(t *testing.T) {
	ctx := context.Background()
	renewal := func() *models.Policy {
		return &models.Policy{PolicyNumber: "AU-2", EndDate: fixedNow.AddDate(1, 0, 0)}
	}

	t.Run("lapsed policy is expired in the same transaction", func(t *testing.T) {
		s, mock := newMockStore(t)
		lapsedEnd := models.Day(fixedNow).AddDate(0, 0, -3)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM policies WHERE id = \\$1 FOR UPDATE").
			WithArgs(policyID).
			WillReturnRows(policyRow(sqlmock.NewRows(policyCols), policyID, "active", lapsedEnd))
		mock.ExpectQuery("INSERT INTO policies").
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(fixedNow, fixedNow))
		mock.ExpectExec("UPDATE policies SET status = 'expired'").
			WithArgs(policyID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		p, err := s.RenewPolicy(ctx, policyID, renewal())
		require.NoError(t, err)
		assert.Equal(t, policyID, *p.RenewedFrom)
		assert.Equal(t, lapsedEnd, p.StartDate)
		assert.Equal(t, int64(3), p.ClientID)
		assert.Equal(t, "Sura", p.Insurer)
		assert.Equal(t, models.PolicyActive, p.Status)
	})

	t.Run("current policy stays active", func(t *testing.T) {
		s, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").
			WillReturnRows(policyRow(sqlmock.NewRows(policyCols), policyID, "active", models.Day(fixedNow).AddDate(0, 0, 10)))
		mock.ExpectQuery("INSERT INTO policies").
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(fixedNow, fixedNow))
		mock.ExpectCommit()

		_, err := s.RenewPolicy(ctx, policyID, renewal())
		require.NoError(t, err)
	})

	t.Run("cancelled policy", func(t *testing.T) {
		s, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").
			WillReturnRows(policyRow(sqlmock.NewRows(policyCols), policyID, "cancelled", fixedNow))
		mock.ExpectRollback()

		_, err := s.RenewPolicy(ctx, policyID, renewal())
		assert.ErrorIs(t, err, storage.ErrConflict)
	})

	t.Run("end before inherited start", func(t *testing.T) {
		s, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").
			WillReturnRows(policyRow(sqlmock.NewRows(policyCols), policyID, "active", fixedNow.AddDate(2, 0, 0)))
		mock.ExpectRollback()

		_, err := s.RenewPolicy(ctx, policyID, renewal())
		assert.ErrorIs(t, err, models.ErrInvalidDates)
	})
}

func TestStore_Documents(t *testing.T) {
	ctx := context.Background()

	t.Run("create", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery("INSERT INTO policy_documents").
			WillReturnRows(sqlmock.NewRows([]string{"uploaded_at"}).AddRow(fixedNow))

		d := &models.Document{PolicyID: policyID, ObjectKey: "policies/x/y.pdf", FileName: "y.pdf", ContentType: "application/pdf", SizeBytes: 10}
		require.NoError(t, s.CreateDocument(ctx, d))
		assert.NotEmpty(t, d.ID)
		assert.Equal(t, fixedNow, d.UploadedAt)
	})

	t.Run("list", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery("SELECT (.+) FROM policy_documents").
			WithArgs(policyID).
			WillReturnRows(sqlmock.NewRows(documentCols).
				AddRow(docID, policyID, "policies/k", "a.pdf", "application/pdf", int64(10), fixedNow))

		docs, err := s.ListDocuments(ctx, policyID)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "policies/k", docs[0].ObjectKey)
	})

	t.Run("list with malformed id is empty", func(t *testing.T) {
		s, _ := newMockStore(t)
		docs, err := s.ListDocuments(ctx, "nope")
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("get", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery("WHERE policy_id = \\$1 AND id = \\$2").
			WithArgs(policyID, docID).
			WillReturnError(sql.ErrNoRows)

		_, err := s.GetDocument(ctx, policyID, docID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("delete missing", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec("DELETE FROM policy_documents").
			WithArgs(policyID, docID).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := s.DeleteDocument(ctx, policyID, docID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec("DELETE FROM policy_documents").
			WithArgs(policyID, docID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, s.DeleteDocument(ctx, policyID, docID))
	})
}

func TestStore_HealthCheck(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("down"))
	err = NewStore(db).HealthCheck(context.Background())
	assert.ErrorContains(t, err, "postgres unhealthy")
}

func TestMigrate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS portal_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM portal_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1).AddRow(2))
	for _, m := range Migrations()[2:] {
		mock.ExpectBegin()
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO portal_migrations").
			WithArgs(m.Version, m.Description).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
	}

	require.NoError(t, Migrate(context.Background(), s.DB(), observability.NewNopLogger()))
}
