package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/observability"
)

// Migration is one versioned schema change
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the portal schema. The hosted platform already carries these tables;
// the migrations create them for local databases and integration tests.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create clients table",
			SQL: `
				CREATE TABLE IF NOT EXISTS clients (
					id BIGSERIAL PRIMARY KEY,
					name TEXT NOT NULL,
					email TEXT,
					document_id TEXT NOT NULL,
					phone TEXT,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_clients_email ON clients (LOWER(email));
			`,
		},
		{
			Version:     2,
			Description: "Create profiles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS profiles (
					id UUID PRIMARY KEY,
					client_id BIGINT UNIQUE REFERENCES clients(id) ON DELETE CASCADE,
					role TEXT NOT NULL CHECK (role IN ('admin', 'client')),
					must_change_password BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     3,
			Description: "Create policies table",
			SQL: `
				CREATE TABLE IF NOT EXISTS policies (
					id UUID PRIMARY KEY,
					client_id BIGINT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
					policy_number TEXT NOT NULL UNIQUE,
					insurer TEXT NOT NULL,
					line TEXT NOT NULL,
					coverage TEXT,
					premium NUMERIC(14, 2) NOT NULL DEFAULT 0,
					currency CHAR(3) NOT NULL,
					start_date DATE NOT NULL,
					end_date DATE NOT NULL,
					status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'expired', 'cancelled')),
					renewed_from UUID REFERENCES policies(id),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CHECK (end_date > start_date)
				);
				CREATE INDEX IF NOT EXISTS idx_policies_client ON policies (client_id);
				CREATE INDEX IF NOT EXISTS idx_policies_status_end ON policies (status, end_date);
			`,
		},
		{
			Version:     4,
			Description: "Create policy documents table",
			SQL: `
				CREATE TABLE IF NOT EXISTS policy_documents (
					id UUID PRIMARY KEY,
					policy_id UUID NOT NULL REFERENCES policies(id) ON DELETE CASCADE,
					object_key TEXT NOT NULL UNIQUE,
					file_name TEXT NOT NULL,
					content_type TEXT NOT NULL,
					size_bytes BIGINT NOT NULL,
					uploaded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_policy_documents_policy ON policy_documents (policy_id);
			`,
		},
	}
}

// Migrate applies pending migrations in order, each in its own transaction
func Migrate(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS portal_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM portal_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}
	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, m := range Migrations() {
		if applied[m.Version] {
			continue
		}

		log := logger.WithFields(map[string]interface{}{
			"version":     m.Version,
			"description": m.Description,
		})
		log.Info("Running migration")

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO portal_migrations (version, description) VALUES ($1, $2)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
