// Package postgres implements storage.Store on the portal's Postgres tables
// (clients, profiles, policies, policy_documents) using database/sql and lib/pq.
//
// Unique violations surface as storage.ErrConflict and missing rows as
// storage.ErrNotFound. Every operation runs in an OpenTelemetry span.
//
//	db, err := postgres.Connect(ctx, cfg.Database)
//	store := postgres.NewStore(db)
package postgres
