// Package storage defines the persistence interfaces of the portal.
//
// # Architecture
//
// The storage layer is split into focused capabilities so handlers and jobs
// depend only on what they use:
//
//   - ClientReader / ClientWriter: client records
//   - ProfileStore: access profiles, the account → client links
//   - PolicyStore: policies, renewals and the expiry transition
//   - DocumentStore: metadata of files attached to policies
//   - ObjectStore: document contents in the bucket
//   - HealthChecker: backend health
//
// Store composes the relational capabilities. Implementations live in
// sub-packages: postgres for the tables, objects for the S3-compatible bucket.
//
// # Errors
//
// Implementations wrap ErrNotFound and ErrConflict so callers can test with
// errors.Is regardless of the backend:
//
//	client, err := store.GetClient(ctx, id)
//	if errors.Is(err, storage.ErrNotFound) {
//		httputil.WriteNotFoundError(w, "client not found")
//		return
//	}
package storage
