// Package identity is a client for the identity provider's admin API: the
// paginated account listing, account creation and account deletion that
// access provisioning and orphan reconciliation are built on.
//
//	c := identity.NewClient(cfg.Backend.URL, cfg.Backend.ServiceKey, identity.WithPageSize(200))
//	accounts, err := c.ListAllAccounts(ctx)
//
// Non-2xx answers are returned as *APIError; errors.Is(err, ErrAccountExists)
// detects a duplicate email on creation.
package identity
