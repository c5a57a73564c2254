// Package auth authenticates portal callers.
//
// Callers present access tokens issued by the backend platform's identity provider.
// JWKSVerifier checks them against the provider's published keys (RS256 or ES256),
// issuer and audience. The token subject is the account id, which ProfileResolver maps to
// the caller's portal profile through an expiring LRU cache:
//
//	verifier, _ := auth.NewJWKSVerifier(ctx, auth.VerifierConfig{
//		Issuer:  cfg.Backend.Issuer(),
//		JWKSURL: cfg.Backend.JWKSURL(),
//	})
//	profiles := auth.NewProfileResolver(store, 1024, time.Minute, metrics)
//
// The profile carries the portal role: admins have no client, clients are linked to
// exactly one client record. AuthContext bundles account and profile for handlers.
//
// AuditLogger records admin mutations and authentication failures as structured log
// entries.
package auth
