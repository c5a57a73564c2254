// Package middleware provides HTTP middleware for authentication, authorization and rate
// limiting.
//
// AuthMiddleware verifies the bearer token of each request, resolves the caller's portal
// profile and stores an *auth.AuthContext in the request context. RequireRole,
// RequireClient and RequireAuthenticated gate routes on it:
//
//	authn := middleware.NewAuthMiddleware(verifier, profiles, audit, true)
//	router.Use(authn.Handler)
//	admin := router.PathPrefix("/api/admin").Subrouter()
//	admin.Use(middleware.RequireRole(models.RoleAdmin))
//
// RateLimitMiddleware limits callers per account (or per address when anonymous) using a
// RedisRateLimiter shared across instances, or an in-process RateLimiter when no redis
// is configured.
package middleware
