package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/auth"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/contextkeys"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/httputil"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/models"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/observability"
)

// ProfileSource resolves an account id to its portal profile
type ProfileSource interface {
	Resolve(ctx context.Context, accountID string) (*models.Profile, error)
}

// AuthMiddleware provides authentication middleware
type AuthMiddleware struct {
	verifier auth.TokenVerifier
	profiles ProfileSource
	audit    *auth.AuditLogger
	optional bool // If true, allow requests without auth
	// rejectStatus answers malformed and unverifiable tokens; 401 unless overridden
	rejectStatus int
}

// NewAuthMiddleware creates a new authentication middleware. With optional set, requests
// without an Authorization header pass through unauthenticated and the Require*
// middlewares decide.
func NewAuthMiddleware(verifier auth.TokenVerifier, profiles ProfileSource, audit *auth.AuditLogger, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		profiles: profiles,
		audit:    audit,
		optional:     optional,
		rejectStatus: http.StatusUnauthorized,
	}
}

// WithRejectStatus returns a copy of the middleware that answers malformed or
// unverifiable tokens with status instead of 401. Admin routes use 403 so every
// caller that is not an authenticated administrator gets the same answer.
func (m *AuthMiddleware) WithRejectStatus(status int) *AuthMiddleware {
	c := *m
	c.rejectStatus = status
	return &c
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		token, ok := auth.BearerToken(authHeader)
		if !ok {
			httputil.WriteErrorMessage(w, m.rejectStatus, "invalid authorization header format")
			return
		}

		claims, err := m.verifier.Verify(r.Context(), token)
		if err != nil {
			m.auditFailure(r, err)
			httputil.WriteErrorMessage(w, m.rejectStatus, auth.ErrInvalidToken.Error())
			return
		}

		authCtx := &auth.AuthContext{AccountID: claims.Subject, Email: claims.Email}
		profile, err := m.profiles.Resolve(r.Context(), claims.Subject)
		switch {
		case err == nil:
			authCtx.Profile = profile
		case errors.Is(err, auth.ErrNoProfile):
			// authenticated without portal access; role checks reject it
		default:
			observability.FromContext(r.Context()).WithError(err).Error("Failed to resolve caller profile")
			httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to resolve caller profile")
			return
		}

		ctx := contextkeys.WithAuth(r.Context(), authCtx)
		ctx = observability.WithUserID(ctx, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) auditFailure(r *http.Request, err error) {
	if m.audit == nil {
		return
	}
	m.audit.LogFromRequest(r, auth.AuditEvent{
		Action:       auth.ActionAuthFailure,
		ResourceType: "token",
		Status:       auth.StatusDenied,
		Err:          err,
	})
}

// GetAuthContext extracts auth context from request
func GetAuthContext(r *http.Request) *auth.AuthContext {
	authCtx, ok := r.Context().Value(contextkeys.AuthKey).(*auth.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

// RequireAuthenticated rejects requests without a verified token
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetAuthContext(r) == nil {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole creates middleware that admits only callers whose profile has role.
// Anonymous callers are rejected with 403 as well so admin endpoints answer uniformly.
func RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !GetAuthContext(r).HasRole(role) {
				httputil.WriteForbidden(w, string(role)+" role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireClient admits callers whose profile is linked to a client record
func RequireClient(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := GetAuthContext(r)
		if authCtx == nil {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		if _, ok := authCtx.ClientID(); !ok {
			httputil.WriteForbidden(w, "no client linked to this account")
			return
		}
		next.ServeHTTP(w, r)
	})
}
