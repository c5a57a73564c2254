package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
)

// ErrInvalidToken is returned for tokens that fail signature, issuer, audience or expiry checks
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenVerifier verifies a raw bearer token and returns its claims
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*Claims, error)
}

// JWKSVerifier verifies identity-provider access tokens against the provider's published
// signing keys. Keys are fetched lazily and refreshed when an unknown key id appears.
type JWKSVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// VerifierConfig describes where caller tokens come from
type VerifierConfig struct {
	Issuer   string
	JWKSURL  string
	Audience string
	// HTTPClient fetches the key set. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// NewJWKSVerifier creates a verifier for tokens issued by cfg.Issuer. ctx scopes key set
// fetches and must outlive the verifier.
func NewJWKSVerifier(ctx context.Context, cfg VerifierConfig) (*JWKSVerifier, error) {
	if cfg.Issuer == "" || cfg.JWKSURL == "" {
		return nil, fmt.Errorf("issuer and JWKS URL are required")
	}
	if cfg.HTTPClient != nil {
		ctx = oidc.ClientContext(ctx, cfg.HTTPClient)
	}

	keySet := oidc.NewRemoteKeySet(ctx, cfg.JWKSURL)
	verifier := oidc.NewVerifier(cfg.Issuer, keySet, &oidc.Config{
		ClientID:             cfg.Audience,
		SkipClientIDCheck:    cfg.Audience == "",
		SupportedSigningAlgs: []string{oidc.RS256, oidc.ES256},
	})

	return &JWKSVerifier{verifier: verifier}, nil
}

// Verify checks rawToken and extracts its claims
func (v *JWKSVerifier) Verify(ctx context.Context, rawToken string) (*Claims, error) {
	token, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var claims Claims
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: failed to parse claims: %v", ErrInvalidToken, err)
	}
	claims.Subject = token.Subject
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return &claims, nil
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
