package sessionauth

import (
	"context"
	"fmt"

	"google.golang.org/api/idtoken"
)

// Accepted issuers for Google ID tokens.
var googleIssuers = map[string]struct{}{
	"accounts.google.com":         {},
	"https://accounts.google.com": {},
}

// IdentityClaims is the verified identity asserted by an external provider.
type IdentityClaims struct {
	SubjectID     string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Locale        string `json:"locale"`
}

// IdentityVerifier verifies a provider-issued identity token and extracts
// the identity it asserts.
type IdentityVerifier interface {
	VerifyIdentityToken(ctx context.Context, token string) (*IdentityClaims, error)
}

// GoogleVerifier verifies Google ID tokens against the configured OAuth
// client ID.
type GoogleVerifier struct {
	clientID string

	// validate is swappable for tests. Defaults to idtoken.Validate.
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

// NewGoogleVerifier creates a verifier bound to the given OAuth client ID.
func NewGoogleVerifier(cfg GoogleConfig) (*GoogleVerifier, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: Google client ID is required", ErrConfiguration)
	}
	return &GoogleVerifier{
		clientID: cfg.ClientID,
		validate: idtoken.Validate,
	}, nil
}

// VerifyIdentityToken validates the token signature, audience and issuer and
// returns the asserted identity. All failures map to ErrInvalidIdentityToken.
func (v *GoogleVerifier) VerifyIdentityToken(ctx context.Context, token string) (*IdentityClaims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: token cannot be empty", ErrInvalidIdentityToken)
	}

	payload, err := v.validate(ctx, token, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentityToken, err)
	}
	if _, ok := googleIssuers[payload.Issuer]; !ok {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidIdentityToken, payload.Issuer)
	}
	if payload.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidIdentityToken)
	}

	claims := &IdentityClaims{SubjectID: payload.Subject}
	claims.Email, _ = payload.Claims["email"].(string)
	claims.EmailVerified, _ = payload.Claims["email_verified"].(bool)
	claims.Name, _ = payload.Claims["name"].(string)
	claims.Picture, _ = payload.Claims["picture"].(string)
	claims.GivenName, _ = payload.Claims["given_name"].(string)
	claims.FamilyName, _ = payload.Claims["family_name"].(string)
	claims.Locale, _ = payload.Claims["locale"].(string)
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: missing email claim", ErrInvalidIdentityToken)
	}
	return claims, nil
}
