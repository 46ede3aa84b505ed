package sessionauth

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType tags a session token as short-lived or long-lived.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claim names reserved by the codec. Extra claims never override these;
// the reserved value wins on collision.
var reservedClaims = map[string]struct{}{
	"sub":   {},
	"email": {},
	"type":  {},
	"tv":    {},
	"iat":   {},
	"exp":   {},
}

// SessionClaims is the payload extracted from a verified session token.
type SessionClaims struct {
	SubjectID    string
	Email        string
	IssuedAt     time.Time
	ExpiresAt    time.Time
	TokenVersion int
	TokenType    TokenType
	Extra        map[string]any
}

// Codec creates and verifies signed, self-contained session tokens carrying
// identity, version and type claims.
type Codec struct {
	secret        []byte
	method        jwt.SigningMethod
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	now           func() time.Time
}

// NewCodec creates a session token codec. An empty secret is a fatal
// configuration error; a secret shorter than 32 characters is accepted but
// logged as a warning.
func NewCodec(cfg JWTConfig) (*Codec, error) {
	cfg.EnsureDefaults()

	if cfg.Secret == "" {
		return nil, fmt.Errorf("%w: JWT secret is required", ErrConfiguration)
	}
	if len(cfg.Secret) < 32 {
		slog.Warn("JWT secret is shorter than 32 characters, consider a longer secret")
	}

	var method jwt.SigningMethod
	switch cfg.Algorithm {
	case "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("%w: unsupported signing algorithm %q", ErrConfiguration, cfg.Algorithm)
	}

	return &Codec{
		secret:        []byte(cfg.Secret),
		method:        method,
		accessExpiry:  cfg.AccessExpiry,
		refreshExpiry: cfg.RefreshExpiry,
		now:           time.Now,
	}, nil
}

// AccessExpiry returns the configured access token lifetime.
func (c *Codec) AccessExpiry() time.Duration { return c.accessExpiry }

// RefreshExpiry returns the configured refresh token lifetime.
func (c *Codec) RefreshExpiry() time.Duration { return c.refreshExpiry }

// Issue mints a signed session token. Token versions below 1 are normalized
// to 1. A positive lifetime overrides the per-type default. Extra claims are
// merged in but the reserved claim names take precedence on collision.
func (c *Codec) Issue(subjectID, email string, tokenType TokenType, tokenVersion int, extra map[string]any, lifetime time.Duration) (string, error) {
	if tokenVersion < 1 {
		tokenVersion = 1
	}

	now := c.now().UTC()
	var expiresAt time.Time
	switch {
	case lifetime > 0:
		expiresAt = now.Add(lifetime)
	case tokenType == TokenTypeRefresh:
		expiresAt = now.Add(c.refreshExpiry)
	default:
		expiresAt = now.Add(c.accessExpiry)
	}

	claims := jwt.MapClaims{}
	for k, v := range extra {
		claims[k] = v
	}
	claims["sub"] = subjectID
	claims["email"] = email
	claims["type"] = string(tokenType)
	claims["tv"] = tokenVersion
	claims["iat"] = now.Unix()
	claims["exp"] = expiresAt.Unix()

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// IssueAccessToken mints a short-lived access token.
func (c *Codec) IssueAccessToken(subjectID, email string, tokenVersion int) (string, error) {
	return c.Issue(subjectID, email, TokenTypeAccess, tokenVersion, nil, 0)
}

// IssueRefreshToken mints a long-lived refresh token.
func (c *Codec) IssueRefreshToken(subjectID, email string, tokenVersion int) (string, error) {
	return c.Issue(subjectID, email, TokenTypeRefresh, tokenVersion, nil, 0)
}

// Verify checks the token signature and expiry and extracts its claims.
// Returns ErrTokenExpired once the embedded expiry has passed (an expiry
// exactly equal to now counts as expired) and ErrInvalidToken for bad
// signatures, missing required claims or malformed structure.
func (c *Codec) Verify(token string) (*SessionClaims, error) {
	claims, err := c.decode(token)
	if err != nil {
		return nil, err
	}
	if !c.now().UTC().Before(claims.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}

// VerifyIgnoringExpiry checks everything Verify checks except the expiry.
// Used by flows that must inspect an expired token without rejecting it.
func (c *Codec) VerifyIgnoringExpiry(token string) (*SessionClaims, error) {
	return c.decode(token)
}

func (c *Codec) decode(token string) (*SessionClaims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: token cannot be empty", ErrInvalidToken)
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims format", ErrInvalidToken)
	}

	subjectID, _ := mapClaims["sub"].(string)
	email, _ := mapClaims["email"].(string)
	if subjectID == "" || email == "" {
		return nil, fmt.Errorf("%w: missing required claims", ErrInvalidToken)
	}

	tokenType := TokenTypeAccess
	if t, ok := mapClaims["type"].(string); ok && t != "" {
		tokenType = TokenType(t)
	}

	tokenVersion := 1
	if tv, ok := mapClaims["tv"].(float64); ok {
		tokenVersion = int(tv)
	}

	issuedAt, err := numericTime(mapClaims["iat"])
	if err != nil {
		return nil, fmt.Errorf("%w: bad iat claim", ErrInvalidToken)
	}
	expiresAt, err := numericTime(mapClaims["exp"])
	if err != nil {
		return nil, fmt.Errorf("%w: bad exp claim", ErrInvalidToken)
	}

	var extra map[string]any
	for k, v := range mapClaims {
		if _, reserved := reservedClaims[k]; reserved {
			continue
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = v
	}

	return &SessionClaims{
		SubjectID:    subjectID,
		Email:        email,
		IssuedAt:     issuedAt,
		ExpiresAt:    expiresAt,
		TokenVersion: tokenVersion,
		TokenType:    tokenType,
		Extra:        extra,
	}, nil
}

func numericTime(v any) (time.Time, error) {
	f, ok := v.(float64)
	if !ok {
		return time.Time{}, fmt.Errorf("claim is not numeric")
	}
	return time.Unix(int64(f), 0).UTC(), nil
}
