package sessionauth

import (
	"os"
	"strconv"
	"time"
)

// Default token lifetimes. Access tokens are short-lived and refresh tokens
// long-lived; both can be overridden per-issue.
const (
	DefaultAccessExpiry  = 15 * time.Minute
	DefaultRefreshExpiry = 7 * 24 * time.Hour
)

// JWTConfig configures the session token codec.
type JWTConfig struct {
	// Secret signs and verifies session tokens. Required; a secret shorter
	// than 32 characters is accepted with a logged warning.
	Secret string

	// Algorithm selects the HMAC signing method: HS256 (default), HS384 or
	// HS512.
	Algorithm string

	// AccessExpiry is the access token lifetime. Defaults to 15 minutes.
	AccessExpiry time.Duration

	// RefreshExpiry is the refresh token lifetime. Defaults to 7 days.
	RefreshExpiry time.Duration
}

// EnsureDefaults fills in default values for any unset fields.
func (c *JWTConfig) EnsureDefaults() {
	if c.Algorithm == "" {
		c.Algorithm = "HS256"
	}
	if c.AccessExpiry <= 0 {
		c.AccessExpiry = DefaultAccessExpiry
	}
	if c.RefreshExpiry <= 0 {
		c.RefreshExpiry = DefaultRefreshExpiry
	}
}

// JWTConfigFromEnv builds a JWTConfig from JWT_SECRET, JWT_ALGORITHM,
// JWT_ACCESS_EXPIRY_MINUTES and JWT_REFRESH_EXPIRY_DAYS.
func JWTConfigFromEnv() JWTConfig {
	cfg := JWTConfig{
		Secret:    os.Getenv("JWT_SECRET"),
		Algorithm: os.Getenv("JWT_ALGORITHM"),
	}
	if mins := envInt("JWT_ACCESS_EXPIRY_MINUTES"); mins > 0 {
		cfg.AccessExpiry = time.Duration(mins) * time.Minute
	}
	if days := envInt("JWT_REFRESH_EXPIRY_DAYS"); days > 0 {
		cfg.RefreshExpiry = time.Duration(days) * 24 * time.Hour
	}
	return cfg
}

// GoogleConfig configures Google ID token verification.
type GoogleConfig struct {
	// ClientID is the Google OAuth 2.0 client ID tokens must be issued for.
	ClientID string

	// ClientSecret is only needed for the server-side OAuth code flow.
	ClientSecret string

	// CallbackURL is the redirect URL for the server-side OAuth code flow.
	CallbackURL string
}

// GoogleConfigFromEnv builds a GoogleConfig from GOOGLE_CLIENT_ID (with
// AUTH_SIGN_IN_GOOGLE_CLIENT_ID as a fallback), GOOGLE_CLIENT_SECRET and
// GOOGLE_CALLBACK_URL.
func GoogleConfigFromEnv() GoogleConfig {
	clientID := os.Getenv("GOOGLE_CLIENT_ID")
	if clientID == "" {
		clientID = os.Getenv("AUTH_SIGN_IN_GOOGLE_CLIENT_ID")
	}
	return GoogleConfig{
		ClientID:     clientID,
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		CallbackURL:  os.Getenv("GOOGLE_CALLBACK_URL"),
	}
}

// AuthConfig bundles everything needed to stand up the full auth layer:
// codec configuration, identity provider configuration, route tiers and the
// admin allowlist.
type AuthConfig struct {
	JWT    JWTConfig
	Google GoogleConfig

	// Route patterns per authentication tier. See RouteMatcher for the
	// pattern mini-language.
	RequiredRoutes []string
	OptionalRoutes []string
	PublicRoutes   []string

	// AdminEmails is the allowlist used when no AdminChecker callback is
	// configured on the engine.
	AdminEmails []string
}

// AuthConfigFromEnv builds an AuthConfig from the environment. Route lists
// and admin emails are passed explicitly since they are application shape,
// not deployment shape.
func AuthConfigFromEnv(required, optional, public, adminEmails []string) AuthConfig {
	return AuthConfig{
		JWT:            JWTConfigFromEnv(),
		Google:         GoogleConfigFromEnv(),
		RequiredRoutes: required,
		OptionalRoutes: optional,
		PublicRoutes:   public,
		AdminEmails:    adminEmails,
	}
}

// RoutePolicy builds the route policy described by this config.
func (c *AuthConfig) RoutePolicy() *RoutePolicy {
	return NewRoutePolicy(c.RequiredRoutes, c.OptionalRoutes, c.PublicRoutes)
}

func envInt(name string) int {
	v, err := strconv.Atoi(os.Getenv(name))
	if err != nil {
		return 0
	}
	return v
}
