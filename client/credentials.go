// Package client provides client-side helpers for services protected by
// sessionauth: credential storage, automatic access-token refresh against
// the /auth/refresh endpoint, and http.Client integration.
package client

import (
	"time"
)

// ServerCredential holds the session tokens for a single server.
type ServerCredential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	UserID       string    `json:"user_id,omitempty"`
	UserEmail    string    `json:"user_email,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsExpired reports whether the access token has expired.
func (c *ServerCredential) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// IsExpiringSoon reports whether the access token expires within the given
// window.
func (c *ServerCredential) IsExpiringSoon(within time.Duration) bool {
	return time.Now().Add(within).After(c.ExpiresAt)
}

// HasRefreshToken reports whether a refresh token is available for rotation.
func (c *ServerCredential) HasRefreshToken() bool {
	return c.RefreshToken != ""
}

// CredentialStore stores and retrieves per-server credentials.
type CredentialStore interface {
	// GetCredential retrieves the credential for a server URL.
	// Returns nil, nil when no credential exists for the server.
	GetCredential(serverURL string) (*ServerCredential, error)

	// SetCredential stores the credential for a server URL.
	SetCredential(serverURL string, cred *ServerCredential) error

	// RemoveCredential removes the credential for a server URL.
	RemoveCredential(serverURL string) error

	// ListServers returns all server URLs with stored credentials.
	ListServers() ([]string, error)

	// Save persists any pending changes (for stores that batch writes).
	Save() error
}
