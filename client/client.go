package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// RefreshThreshold is how long before expiry the client proactively rotates
// the access token.
const RefreshThreshold = 5 * time.Minute

// Default endpoint paths, matching the routes mounted by the server's auth
// router under /auth.
const (
	DefaultLoginEndpoint   = "/auth/google"
	DefaultRefreshEndpoint = "/auth/refresh"
	DefaultLogoutEndpoint  = "/auth/logout"
)

// SessionClient is an HTTP client that manages session tokens for one
// server: it logs in with a Google ID token, attaches the access token to
// every request, and rotates it through the refresh endpoint before expiry.
type SessionClient struct {
	mu            sync.Mutex
	serverURL     string
	store         CredentialStore
	httpClient    *http.Client
	baseTransport http.RoundTripper

	loginEndpoint   string
	refreshEndpoint string
	logoutEndpoint  string
}

// sessionRequest is the JSON body for the login and refresh endpoints.
type sessionRequest struct {
	Token        string `json:"token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ClientType   string `json:"client_type,omitempty"`
}

// sessionResponse is the JSON body returned by the session endpoints.
type sessionResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	TokenType    string         `json:"token_type"`
	ExpiresIn    int64          `json:"expires_in"`
	User         map[string]any `json:"user,omitempty"`
	Code         string         `json:"code,omitempty"`
	ErrorMsg     string         `json:"error,omitempty"`
}

// ClientOption configures a SessionClient.
type ClientOption func(*SessionClient)

// WithEndpoints overrides the auth endpoint paths.
func WithEndpoints(login, refresh, logout string) ClientOption {
	return func(c *SessionClient) {
		if login != "" {
			c.loginEndpoint = login
		}
		if refresh != "" {
			c.refreshEndpoint = refresh
		}
		if logout != "" {
			c.logoutEndpoint = logout
		}
	}
}

// WithHTTPClient copies timeout, redirect and jar settings from the given
// client and wraps its transport with session handling.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *SessionClient) {
		if client == nil {
			return
		}
		if client.Transport != nil {
			c.baseTransport = client.Transport
		}
		c.httpClient.Timeout = client.Timeout
		c.httpClient.CheckRedirect = client.CheckRedirect
		c.httpClient.Jar = client.Jar
	}
}

// WithTransport sets a custom base transport (connection pooling, proxies).
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *SessionClient) {
		c.baseTransport = transport
	}
}

// NewSessionClient creates a session-managing HTTP client for a server.
func NewSessionClient(serverURL string, store CredentialStore, opts ...ClientOption) *SessionClient {
	if u, err := url.Parse(serverURL); err == nil && u.Scheme != "" && u.Host != "" {
		serverURL = fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	}

	c := &SessionClient{
		serverURL:       serverURL,
		store:           store,
		httpClient:      &http.Client{},
		baseTransport:   http.DefaultTransport,
		loginEndpoint:   DefaultLoginEndpoint,
		refreshEndpoint: DefaultRefreshEndpoint,
		logoutEndpoint:  DefaultLogoutEndpoint,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.httpClient.Transport = &refreshTransport{
		client: c,
		base:   c.baseTransport,
	}
	return c
}

// HTTPClient returns an http.Client that injects and rotates the session
// token automatically.
func (c *SessionClient) HTTPClient() *http.Client {
	return c.httpClient
}

// ServerURL returns the server this client is bound to.
func (c *SessionClient) ServerURL() string {
	return c.serverURL
}

// Token returns a current access token, rotating through the refresh
// endpoint when the stored one is about to expire. Returns "" when the
// client holds no usable credential.
func (c *SessionClient) Token() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cred, err := c.store.GetCredential(c.serverURL)
	if err != nil {
		return "", err
	}
	if cred == nil {
		return "", nil
	}

	if cred.IsExpiringSoon(RefreshThreshold) && cred.HasRefreshToken() {
		if err := c.rotateLocked(cred); err != nil {
			// A failed rotation is tolerable while the old token lives.
			if !cred.IsExpired() {
				return cred.AccessToken, nil
			}
			return "", fmt.Errorf("token expired and refresh failed: %w", err)
		}
		cred, _ = c.store.GetCredential(c.serverURL)
	}

	if cred == nil || cred.IsExpired() {
		return "", nil
	}
	return cred.AccessToken, nil
}

// Credential returns the stored credential for this server.
func (c *SessionClient) Credential() (*ServerCredential, error) {
	return c.store.GetCredential(c.serverURL)
}

// LoginWithGoogleToken exchanges a Google ID token for session tokens and
// stores them. The client identifies itself as a native client so the
// refresh token arrives in the body rather than a cookie.
func (c *SessionClient) LoginWithGoogleToken(idToken string) (*ServerCredential, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cred, user, err := c.requestSession(c.loginEndpoint, sessionRequest{
		Token:      idToken,
		ClientType: "mobile",
	})
	if err != nil {
		return nil, err
	}
	cred.UserID, _ = user["id"].(string)
	cred.UserEmail, _ = user["email"].(string)

	if err := c.store.SetCredential(c.serverURL, cred); err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}
	if err := c.store.Save(); err != nil {
		return nil, fmt.Errorf("failed to save credentials: %w", err)
	}
	return cred, nil
}

// Logout revokes the session on the server and drops the local credential.
func (c *SessionClient) Logout() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cred, _ := c.store.GetCredential(c.serverURL); cred != nil && cred.AccessToken != "" {
		req, err := http.NewRequest(http.MethodPost, c.serverURL+c.logoutEndpoint, nil)
		if err == nil {
			req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
			httpClient := &http.Client{Transport: c.baseTransport}
			if resp, err := httpClient.Do(req); err == nil {
				resp.Body.Close()
			}
		}
	}

	if err := c.store.RemoveCredential(c.serverURL); err != nil {
		return err
	}
	return c.store.Save()
}

// IsLoggedIn reports whether a non-expired credential is stored.
func (c *SessionClient) IsLoggedIn() bool {
	cred, err := c.store.GetCredential(c.serverURL)
	if err != nil || cred == nil {
		return false
	}
	return !cred.IsExpired()
}

// rotateLocked exchanges the refresh token for a new token pair.
// Caller must hold c.mu.
func (c *SessionClient) rotateLocked(cred *ServerCredential) error {
	newCred, _, err := c.requestSession(c.refreshEndpoint, sessionRequest{
		RefreshToken: cred.RefreshToken,
	})
	if err != nil {
		return err
	}

	newCred.UserID = cred.UserID
	newCred.UserEmail = cred.UserEmail
	if newCred.RefreshToken == "" {
		newCred.RefreshToken = cred.RefreshToken
	}

	if err := c.store.SetCredential(c.serverURL, newCred); err != nil {
		return fmt.Errorf("failed to store refreshed credential: %w", err)
	}
	return c.store.Save()
}

// requestSession posts to a session endpoint and converts the response into
// a credential. Uses the base transport directly to avoid recursing through
// the refresh transport.
func (c *SessionClient) requestSession(path string, req sessionRequest) (*ServerCredential, map[string]any, error) {
	jsonBody, err := json.Marshal(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpClient := &http.Client{Transport: c.baseTransport}
	resp, err := httpClient.Post(c.serverURL+path, "application/json", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	var sessionResp sessionResponse
	if err := json.Unmarshal(body, &sessionResp); err != nil {
		return nil, nil, fmt.Errorf("invalid response from server: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if sessionResp.ErrorMsg != "" {
			return nil, nil, fmt.Errorf("authentication failed: %s", sessionResp.ErrorMsg)
		}
		if sessionResp.Code != "" {
			return nil, nil, fmt.Errorf("authentication failed: %s", sessionResp.Code)
		}
		return nil, nil, fmt.Errorf("authentication failed: HTTP %d", resp.StatusCode)
	}

	now := time.Now()
	return &ServerCredential{
		AccessToken:  sessionResp.AccessToken,
		RefreshToken: sessionResp.RefreshToken,
		TokenType:    sessionResp.TokenType,
		ExpiresAt:    now.Add(time.Duration(sessionResp.ExpiresIn) * time.Second),
		CreatedAt:    now,
	}, sessionResp.User, nil
}
