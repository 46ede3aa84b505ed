package client

import (
	"net/http"
)

// StaticTokenTransport adds a fixed bearer token to every request. Useful
// when the caller manages the token lifecycle itself.
type StaticTokenTransport struct {
	Base  http.RoundTripper
	Token string
}

// RoundTrip implements http.RoundTripper.
func (t *StaticTokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Token != "" {
		req2 := req.Clone(req.Context())
		req2.Header.Set("Authorization", "Bearer "+t.Token)
		req = req2
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// NewStaticTokenTransport creates a transport carrying the given token over
// http.DefaultTransport.
func NewStaticTokenTransport(token string) *StaticTokenTransport {
	return &StaticTokenTransport{Base: http.DefaultTransport, Token: token}
}

// refreshTransport injects the managed access token and transparently
// retries once after a 401 by rotating through the refresh endpoint.
type refreshTransport struct {
	client *SessionClient
	base   http.RoundTripper
}

func (t *refreshTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.client.Token()
	if err != nil {
		return nil, err
	}

	if token != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || token == "" {
		return resp, nil
	}

	// The server rejected a token we thought was current; rotate and retry
	// once.
	t.client.mu.Lock()
	cred, _ := t.client.store.GetCredential(t.client.serverURL)
	if cred == nil || !cred.HasRefreshToken() {
		t.client.mu.Unlock()
		return resp, nil
	}
	if rotateErr := t.client.rotateLocked(cred); rotateErr != nil {
		t.client.mu.Unlock()
		return resp, nil
	}
	t.client.mu.Unlock()

	newToken, _ := t.client.Token()
	if newToken == "" {
		return resp, nil
	}

	resp.Body.Close()
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+newToken)
	return t.base.RoundTrip(req)
}
