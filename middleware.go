package sessionauth

import (
	"encoding/json"
	"net/http"

	"github.com/alexedwards/scs/v2"
)

// Middleware wires the auth engine into an http.Handler chain. For every
// request it resolves the route tier, verifies the presented credential and
// either rejects the request or forwards it with the verdict in its context.
type Middleware struct {
	Engine *AuthEngine

	// AuthTokenHeaderName is the header carrying the bearer credential.
	// Defaults to "Authorization".
	AuthTokenHeaderName string

	// AuthTokenCookieName is the cookie consulted when the header is
	// absent. Defaults to "auth_token".
	AuthTokenCookieName string

	// Session optionally supplies a server-side session as a third token
	// source, keyed by SessionTokenKey.
	Session         *scs.SessionManager
	SessionTokenKey string

	// OnAuthError overrides the JSON 401 response for rejected requests.
	OnAuthError func(w http.ResponseWriter, r *http.Request, authErr *AuthError)
}

func (m *Middleware) EnsureDefaults() {
	if m.AuthTokenHeaderName == "" {
		m.AuthTokenHeaderName = "Authorization"
	}
	if m.AuthTokenCookieName == "" {
		m.AuthTokenCookieName = "auth_token"
	}
	if m.SessionTokenKey == "" {
		m.SessionTokenKey = "auth_token"
	}
}

// Handler evaluates each request against the route policy before invoking
// next. CORS preflight requests pass through untouched.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	m.EnsureDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		verdict := m.Engine.Authenticate(r.Context(), r.URL.Path, m.authHeader(r))
		if verdict.Err != nil {
			m.rejectRequest(w, r, verdict.Err)
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithVerdict(r.Context(), verdict)))
	})
}

// authHeader locates the bearer credential, preferring the header, then the
// cookie, then the server-side session.
func (m *Middleware) authHeader(r *http.Request) string {
	if v := r.Header.Get(m.AuthTokenHeaderName); v != "" {
		return v
	}
	if cookie, err := r.Cookie(m.AuthTokenCookieName); err == nil && cookie.Value != "" {
		return "Bearer " + cookie.Value
	}
	if m.Session != nil {
		if token := m.Session.GetString(r.Context(), m.SessionTokenKey); token != "" {
			return "Bearer " + token
		}
	}
	return ""
}

func (m *Middleware) rejectRequest(w http.ResponseWriter, r *http.Request, authErr *AuthError) {
	if m.OnAuthError != nil {
		m.OnAuthError(w, r, authErr)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(authErr)
}
