package sessionauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
)

// ClientType distinguishes browser clients, which receive the refresh token
// in an http-only cookie, from native clients, which receive it in the
// response body.
type ClientType string

const (
	ClientTypeWeb    ClientType = "web"
	ClientTypeMobile ClientType = "mobile"
)

// Browser user agents contain one of these substrings.
var browserAgentMarkers = []string{"mozilla", "chrome", "safari", "firefox", "edg", "opera"}

// GoogleAuth orchestrates the session issuance flow: it exchanges a verified
// Google identity for session tokens, refreshes them, and revokes them on
// logout.
type GoogleAuth struct {
	Verifier IdentityVerifier
	Users    UserStore
	Codec    *Codec
	Hooks    *Hooks

	// EnableDualTokens switches to the access+refresh pair model. When
	// false a single access token is issued and /refresh re-mints from it.
	EnableDualTokens bool

	// Cookie settings for the refresh token delivered to web clients.
	CookieName     string
	CookiePath     string
	CookieSecure   bool
	CookieSameSite http.SameSite

	// OAuth optionally adds the server-side authorization-code endpoints
	// to the router. Set by NewOAuthFlow.
	OAuth *OAuthFlow

	// Session optionally mirrors the issued access token into a server
	// side session.
	Session         *scs.SessionManager
	SessionTokenKey string
}

func (g *GoogleAuth) EnsureDefaults() {
	if g.CookieName == "" {
		g.CookieName = "auth_token"
	}
	if g.CookiePath == "" {
		g.CookiePath = "/"
	}
	if g.CookieSameSite == 0 {
		g.CookieSameSite = http.SameSiteLaxMode
	}
	if g.SessionTokenKey == "" {
		g.SessionTokenKey = "auth_token"
	}
}

// Router returns the auth endpoints mounted on a fresh router. Mount it
// under your auth prefix, e.g. r.PathPrefix("/auth").Handler(...).
func (g *GoogleAuth) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/google", g.HandleLogin).Methods(http.MethodPost)
	r.HandleFunc("/refresh", g.HandleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/logout", g.HandleLogout).Methods(http.MethodPost)
	r.HandleFunc("/me", g.HandleMe).Methods(http.MethodGet)
	if g.OAuth != nil {
		r.HandleFunc("/oauth", g.OAuth.HandleRedirect).Methods(http.MethodGet)
		r.HandleFunc("/oauth/callback", g.OAuth.HandleCallback).Methods(http.MethodGet)
	}
	return r
}

type loginRequest struct {
	Token      string `json:"token"`
	IDToken    string `json:"id_token"`
	ClientType string `json:"client_type"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	ClientType   string `json:"client_type"`
}

type sessionResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	TokenType    string         `json:"token_type"`
	ExpiresIn    int            `json:"expires_in"`
	User         map[string]any `json:"user,omitempty"`
	IsNewUser    bool           `json:"is_new_user,omitempty"`
}

// HandleLogin exchanges a Google ID token for session tokens. Web clients
// get their long-lived credential in an http-only cookie (the refresh token
// in dual-token mode, else the access token) plus the access token in the
// body; native clients get everything in the body.
func (g *GoogleAuth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	g.EnsureDefaults()

	if err := g.Hooks.beforeLogin(r); err != nil {
		writeAuthError(w, http.StatusTooManyRequests, NewAuthError(ErrCodeUnauthorized, err.Error(), ""))
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.Hooks.loginFailed(err, r)
		writeAuthError(w, http.StatusBadRequest, NewAuthError(ErrCodeTokenInvalid, "Invalid request body", ""))
		return
	}
	idToken := req.IDToken
	if idToken == "" {
		idToken = req.Token
	}
	g.completeLogin(w, r, idToken, req.ClientType)
}

// completeLogin verifies the provider identity token, upserts the account
// and delivers the minted session tokens via the channel the client type
// demands. Shared by the direct token exchange and the redirect callback.
func (g *GoogleAuth) completeLogin(w http.ResponseWriter, r *http.Request, idToken, clientType string) {
	identity, err := g.Verifier.VerifyIdentityToken(r.Context(), idToken)
	if err != nil {
		g.Hooks.loginFailed(err, r)
		writeAuthError(w, http.StatusUnauthorized, NewAuthError(ErrCodeTokenInvalid, "Invalid Google token", "token"))
		return
	}

	user, created, err := g.Users.SaveUser(r.Context(), identity)
	if err != nil {
		g.Hooks.loginFailed(err, r)
		writeAuthError(w, http.StatusInternalServerError, NewAuthError(ErrCodeUnauthorized, "Failed to save user", ""))
		return
	}

	version, err := g.Users.GetTokenVersion(r.Context(), user.ID)
	if err != nil {
		version = user.TokenVersion
	}

	accessToken, err := g.Codec.IssueAccessToken(user.ID, user.Email, version)
	if err != nil {
		g.Hooks.loginFailed(err, r)
		writeAuthError(w, http.StatusInternalServerError, NewAuthError(ErrCodeUnauthorized, "Failed to create session", ""))
		return
	}

	tokens := map[string]string{"access_token": accessToken}
	var refreshToken string
	if g.EnableDualTokens {
		refreshToken, err = g.Codec.IssueRefreshToken(user.ID, user.Email, version)
		if err != nil {
			g.Hooks.loginFailed(err, r)
			writeAuthError(w, http.StatusInternalServerError, NewAuthError(ErrCodeUnauthorized, "Failed to create session", ""))
			return
		}
		tokens["refresh_token"] = refreshToken
	}

	if g.Session != nil {
		g.Session.Put(r.Context(), g.SessionTokenKey, accessToken)
	}
	g.Hooks.loginSucceeded(user, tokens, r, created)

	resp := sessionResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
		ExpiresIn:   int(g.Codec.AccessExpiry().Seconds()),
		User:        userProfile(user),
		IsNewUser:   created,
	}
	// Web clients keep their long-lived credential in an http-only cookie:
	// the refresh token in dual mode, the access token itself otherwise.
	switch detectClientType(r, clientType) {
	case ClientTypeWeb:
		if g.EnableDualTokens {
			g.setSessionCookie(w, refreshToken, g.Codec.RefreshExpiry())
		} else {
			g.setSessionCookie(w, accessToken, g.Codec.AccessExpiry())
		}
	default:
		if g.EnableDualTokens {
			resp.RefreshToken = refreshToken
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleRefresh rotates session tokens. The credential arrives either in the
// refresh cookie (web) or the request body (native); the rotated refresh
// token is delivered back on the same channel it arrived on.
func (g *GoogleAuth) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	g.EnsureDefaults()

	var req refreshRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	credential := req.RefreshToken
	fromCookie := false
	if credential == "" {
		if cookie, err := r.Cookie(g.CookieName); err == nil && cookie.Value != "" {
			credential = cookie.Value
			fromCookie = true
		}
	}
	if credential == "" {
		writeAuthError(w, http.StatusUnauthorized, NewAuthError(ErrCodeUnauthorized, "Refresh token required", ""))
		return
	}

	claims, err := g.Codec.Verify(credential)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			writeAuthError(w, http.StatusUnauthorized, NewAuthError(ErrCodeTokenExpired, "Refresh token has expired", ""))
		} else {
			writeAuthError(w, http.StatusUnauthorized, NewAuthError(ErrCodeTokenInvalid, "Invalid refresh token", ""))
		}
		return
	}

	// In dual-token mode an access token cannot stand in for a refresh
	// token, even though both verify against the same secret.
	if g.EnableDualTokens && claims.TokenType != TokenTypeRefresh {
		writeAuthError(w, http.StatusUnauthorized, NewAuthError(ErrCodeTokenInvalid, "Not a refresh token", ""))
		return
	}

	// The subject must still exist: a refresh token for a deleted account
	// must not mint fresh credentials.
	user, err := g.Users.GetUserByID(r.Context(), claims.SubjectID)
	if err != nil {
		writeAuthError(w, http.StatusUnauthorized, NewAuthError(ErrCodeUserNotFound, "User not found", ""))
		return
	}
	version := user.TokenVersion
	if claims.TokenVersion < version {
		writeAuthError(w, http.StatusUnauthorized, NewAuthError(ErrCodeTokenInvalid, "Token has been revoked", ""))
		return
	}

	accessToken, err := g.Codec.IssueAccessToken(claims.SubjectID, claims.Email, version)
	if err != nil {
		writeAuthError(w, http.StatusInternalServerError, NewAuthError(ErrCodeUnauthorized, "Failed to refresh session", ""))
		return
	}

	resp := sessionResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
		ExpiresIn:   int(g.Codec.AccessExpiry().Seconds()),
	}
	if g.EnableDualTokens {
		refreshToken, err := g.Codec.IssueRefreshToken(claims.SubjectID, claims.Email, version)
		if err != nil {
			writeAuthError(w, http.StatusInternalServerError, NewAuthError(ErrCodeUnauthorized, "Failed to refresh session", ""))
			return
		}
		if fromCookie {
			g.setSessionCookie(w, refreshToken, g.Codec.RefreshExpiry())
		} else {
			resp.RefreshToken = refreshToken
		}
	} else if fromCookie {
		// Single-token mode: the rotated credential goes back on the same
		// channel it arrived on.
		g.setSessionCookie(w, accessToken, g.Codec.AccessExpiry())
	}
	if g.Session != nil {
		g.Session.Put(r.Context(), g.SessionTokenKey, accessToken)
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleLogout revokes every outstanding token for the caller by bumping the
// stored token version, and clears the refresh cookie.
func (g *GoogleAuth) HandleLogout(w http.ResponseWriter, r *http.Request) {
	g.EnsureDefaults()

	user := UserFromContext(r.Context())
	if user == nil {
		// Fall back to the bearer credential when the engine middleware
		// is not in front of this handler.
		if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
			if claims, err := g.Codec.VerifyIgnoringExpiry(token); err == nil {
				user, _ = g.Users.GetUserByID(r.Context(), claims.SubjectID)
			}
		}
	}
	if user == nil {
		// Web clients may hold nothing but the session cookie.
		if cookie, err := r.Cookie(g.CookieName); err == nil && cookie.Value != "" {
			if claims, err := g.Codec.VerifyIgnoringExpiry(cookie.Value); err == nil {
				user, _ = g.Users.GetUserByID(r.Context(), claims.SubjectID)
			}
		}
	}
	if user == nil {
		writeAuthError(w, http.StatusUnauthorized, NewAuthError(ErrCodeUnauthorized, "Authentication required", ""))
		return
	}

	if err := g.Users.InvalidateTokens(r.Context(), user.ID); err != nil {
		slog.Error("failed to invalidate tokens on logout", "user", user.ID, "error", err)
		writeAuthError(w, http.StatusInternalServerError, NewAuthError(ErrCodeUnauthorized, "Logout failed", ""))
		return
	}

	g.clearRefreshCookie(w)
	if g.Session != nil {
		g.Session.Remove(r.Context(), g.SessionTokenKey)
	}
	g.Hooks.loggedOut(user, r)

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// HandleMe returns the authenticated caller's profile. It expects the engine
// middleware in front of it.
func (g *GoogleAuth) HandleMe(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeAuthError(w, http.StatusUnauthorized, NewAuthError(ErrCodeUnauthorized, "Authentication required", ""))
		return
	}
	writeJSON(w, http.StatusOK, userProfile(user))
}

func (g *GoogleAuth) setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     g.CookieName,
		Value:    token,
		Path:     g.CookiePath,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   g.CookieSecure,
		SameSite: g.CookieSameSite,
	})
}

func (g *GoogleAuth) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     g.CookieName,
		Value:    "",
		Path:     g.CookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   g.CookieSecure,
		SameSite: g.CookieSameSite,
	})
}

// detectClientType decides how to deliver the refresh token. An explicit
// client_type field always wins; otherwise a browser-looking User-Agent
// means web and anything else means mobile.
func detectClientType(r *http.Request, explicit string) ClientType {
	switch strings.ToLower(strings.TrimSpace(explicit)) {
	case string(ClientTypeWeb):
		return ClientTypeWeb
	case string(ClientTypeMobile):
		return ClientTypeMobile
	}

	agent := strings.ToLower(r.UserAgent())
	for _, marker := range browserAgentMarkers {
		if strings.Contains(agent, marker) {
			return ClientTypeWeb
		}
	}
	return ClientTypeMobile
}

func userProfile(user *UserRecord) map[string]any {
	return map[string]any{
		"id":      user.ID,
		"email":   user.Email,
		"name":    user.Name,
		"picture": user.Picture,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeAuthError(w http.ResponseWriter, status int, authErr *AuthError) {
	writeJSON(w, status, authErr)
}

// Handler composes the full auth surface: the engine middleware wrapped
// around the flow endpoints plus the caller's application handler.
func Handler(engine *AuthEngine, flow *GoogleAuth, app http.Handler) (http.Handler, error) {
	if engine == nil || flow == nil {
		return nil, fmt.Errorf("%w: engine and flow are required", ErrConfiguration)
	}
	flow.EnsureDefaults()

	r := mux.NewRouter()
	r.PathPrefix("/auth").Handler(http.StripPrefix("/auth", flow.Router()))
	if app != nil {
		r.PathPrefix("/").Handler(app)
	}

	mw := &Middleware{Engine: engine, AuthTokenCookieName: flow.CookieName, Session: flow.Session, SessionTokenKey: flow.SessionTokenKey}
	return mw.Handler(r), nil
}
