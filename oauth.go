package sessionauth

import (
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const oauthStateCookie = "oauthstate"

// OAuthFlow implements the server-side authorization-code flow for browsers
// that cannot obtain a Google ID token directly. The redirect endpoint sends
// the user to Google's consent page; the callback exchanges the code, pulls
// the ID token out of the token response and hands it to the session
// issuance flow.
type OAuthFlow struct {
	Config oauth2.Config
	Flow   *GoogleAuth
}

// NewOAuthFlow wires a Google authorization-code flow in front of the given
// session issuance flow.
func NewOAuthFlow(cfg GoogleConfig, flow *GoogleAuth) *OAuthFlow {
	o := &OAuthFlow{
		Config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		Flow: flow,
	}
	if flow != nil {
		flow.OAuth = o
	}
	return o
}

// HandleRedirect starts the flow: sets the anti-forgery state cookie and
// redirects to Google's consent page.
func (o *OAuthFlow) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	state := o.setStateCookie(w)
	http.Redirect(w, r, o.Config.AuthCodeURL(state), http.StatusFound)
}

// HandleCallback finishes the flow: checks the state cookie, exchanges the
// authorization code and issues session tokens from the returned ID token.
func (o *OAuthFlow) HandleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || r.FormValue("state") != stateCookie.Value {
		o.clearStateCookie(w)
		writeAuthError(w, http.StatusBadRequest, NewAuthError(ErrCodeTokenInvalid, "Invalid OAuth state", "state"))
		return
	}
	o.clearStateCookie(w)

	token, err := o.Config.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		slog.Warn("oauth code exchange failed", "error", err)
		writeAuthError(w, http.StatusUnauthorized, NewAuthError(ErrCodeTokenInvalid, "Code exchange failed", "code"))
		return
	}

	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		writeAuthError(w, http.StatusUnauthorized, NewAuthError(ErrCodeTokenInvalid, "No identity token in response", ""))
		return
	}

	// The callback always lands in a browser.
	o.Flow.completeLogin(w, r, idToken, string(ClientTypeWeb))
}

func (o *OAuthFlow) setStateCookie(w http.ResponseWriter) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		slog.Error("failed to generate oauth state", "error", err)
	}
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
	})
	return state
}

func (o *OAuthFlow) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/", MaxAge: -1})
}
