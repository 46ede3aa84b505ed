package sessionauth

import (
	"log/slog"
	"net/http"
)

// Hooks are optional extension points around the login lifecycle. All fields
// may be nil.
//
// BeforeLogin runs before any credential verification and may veto the
// attempt by returning an error (rate limiting, abuse checks); the login
// aborts and the error is reported to the caller. The remaining hooks are
// observational: a panic or error inside them is logged and swallowed so
// they can never change the outcome of the request.
type Hooks struct {
	BeforeLogin    func(r *http.Request) error
	OnLoginSuccess func(user *UserRecord, tokens map[string]string, r *http.Request, isNewUser bool)
	OnLoginError   func(err error, r *http.Request)
	OnLogout       func(user *UserRecord, r *http.Request)
}

func (h *Hooks) beforeLogin(r *http.Request) error {
	if h == nil || h.BeforeLogin == nil {
		return nil
	}
	return h.BeforeLogin(r)
}

func (h *Hooks) loginSucceeded(user *UserRecord, tokens map[string]string, r *http.Request, isNewUser bool) {
	if h == nil || h.OnLoginSuccess == nil {
		return
	}
	defer recoverHook("on_login_success")
	h.OnLoginSuccess(user, tokens, r, isNewUser)
}

func (h *Hooks) loginFailed(err error, r *http.Request) {
	if h == nil || h.OnLoginError == nil {
		return
	}
	defer recoverHook("on_login_error")
	h.OnLoginError(err, r)
}

func (h *Hooks) loggedOut(user *UserRecord, r *http.Request) {
	if h == nil || h.OnLogout == nil {
		return
	}
	defer recoverHook("on_logout")
	h.OnLogout(user, r)
}

func recoverHook(name string) {
	if err := recover(); err != nil {
		slog.Error("auth hook panicked", "hook", name, "error", err)
	}
}
