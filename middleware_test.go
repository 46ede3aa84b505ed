package sessionauth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sa "github.com/panyam/sessionauth"
)

func newTestMiddleware(t *testing.T) (*sa.Middleware, *sa.InMemoryUserStore) {
	t.Helper()
	engine, users := newTestEngine(t)
	return &sa.Middleware{Engine: engine}, users
}

// echoHandler records the verdict the middleware attached.
func echoHandler(verdict **sa.AuthVerdict) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*verdict = sa.VerdictFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareRejectsProtectedRoute(t *testing.T) {
	mw, _ := newTestMiddleware(t)
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run for a rejected request")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["code"] != sa.ErrCodeUnauthorized {
		t.Errorf("code = %v, want %s", body["code"], sa.ErrCodeUnauthorized)
	}
}

func TestMiddlewarePassesPublicRoute(t *testing.T) {
	mw, _ := newTestMiddleware(t)
	var verdict *sa.AuthVerdict
	handler := mw.Handler(echoHandler(&verdict))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if verdict == nil || verdict.Authenticated {
		t.Errorf("public route verdict = %+v, want anonymous pass", verdict)
	}
}

func TestMiddlewareAcceptsHeaderToken(t *testing.T) {
	mw, users := newTestMiddleware(t)
	user := saveTestUser(t, users, "user-1", "u@example.com")
	token, err := mw.Engine.Codec.IssueAccessToken(user.ID, user.Email, user.TokenVersion)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	var verdict *sa.AuthVerdict
	handler := mw.Handler(echoHandler(&verdict))

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if verdict == nil || !verdict.Authenticated || verdict.User.ID != user.ID {
		t.Errorf("verdict = %+v, want authenticated user-1", verdict)
	}
}

func TestMiddlewareAcceptsCookieToken(t *testing.T) {
	mw, users := newTestMiddleware(t)
	user := saveTestUser(t, users, "user-1", "u@example.com")
	token, err := mw.Engine.Codec.IssueAccessToken(user.ID, user.Email, user.TokenVersion)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	var verdict *sa.AuthVerdict
	handler := mw.Handler(echoHandler(&verdict))

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if verdict == nil || !verdict.Authenticated {
		t.Errorf("cookie credential should authenticate, verdict = %+v", verdict)
	}
}

func TestMiddlewareHeaderBeatsCookie(t *testing.T) {
	mw, users := newTestMiddleware(t)
	user := saveTestUser(t, users, "user-1", "u@example.com")
	token, err := mw.Engine.Codec.IssueAccessToken(user.ID, user.Email, user.TokenVersion)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run when the header credential is bad")
	}))

	// Bad header with a good cookie: the header wins and the request fails.
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestMiddlewarePassesPreflight(t *testing.T) {
	mw, _ := newTestMiddleware(t)
	called := false
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/users", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if !called {
		t.Error("OPTIONS preflight should bypass auth")
	}
}

func TestMiddlewareCustomErrorHandler(t *testing.T) {
	mw, _ := newTestMiddleware(t)
	mw.OnAuthError = func(w http.ResponseWriter, r *http.Request, authErr *sa.AuthError) {
		http.Redirect(w, r, "/login", http.StatusFound)
	}
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302 from custom handler", w.Code)
	}
}
