// Command sessionauth-demo runs a small host application protected by
// sessionauth. It wires the Google issuance flow, the route-policy
// middleware and a file-backed user store together the way a real backend
// would.
//
// Configuration comes from the environment:
//
//	JWT_SECRET                  signing secret (required)
//	GOOGLE_CLIENT_ID            Google OAuth client ID (required)
//	GOOGLE_CLIENT_SECRET        Google OAuth client secret
//	GOOGLE_CALLBACK_URL         OAuth callback, e.g. http://localhost:8080/auth/oauth/callback
//	DEMO_ADDR                   listen address, default :8080
//	DEMO_STORAGE                user store directory, default ./data
package main

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"

	sa "github.com/panyam/sessionauth"
	"github.com/panyam/sessionauth/stores"
)

func main() {
	cfg := sa.AuthConfigFromEnv(
		[]string{"/api/*"},
		[]string{"/feed"},
		[]string{"/", "/health"},
		nil,
	)

	codec, err := sa.NewCodec(cfg.JWT)
	if err != nil {
		slog.Error("failed to create token codec", "error", err)
		os.Exit(1)
	}
	verifier, err := sa.NewGoogleVerifier(cfg.Google)
	if err != nil {
		slog.Error("failed to create Google verifier", "error", err)
		os.Exit(1)
	}

	storagePath := os.Getenv("DEMO_STORAGE")
	if storagePath == "" {
		storagePath = "./data"
	}
	users := stores.NewFSUserStore(storagePath)

	sessions := scs.New()
	sessions.Lifetime = cfg.JWT.RefreshExpiry
	sessions.Cookie.HttpOnly = true

	engine := &sa.AuthEngine{
		Codec:       codec,
		Policy:      cfg.RoutePolicy(),
		Users:       users,
		AdminEmails: cfg.AdminEmails,
	}
	flow := &sa.GoogleAuth{
		Verifier:         verifier,
		Users:            users,
		Codec:            codec,
		EnableDualTokens: true,
		Session:          sessions,
		Hooks: &sa.Hooks{
			OnLoginSuccess: func(user *sa.UserRecord, tokens map[string]string, r *http.Request, isNewUser bool) {
				slog.Info("login", "user", user.ID, "email", user.Email, "new", isNewUser)
			},
			OnLogout: func(user *sa.UserRecord, r *http.Request) {
				slog.Info("logout", "user", user.ID)
			},
		},
	}
	sa.NewOAuthFlow(cfg.Google, flow)

	app := mux.NewRouter()
	app.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok\n")
	})
	app.HandleFunc("/api/whoami", func(w http.ResponseWriter, r *http.Request) {
		verdict := sa.VerdictFromContext(r.Context())
		io.WriteString(w, "user: "+verdict.User.Email+"\n")
	})
	app.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		if user := sa.UserFromContext(r.Context()); user != nil {
			io.WriteString(w, "feed for "+user.Email+"\n")
			return
		}
		io.WriteString(w, "anonymous feed\n")
	})
	app.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "sessionauth demo; sign in at /auth/oauth\n")
	})

	handler, err := sa.Handler(engine, flow, app)
	if err != nil {
		slog.Error("failed to compose handler", "error", err)
		os.Exit(1)
	}

	addr := os.Getenv("DEMO_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	server := &http.Server{
		Addr:         addr,
		Handler:      sessions.LoadAndSave(handler),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	slog.Info("listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}
