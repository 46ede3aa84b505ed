// Package sessionauth provides stateless session authentication for Go web
// backends: signed session tokens, pattern-based route protection, and a
// Google sign-in issuance flow.
//
// SessionAuth separates the problem into three layers: route policy, token
// codec, and decision engine.
//
// # Architecture
//
// RoutePolicy: classifies request paths into three tiers. Public routes skip
// auth entirely, required routes reject requests without a valid session,
// optional routes attach the user when a valid session is present and stay
// anonymous otherwise. Patterns may be exact paths, "/api/*" prefixes, glob
// wildcards or "^"-anchored regular expressions.
//
// Codec: mints and verifies self-contained signed tokens carrying the user
// ID, email, token type and a token version. No server-side session storage
// is needed to verify a request.
//
// AuthEngine: combines the two. For each request it resolves the route tier,
// verifies the bearer credential, loads the user and compares the token's
// version against the user's current version, so bumping the stored version
// revokes every outstanding token at once.
//
// # Basic Usage
//
//	codec, err := sessionauth.NewCodec(sessionauth.JWTConfig{Secret: secret})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	users := sessionauth.NewInMemoryUserStore()
//	engine := &sessionauth.AuthEngine{
//	    Codec:  codec,
//	    Policy: sessionauth.NewRoutePolicy(
//	        []string{"/api/*"},          // required
//	        []string{"/feed"},           // optional
//	        []string{"/health", "/login"}, // public
//	    ),
//	    Users: users,
//	}
//
//	verifier, err := sessionauth.NewGoogleVerifier(sessionauth.GoogleConfigFromEnv())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	flow := &sessionauth.GoogleAuth{
//	    Verifier:         verifier,
//	    Users:            users,
//	    Codec:            codec,
//	    EnableDualTokens: true,
//	}
//
//	handler, err := sessionauth.Handler(engine, flow, appMux)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.ListenAndServe(":8080", handler)
//
// Handlers read the authenticated user from the request context with
// sessionauth.UserFromContext.
//
// # Store Implementations
//
// The stores package holds a file-backed UserStore for development, with
// GORM and Google Cloud Datastore implementations in stores/gorm and
// stores/gae for production deployments.
//
// # Revocation
//
// Every token embeds the user's token version at mint time. Logout (or any
// call to UserStore.InvalidateTokens) increments the stored version, which
// invalidates all previously issued tokens without tracking them
// individually.
package sessionauth
