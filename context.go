package sessionauth

import "context"

type contextKey string

const verdictContextKey = contextKey("sessionauth.verdict")

// ContextWithVerdict attaches an auth verdict to the request context.
func ContextWithVerdict(ctx context.Context, verdict *AuthVerdict) context.Context {
	return context.WithValue(ctx, verdictContextKey, verdict)
}

// VerdictFromContext returns the auth verdict attached by the middleware,
// or nil when none is present.
func VerdictFromContext(ctx context.Context) *AuthVerdict {
	verdict, _ := ctx.Value(verdictContextKey).(*AuthVerdict)
	return verdict
}

// UserFromContext returns the authenticated user, or nil for anonymous
// requests.
func UserFromContext(ctx context.Context) *UserRecord {
	if verdict := VerdictFromContext(ctx); verdict != nil {
		return verdict.User
	}
	return nil
}

// UserIDFromContext returns the authenticated user's ID, or "" for
// anonymous requests.
func UserIDFromContext(ctx context.Context) string {
	if user := UserFromContext(ctx); user != nil {
		return user.ID
	}
	return ""
}
