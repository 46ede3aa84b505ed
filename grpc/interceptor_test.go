package grpc

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	sa "github.com/panyam/sessionauth"
)

const testSecret = "grpc-interceptor-secret-grpc-interceptor"

func newTestConfig(t *testing.T) (*InterceptorConfig, *sa.InMemoryUserStore) {
	t.Helper()
	codec, err := sa.NewCodec(sa.JWTConfig{Secret: testSecret})
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	users := sa.NewInMemoryUserStore()
	config := &InterceptorConfig{
		Config: DefaultConfig(),
		Codec:  codec,
		Policy: sa.NewRoutePolicy(
			[]string{"/pkg.Service/*"},
			[]string{"/pkg.Optional/Get"},
			[]string{"/pkg.Service/Health"},
		),
		Users: users,
	}
	return config, users
}

func mintToken(t *testing.T, config *InterceptorConfig, userID string, version int) string {
	t.Helper()
	token, err := config.Codec.IssueAccessToken(userID, userID+"@example.com", version)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	return token
}

func ctxWithToken(token string) context.Context {
	md := metadata.Pairs(DefaultMetadataKeyAuthorization, "Bearer "+token)
	return metadata.NewIncomingContext(context.Background(), md)
}

func callUnary(t *testing.T, config *InterceptorConfig, ctx context.Context, method string) (string, error) {
	t.Helper()
	interceptor := UnaryAuthInterceptor(config)
	var gotUserID string
	_, err := interceptor(ctx, nil,
		&grpc.UnaryServerInfo{FullMethod: method},
		func(ctx context.Context, req any) (any, error) {
			gotUserID = UserIDFromContext(ctx)
			return nil, nil
		})
	return gotUserID, err
}

func saveUser(t *testing.T, users *sa.InMemoryUserStore, id string) {
	t.Helper()
	if _, _, err := users.SaveUser(context.Background(), &sa.IdentityClaims{
		SubjectID: id, Email: id + "@example.com",
	}); err != nil {
		t.Fatalf("SaveUser failed: %v", err)
	}
}

func TestUnaryInterceptorRequiredMethodNoToken(t *testing.T) {
	config, _ := newTestConfig(t)

	_, err := callUnary(t, config, context.Background(), "/pkg.Service/Get")
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}

func TestUnaryInterceptorRequiredMethodValidToken(t *testing.T) {
	config, users := newTestConfig(t)
	saveUser(t, users, "user-1")

	userID, err := callUnary(t, config, ctxWithToken(mintToken(t, config, "user-1", 1)), "/pkg.Service/Get")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if userID != "user-1" {
		t.Errorf("UserIDFromContext = %q, want user-1", userID)
	}
}

func TestUnaryInterceptorPublicMethod(t *testing.T) {
	config, _ := newTestConfig(t)

	if _, err := callUnary(t, config, context.Background(), "/pkg.Service/Health"); err != nil {
		t.Fatalf("public method should pass without credentials, got %v", err)
	}
}

func TestUnaryInterceptorUnmatchedMethod(t *testing.T) {
	config, _ := newTestConfig(t)

	if _, err := callUnary(t, config, context.Background(), "/other.Service/Get"); err != nil {
		t.Fatalf("unmatched method should pass, got %v", err)
	}
}

func TestUnaryInterceptorInvalidToken(t *testing.T) {
	config, _ := newTestConfig(t)

	_, err := callUnary(t, config, ctxWithToken("not.a.token"), "/pkg.Service/Get")
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}

func TestUnaryInterceptorRevokedToken(t *testing.T) {
	config, users := newTestConfig(t)
	saveUser(t, users, "user-1")
	token := mintToken(t, config, "user-1", 1)

	if err := users.InvalidateTokens(context.Background(), "user-1"); err != nil {
		t.Fatalf("InvalidateTokens failed: %v", err)
	}

	_, err := callUnary(t, config, ctxWithToken(token), "/pkg.Service/Get")
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("revoked token should be rejected, got %v", err)
	}
}

func TestUnaryInterceptorOptionalMethod(t *testing.T) {
	config, users := newTestConfig(t)
	saveUser(t, users, "user-1")

	// No token: anonymous pass.
	userID, err := callUnary(t, config, context.Background(), "/pkg.Optional/Get")
	if err != nil {
		t.Fatalf("optional method should pass anonymously, got %v", err)
	}
	if userID != "" {
		t.Errorf("anonymous call should carry no user, got %q", userID)
	}

	// Bad token: still an anonymous pass.
	if _, err := callUnary(t, config, ctxWithToken("not.a.token"), "/pkg.Optional/Get"); err != nil {
		t.Fatalf("optional method must not reject a bad token, got %v", err)
	}

	// Valid token: user is attached.
	userID, err = callUnary(t, config, ctxWithToken(mintToken(t, config, "user-1", 1)), "/pkg.Optional/Get")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if userID != "user-1" {
		t.Errorf("UserIDFromContext = %q, want user-1", userID)
	}
}

func TestStreamInterceptor(t *testing.T) {
	config, users := newTestConfig(t)
	saveUser(t, users, "user-1")
	interceptor := StreamAuthInterceptor(config)

	// Rejected without a token.
	err := interceptor(nil, &fakeStream{ctx: context.Background()},
		&grpc.StreamServerInfo{FullMethod: "/pkg.Service/Watch"},
		func(srv any, ss grpc.ServerStream) error { return nil })
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}

	// Accepted with a token, and the stream context carries the user.
	var gotUserID string
	err = interceptor(nil, &fakeStream{ctx: ctxWithToken(mintToken(t, config, "user-1", 1))},
		&grpc.StreamServerInfo{FullMethod: "/pkg.Service/Watch"},
		func(srv any, ss grpc.ServerStream) error {
			gotUserID = UserIDFromContext(ss.Context())
			return nil
		})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if gotUserID != "user-1" {
		t.Errorf("stream UserIDFromContext = %q, want user-1", gotUserID)
	}
}

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *fakeStream) Context() context.Context { return s.ctx }
