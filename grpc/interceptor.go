package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	sa "github.com/panyam/sessionauth"
)

// InterceptorConfig configures the auth interceptors. Method names (e.g.
// "/pkg.Service/Method") are resolved through the same RoutePolicy patterns
// used for HTTP paths, so "/pkg.Service/*" protects a whole service.
type InterceptorConfig struct {
	*Config

	// Codec verifies bearer tokens found in metadata. Required.
	Codec *sa.Codec

	// Policy classifies method names into public, required and optional
	// tiers. A nil policy treats every method as public.
	Policy *sa.RoutePolicy

	// Users, when set, enables the token-version revocation check.
	Users sa.UserStore
}

// NewInterceptorConfig creates a config protecting the given method patterns.
func NewInterceptorConfig(codec *sa.Codec, requiredMethods []string) *InterceptorConfig {
	return &InterceptorConfig{
		Config: DefaultConfig(),
		Codec:  codec,
		Policy: sa.NewRoutePolicy(requiredMethods, nil, nil),
	}
}

// UnaryAuthInterceptor returns a unary interceptor that verifies the bearer
// credential per the route policy and records the caller on the context.
func UnaryAuthInterceptor(config *InterceptorConfig) grpc.UnaryServerInterceptor {
	config = ensureConfig(config)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := config.authenticate(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamAuthInterceptor returns the stream-side equivalent of
// UnaryAuthInterceptor.
func StreamAuthInterceptor(config *InterceptorConfig) grpc.StreamServerInterceptor {
	config = ensureConfig(config)
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := config.authenticate(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedStream{ServerStream: ss, ctx: ctx})
	}
}

// authenticate applies the route policy to a full method name. It returns a
// context annotated with the verified user ID, or a gRPC status error when
// the method requires auth and the credential fails.
func (c *InterceptorConfig) authenticate(ctx context.Context, fullMethod string) (context.Context, error) {
	if c.Policy == nil || c.Policy.IsPublic(fullMethod) {
		return ctx, nil
	}
	required := c.Policy.IsRequired(fullMethod)
	optional := c.Policy.IsOptional(fullMethod)
	if !required && !optional {
		return ctx, nil
	}

	md, _ := metadata.FromIncomingContext(ctx)
	token := bearerFromMetadata(md, c.MetadataKeyAuthorization)
	if token == "" {
		if required {
			return ctx, status.Error(codes.Unauthenticated, "authentication required")
		}
		return ctx, nil
	}

	claims, err := c.Codec.Verify(token)
	if err != nil {
		if !required {
			return ctx, nil
		}
		if errors.Is(err, sa.ErrTokenExpired) {
			return ctx, status.Error(codes.Unauthenticated, "token has expired")
		}
		return ctx, status.Error(codes.Unauthenticated, "invalid authentication token")
	}

	if c.Users != nil {
		version, err := c.Users.GetTokenVersion(ctx, claims.SubjectID)
		if err != nil || claims.TokenVersion < version {
			if required {
				return ctx, status.Error(codes.Unauthenticated, "token has been revoked")
			}
			return ctx, nil
		}
	}

	return ContextWithUserID(ctx, claims.SubjectID), nil
}

func ensureConfig(config *InterceptorConfig) *InterceptorConfig {
	if config == nil {
		config = &InterceptorConfig{}
	}
	if config.Config == nil {
		config.Config = DefaultConfig()
	}
	config.Config.EnsureDefaults()
	return config
}

// wrappedStream overrides the stream context with the authenticated one.
type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context { return w.ctx }
