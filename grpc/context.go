// Package grpc adapts the sessionauth engine to gRPC services: interceptors
// that verify bearer tokens from request metadata and resolve each method
// name through the route policy, plus helpers for carrying the authenticated
// identity across process boundaries.
package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"
)

// Default metadata keys.
const (
	// DefaultMetadataKeyAuthorization carries the bearer credential.
	DefaultMetadataKeyAuthorization = "authorization"

	// DefaultMetadataKeyUserID carries the verified user ID when one
	// service forwards a request on behalf of an already-authenticated
	// caller.
	DefaultMetadataKeyUserID = "x-user-id"
)

// Config holds the metadata key configuration.
type Config struct {
	// MetadataKeyAuthorization is the metadata key holding the bearer
	// token. Defaults to "authorization".
	MetadataKeyAuthorization string

	// MetadataKeyUserID is the metadata key holding a pre-verified user
	// ID. Defaults to "x-user-id".
	MetadataKeyUserID string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MetadataKeyAuthorization: DefaultMetadataKeyAuthorization,
		MetadataKeyUserID:        DefaultMetadataKeyUserID,
	}
}

// EnsureDefaults fills in default values for any unset fields.
func (c *Config) EnsureDefaults() {
	if c.MetadataKeyAuthorization == "" {
		c.MetadataKeyAuthorization = DefaultMetadataKeyAuthorization
	}
	if c.MetadataKeyUserID == "" {
		c.MetadataKeyUserID = DefaultMetadataKeyUserID
	}
}

type contextKey string

const userIDContextKey = contextKey("sessionauth.grpc.userid")

// ContextWithUserID records the verified user ID on the server-side context.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext returns the user ID verified by the interceptor, or ""
// for anonymous requests.
func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDContextKey).(string)
	return userID
}

// IsAuthenticated reports whether the interceptor verified a caller.
func IsAuthenticated(ctx context.Context) bool {
	return UserIDFromContext(ctx) != ""
}

// TokenToOutgoingContext attaches a bearer token to an outgoing request.
func TokenToOutgoingContext(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, DefaultMetadataKeyAuthorization, "Bearer "+token)
}

// UserIDToOutgoingContext forwards a verified user ID to a downstream
// service. Only meaningful between services that trust each other.
func UserIDToOutgoingContext(ctx context.Context, userID string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, DefaultMetadataKeyUserID, userID)
}

// bearerFromMetadata pulls the bearer credential out of incoming metadata.
func bearerFromMetadata(md metadata.MD, key string) string {
	for _, value := range md.Get(key) {
		if token, ok := strings.CutPrefix(value, "Bearer "); ok && token != "" {
			return token
		}
	}
	return ""
}
