package sessionauth

import (
	"context"
	"errors"
	"slices"
	"strings"
)

// AuthVerdict is the outcome of evaluating a request against the route
// policy and the presented credentials.
type AuthVerdict struct {
	// Authenticated is true when a valid, current session was established.
	Authenticated bool

	// User is the loaded account, set only when Authenticated is true.
	User *UserRecord

	// SubjectID and Email echo the verified token claims.
	SubjectID string
	Email     string

	// IsAdmin is true when the authenticated user passes the admin check.
	IsAdmin bool

	// Err is set when the request must be rejected. It is nil for public
	// routes, for optional routes with absent or bad credentials, and for
	// successfully authenticated requests.
	Err *AuthError
}

// AuthEngine evaluates requests. For each request it resolves the route's
// auth tier and then verifies the bearer credential as the tier demands.
type AuthEngine struct {
	Codec  *Codec
	Policy *RoutePolicy
	Users  UserStore

	// IsAdmin overrides admin detection. When nil, membership of the
	// user's email in AdminEmails decides.
	IsAdmin func(user *UserRecord) bool

	// AdminEmails lists admin accounts, used when IsAdmin is nil.
	AdminEmails []string
}

// Authenticate evaluates a request path and its Authorization header value.
//
// Public routes pass with no verdict either way. Routes with no tier match
// are treated as public. Required routes reject missing, malformed, invalid,
// expired and revoked credentials; optional routes degrade the same failures
// to an anonymous pass.
func (e *AuthEngine) Authenticate(ctx context.Context, path, authHeader string) *AuthVerdict {
	if e.Policy != nil && e.Policy.IsPublic(path) {
		return &AuthVerdict{}
	}

	required := e.Policy != nil && e.Policy.IsRequired(path)
	optional := e.Policy != nil && e.Policy.IsOptional(path)
	if !required && !optional {
		return &AuthVerdict{}
	}

	if authHeader == "" {
		if required {
			return rejected(ErrCodeUnauthorized, "Authentication required")
		}
		return &AuthVerdict{}
	}

	// A header that is present but not a well-formed Bearer credential is a
	// bad token, not an absent one.
	token, ok := bearerToken(authHeader)
	if !ok {
		if required {
			return rejected(ErrCodeTokenInvalid, "Invalid authentication token")
		}
		return &AuthVerdict{}
	}

	claims, err := e.Codec.Verify(token)
	if err != nil {
		if !required {
			return &AuthVerdict{}
		}
		if errors.Is(err, ErrTokenExpired) {
			return rejected(ErrCodeTokenExpired, "Token has expired")
		}
		return rejected(ErrCodeTokenInvalid, "Invalid authentication token")
	}

	user, err := e.Users.GetUserByID(ctx, claims.SubjectID)
	if err != nil {
		if !required {
			return &AuthVerdict{}
		}
		if errors.Is(err, ErrUserNotFound) {
			return rejected(ErrCodeUserNotFound, "User not found")
		}
		return rejected(ErrCodeUnauthorized, "Failed to load user")
	}

	// A token minted before the last revocation carries a stale version.
	if claims.TokenVersion < user.TokenVersion {
		if !required {
			return &AuthVerdict{}
		}
		return rejected(ErrCodeTokenInvalid, "Token has been revoked")
	}

	return &AuthVerdict{
		Authenticated: true,
		User:          user,
		SubjectID:     claims.SubjectID,
		Email:         claims.Email,
		IsAdmin:       e.isAdmin(user),
	}
}

func (e *AuthEngine) isAdmin(user *UserRecord) bool {
	if e.IsAdmin != nil {
		return e.IsAdmin(user)
	}
	return slices.Contains(e.AdminEmails, user.Email)
}

func rejected(code, message string) *AuthVerdict {
	return &AuthVerdict{Err: NewAuthError(code, message, "")}
}

// bearerToken extracts the credential from an Authorization header value.
// Only the Bearer scheme is honored.
func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
