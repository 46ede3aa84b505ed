package sessionauth

import (
	"errors"
	"fmt"
)

// Sentinel errors for the session token lifecycle and issuance flow.
var (
	// ErrConfiguration indicates a fatal construction-time problem such as a
	// missing signing secret or Google client ID.
	ErrConfiguration = errors.New("configuration error")

	// ErrTokenExpired indicates a structurally valid session token whose
	// expiry time has passed. Recoverable via the refresh flow.
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidToken indicates a malformed token, a bad signature, a wrong
	// token type, or a token revoked by a version bump. These cases are
	// deliberately indistinguishable to callers.
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidIdentityToken indicates the identity provider rejected the
	// presented credential (bad signature, issuer, audience, or expiry).
	ErrInvalidIdentityToken = errors.New("invalid identity token")

	// ErrUserNotFound indicates the subject of a verified token has no
	// backing user record.
	ErrUserNotFound = errors.New("user not found")

	// ErrSaveFailed indicates the user store could not persist a record
	// during login.
	ErrSaveFailed = errors.New("failed to save user")
)

// Error codes surfaced in verdicts and JSON error responses.
const (
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeTokenInvalid = "TOKEN_INVALID"
	ErrCodeTokenExpired = "TOKEN_EXPIRED"
	ErrCodeUserNotFound = "USER_NOT_FOUND"
)

// AuthError is a structured authentication error with a stable code that
// clients can branch on. Field is optional and names the offending input.
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
	Field   string `json:"field,omitempty"`
}

// NewAuthError creates an AuthError with the given code, message and field.
func NewAuthError(code, message, field string) *AuthError {
	return &AuthError{Code: code, Message: message, Field: field}
}

func (e *AuthError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
