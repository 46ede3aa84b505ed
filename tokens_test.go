package sessionauth

import (
	"errors"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec(JWTConfig{Secret: testSecret})
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	return codec
}

func TestNewCodecRequiresSecret(t *testing.T) {
	_, err := NewCodec(JWTConfig{})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for empty secret, got %v", err)
	}
}

func TestNewCodecRejectsUnknownAlgorithm(t *testing.T) {
	_, err := NewCodec(JWTConfig{Secret: testSecret, Algorithm: "RS256"})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for unsupported algorithm, got %v", err)
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Issue("user-1", "u@example.com", TokenTypeAccess, 3,
		map[string]any{"role": "editor"}, 0)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	claims, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.SubjectID != "user-1" {
		t.Errorf("SubjectID = %q, want user-1", claims.SubjectID)
	}
	if claims.Email != "u@example.com" {
		t.Errorf("Email = %q, want u@example.com", claims.Email)
	}
	if claims.TokenVersion != 3 {
		t.Errorf("TokenVersion = %d, want 3", claims.TokenVersion)
	}
	if claims.TokenType != TokenTypeAccess {
		t.Errorf("TokenType = %q, want access", claims.TokenType)
	}
	if role, _ := claims.Extra["role"].(string); role != "editor" {
		t.Errorf("Extra[role] = %v, want editor", claims.Extra["role"])
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt); got != DefaultAccessExpiry {
		t.Errorf("expiry window = %v, want %v", got, DefaultAccessExpiry)
	}
}

func TestIssueNormalizesTokenVersion(t *testing.T) {
	codec := newTestCodec(t)

	for _, version := range []int{0, -5} {
		token, err := codec.Issue("user-1", "u@example.com", TokenTypeAccess, version, nil, 0)
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		claims, err := codec.Verify(token)
		if err != nil {
			t.Fatalf("Verify failed: %v", err)
		}
		if claims.TokenVersion != 1 {
			t.Errorf("version %d normalized to %d, want 1", version, claims.TokenVersion)
		}
	}
}

func TestIssueReservedClaimsWinOverExtra(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Issue("user-1", "u@example.com", TokenTypeAccess, 2,
		map[string]any{"sub": "attacker", "tv": 999, "role": "editor"}, 0)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	claims, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.SubjectID != "user-1" {
		t.Errorf("SubjectID = %q, reserved claim should win", claims.SubjectID)
	}
	if claims.TokenVersion != 2 {
		t.Errorf("TokenVersion = %d, reserved claim should win", claims.TokenVersion)
	}
	if role, _ := claims.Extra["role"].(string); role != "editor" {
		t.Errorf("non-reserved extra claim lost: %v", claims.Extra)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	codec := newTestCodec(t)
	base := time.Now().UTC()

	codec.now = func() time.Time { return base }
	token, err := codec.IssueAccessToken("user-1", "u@example.com", 1)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	codec.now = func() time.Time { return base.Add(DefaultAccessExpiry + time.Second) }
	if _, err := codec.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyExpiryBoundary(t *testing.T) {
	codec := newTestCodec(t)
	base := time.Now().UTC().Truncate(time.Second)

	codec.now = func() time.Time { return base }
	token, err := codec.IssueAccessToken("user-1", "u@example.com", 1)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// One second before expiry the token is still good.
	codec.now = func() time.Time { return base.Add(DefaultAccessExpiry - time.Second) }
	if _, err := codec.Verify(token); err != nil {
		t.Fatalf("token just before expiry should verify, got %v", err)
	}

	// Exactly at expiry it is already expired.
	codec.now = func() time.Time { return base.Add(DefaultAccessExpiry) }
	if _, err := codec.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("token at exact expiry should be expired, got %v", err)
	}
}

func TestVerifyIgnoringExpiry(t *testing.T) {
	codec := newTestCodec(t)
	base := time.Now().UTC()

	codec.now = func() time.Time { return base }
	token, err := codec.IssueRefreshToken("user-1", "u@example.com", 4)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	codec.now = func() time.Time { return base.Add(DefaultRefreshExpiry + time.Hour) }
	claims, err := codec.VerifyIgnoringExpiry(token)
	if err != nil {
		t.Fatalf("VerifyIgnoringExpiry failed: %v", err)
	}
	if claims.TokenType != TokenTypeRefresh || claims.TokenVersion != 4 {
		t.Errorf("claims = %+v, want refresh token at version 4", claims)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	codec := newTestCodec(t)
	other, err := NewCodec(JWTConfig{Secret: "another-secret-another-secret-12"})
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	foreign, err := other.IssueAccessToken("user-1", "u@example.com", 1)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	noSub, err := codec.Issue("", "u@example.com", TokenTypeAccess, 1, nil, 0)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	noEmail, err := codec.Issue("user-1", "", TokenTypeAccess, 1, nil, 0)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"wrong signature", foreign},
		{"missing sub", noSub},
		{"missing email", noEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := codec.Verify(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify(%s) = %v, want ErrInvalidToken", tt.name, err)
			}
		})
	}
}

func TestIssueCustomLifetime(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Issue("user-1", "u@example.com", TokenTypeAccess, 1, nil, time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	claims, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt); got != time.Hour {
		t.Errorf("expiry window = %v, want 1h", got)
	}
}

func TestRefreshTokenLifetime(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.IssueRefreshToken("user-1", "u@example.com", 1)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	claims, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt); got != DefaultRefreshExpiry {
		t.Errorf("expiry window = %v, want %v", got, DefaultRefreshExpiry)
	}
}
