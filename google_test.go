package sessionauth

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/api/idtoken"
)

func newTestVerifier(t *testing.T, payload *idtoken.Payload, validateErr error) *GoogleVerifier {
	t.Helper()
	v, err := NewGoogleVerifier(GoogleConfig{ClientID: "client-123"})
	if err != nil {
		t.Fatalf("NewGoogleVerifier failed: %v", err)
	}
	v.validate = func(ctx context.Context, token, audience string) (*idtoken.Payload, error) {
		if audience != "client-123" {
			return nil, fmt.Errorf("unexpected audience %q", audience)
		}
		if validateErr != nil {
			return nil, validateErr
		}
		return payload, nil
	}
	return v
}

func googlePayload() *idtoken.Payload {
	return &idtoken.Payload{
		Issuer:   "https://accounts.google.com",
		Subject:  "google-sub-1",
		Audience: "client-123",
		Claims: map[string]any{
			"email":          "u@example.com",
			"email_verified": true,
			"name":           "Test User",
			"picture":        "https://example.com/pic.png",
		},
	}
}

func TestNewGoogleVerifierRequiresClientID(t *testing.T) {
	_, err := NewGoogleVerifier(GoogleConfig{})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestVerifyIdentityToken(t *testing.T) {
	v := newTestVerifier(t, googlePayload(), nil)

	claims, err := v.VerifyIdentityToken(context.Background(), "some-token")
	if err != nil {
		t.Fatalf("VerifyIdentityToken failed: %v", err)
	}
	if claims.SubjectID != "google-sub-1" {
		t.Errorf("SubjectID = %q", claims.SubjectID)
	}
	if claims.Email != "u@example.com" || !claims.EmailVerified {
		t.Errorf("claims = %+v", claims)
	}
}

func TestVerifyIdentityTokenBareIssuer(t *testing.T) {
	payload := googlePayload()
	payload.Issuer = "accounts.google.com"
	v := newTestVerifier(t, payload, nil)

	if _, err := v.VerifyIdentityToken(context.Background(), "some-token"); err != nil {
		t.Fatalf("bare issuer form should be accepted, got %v", err)
	}
}

func TestVerifyIdentityTokenRejections(t *testing.T) {
	badIssuer := googlePayload()
	badIssuer.Issuer = "https://evil.example.com"

	noEmail := googlePayload()
	delete(noEmail.Claims, "email")

	noSubject := googlePayload()
	noSubject.Subject = ""

	tests := []struct {
		name        string
		token       string
		payload     *idtoken.Payload
		validateErr error
	}{
		{"empty token", "", googlePayload(), nil},
		{"validation failure", "bad", nil, errors.New("signature mismatch")},
		{"wrong issuer", "tok", badIssuer, nil},
		{"missing email", "tok", noEmail, nil},
		{"missing subject", "tok", noSubject, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestVerifier(t, tt.payload, tt.validateErr)
			_, err := v.VerifyIdentityToken(context.Background(), tt.token)
			if !errors.Is(err, ErrInvalidIdentityToken) {
				t.Errorf("expected ErrInvalidIdentityToken, got %v", err)
			}
		})
	}
}
