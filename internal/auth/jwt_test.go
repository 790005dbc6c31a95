package auth

import (
	"errors"
	"os"
	"testing"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret")
	defer os.Unsetenv("JWT_SECRET")

	token, err := GenerateSessionToken("session-1")
	if err != nil {
		t.Fatalf("GenerateSessionToken failed: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.SessionID != "session-1" {
		t.Errorf("Wrong session ID: %q", claims.SessionID)
	}
	if claims.Role != SessionRole {
		t.Errorf("Wrong role: %q", claims.Role)
	}
}

func TestValidateTokenRejectsTampered(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret")
	defer os.Unsetenv("JWT_SECRET")

	token, err := GenerateSessionToken("session-1")
	if err != nil {
		t.Fatalf("GenerateSessionToken failed: %v", err)
	}

	if _, err := ValidateToken(token + "x"); err == nil {
		t.Error("Tampered token must be rejected")
	}
}

func TestMissingSecretIsError(t *testing.T) {
	os.Unsetenv("JWT_SECRET")

	if _, err := GenerateSessionToken("session-1"); !errors.Is(err, ErrMissingSecret) {
		t.Errorf("Expected ErrMissingSecret, got %v", err)
	}
	if _, err := ValidateToken("whatever"); !errors.Is(err, ErrMissingSecret) {
		t.Errorf("Expected ErrMissingSecret, got %v", err)
	}
}
