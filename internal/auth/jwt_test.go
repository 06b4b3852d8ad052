package auth

import (
	"strings"
	"testing"
	"time"
)

func testConfig() *JWTConfig {
	return &JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test-aud",
		TTL:      time.Hour,
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	cfg := testConfig()

	token, err := GenerateToken(cfg, "user-1", "Alice", "alice.png")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	claims, err := ValidateToken(cfg, token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("expected user-1, got %q", claims.UserID)
	}
	if claims.Name != "Alice" {
		t.Errorf("expected Alice, got %q", claims.Name)
	}
	if claims.Photo != "alice.png" {
		t.Errorf("expected alice.png, got %q", claims.Photo)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	cfg := testConfig()
	token, err := GenerateToken(cfg, "user-1", "Alice", "")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	other := testConfig()
	other.Secret = []byte("different-secret")
	if _, err := ValidateToken(other, token); err == nil {
		t.Fatal("expected validation to fail with wrong secret")
	}
}

func TestValidateTokenRejectsWrongIssuerAndAudience(t *testing.T) {
	cfg := testConfig()
	token, err := GenerateToken(cfg, "user-1", "Alice", "")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	badIssuer := testConfig()
	badIssuer.Issuer = "someone-else"
	if _, err := ValidateToken(badIssuer, token); err == nil || !strings.Contains(err.Error(), "issuer") {
		t.Errorf("expected issuer error, got %v", err)
	}

	badAudience := testConfig()
	badAudience.Audience = "other-aud"
	if _, err := ValidateToken(badAudience, token); err == nil || !strings.Contains(err.Error(), "audience") {
		t.Errorf("expected audience error, got %v", err)
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	cfg := testConfig()
	cfg.TTL = -time.Minute

	token, err := GenerateToken(cfg, "user-1", "Alice", "")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if _, err := ValidateToken(cfg, token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestValidateTokenRejectsMissingUserID(t *testing.T) {
	cfg := testConfig()
	token, err := GenerateToken(cfg, "", "Nobody", "")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if _, err := ValidateToken(cfg, token); err == nil {
		t.Fatal("expected token without user id to be rejected")
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	if _, err := ValidateToken(testConfig(), "not.a.jwt"); err == nil {
		t.Fatal("expected garbage token to be rejected")
	}
}
