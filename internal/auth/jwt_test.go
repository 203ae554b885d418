package auth

import (
	"testing"
	"time"

	"github.com/sitefit/server/internal/config"
)

func testJWTService() *JWTService {
	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "test-access-secret"
	cfg.Auth.RefreshSecret = "test-refresh-secret"
	cfg.Auth.JWTExpiration = 15 * time.Minute
	cfg.Auth.RefreshExpiration = 7 * 24 * time.Hour
	return NewJWTService(cfg)
}

func TestGenerateAndValidateAccessToken(t *testing.T) {
	svc := testJWTService()

	token, err := svc.GenerateAccessToken(42, "margaux", "analyst")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	claims, err := svc.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("user id = %d, want 42", claims.UserID)
	}
	if claims.Username != "margaux" {
		t.Errorf("username = %s, want margaux", claims.Username)
	}
	if claims.Role != "analyst" {
		t.Errorf("role = %s, want analyst", claims.Role)
	}
	if claims.Issuer != tokenIssuer {
		t.Errorf("issuer = %s, want %s", claims.Issuer, tokenIssuer)
	}
}

func TestRefreshTokenRejectedAsAccessToken(t *testing.T) {
	svc := testJWTService()

	refresh, err := svc.GenerateRefreshToken(42)
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}

	if _, err := svc.ValidateAccessToken(refresh); err == nil {
		t.Error("refresh token validated as an access token")
	}
	if _, err := svc.ValidateRefreshToken(refresh); err != nil {
		t.Errorf("ValidateRefreshToken: %v", err)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := testJWTService()

	if _, err := svc.ValidateAccessToken("not-a-token"); err == nil {
		t.Error("garbage token validated")
	}
	if _, err := svc.ValidateAccessToken(""); err == nil {
		t.Error("empty token validated")
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svc := testJWTService()

	other := testJWTService()
	other.accessSecret = []byte("a-different-secret")

	token, err := svc.GenerateAccessToken(1, "intrus", "analyst")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if _, err := other.ValidateAccessToken(token); err == nil {
		t.Error("token signed with another secret validated")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "test-access-secret"
	cfg.Auth.RefreshSecret = "test-refresh-secret"
	cfg.Auth.JWTExpiration = -time.Minute
	svc := NewJWTService(cfg)

	token, err := svc.GenerateAccessToken(1, "margaux", "analyst")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if _, err := svc.ValidateAccessToken(token); err == nil {
		t.Error("expired token validated")
	}
}
