package auth

import (
	"testing"

	"github.com/sitefit/server/internal/config"
)

func testPasswordService() *PasswordService {
	cfg := &config.Config{}
	cfg.Auth.BCryptCost = 4 // minimum cost keeps the tests fast
	return NewPasswordService(cfg)
}

func TestHashAndVerifyPassword(t *testing.T) {
	svc := testPasswordService()

	hash, err := svc.HashPassword("Correct-Horse1")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "Correct-Horse1" {
		t.Fatal("hash equals the plaintext password")
	}

	if !svc.VerifyPassword("Correct-Horse1", hash) {
		t.Error("correct password rejected")
	}
	if svc.VerifyPassword("Wrong-Horse1!", hash) {
		t.Error("wrong password accepted")
	}
}

func TestValidatePasswordStrength(t *testing.T) {
	svc := testPasswordService()

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid password", "Abcdef1!", false},
		{"too short", "Ab1!", true},
		{"no uppercase", "abcdef1!", true},
		{"no lowercase", "ABCDEF1!", true},
		{"no number", "Abcdefg!", true},
		{"no special character", "Abcdefg1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.ValidatePasswordStrength(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePasswordStrength(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
			}
		})
	}
}

func TestHashPasswordRejectsWeakPassword(t *testing.T) {
	svc := testPasswordService()

	if _, err := svc.HashPassword("weak"); err == nil {
		t.Error("weak password hashed without error")
	}
}
