package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/TrustEden/Staffing/backend/config"
	"github.com/TrustEden/Staffing/backend/pkg/jwt"
)

const testSecret = "bridgectl-test-secret-0123456789"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("BRIDGE_AUTH_JWT_SECRET", testSecret)
	configPath = ""
	tokenCompany = ""

	out, err := execute(t, "token", "--user", "op-1", "--role", "admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mgr := jwt.NewManager(&config.AuthConfig{JWTSecret: testSecret, AccessTokenTTL: 30 * time.Minute})
	claims, err := mgr.ParseToken(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("minted token should verify: %v", err)
	}
	if claims.UserID != "op-1" || claims.Role != "admin" || claims.CompanyID != "" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestTokenCommand_UnknownRole(t *testing.T) {
	t.Setenv("BRIDGE_AUTH_JWT_SECRET", testSecret)
	configPath = ""

	if _, err := execute(t, "token", "--user", "u-1", "--role", "nurse"); err == nil {
		t.Error("expected error for unknown role")
	}
	tokenRole = "admin"
}

func TestParseAt(t *testing.T) {
	got, err := parseAt("2026-03-09T15:00:00+08:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2026, 3, 9, 7, 0, 0, 0, time.UTC); !got.Equal(want) || got.Location() != time.UTC {
		t.Errorf("expected %v in UTC, got %v", want, got)
	}

	if _, err := parseAt("2026-03-09 07:00"); err == nil {
		t.Error("expected error for non-RFC3339 input")
	}

	if now, err := parseAt(""); err != nil || time.Since(now) > time.Minute {
		t.Errorf("empty --at should default to now, got %v %v", now, err)
	}
}

func TestRevocationTTL(t *testing.T) {
	mgr := jwt.NewManager(&config.AuthConfig{JWTSecret: testSecret, AccessTokenTTL: 30 * time.Minute})
	token, err := mgr.GenerateAccessToken("u-1", "staff", "fac-1")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := mgr.ParseToken(token)
	if err != nil {
		t.Fatal(err)
	}

	ttl := revocationTTL(claims, time.Now())
	if ttl <= 29*time.Minute || ttl > 30*time.Minute {
		t.Errorf("ttl = %v, want about 30m", ttl)
	}
	if got := revocationTTL(claims, time.Now().Add(time.Hour)); got > 0 {
		t.Errorf("ttl after expiry = %v, want <= 0", got)
	}
	if got := revocationTTL(&jwt.Claims{}, time.Now()); got != 0 {
		t.Errorf("ttl without exp = %v, want 0", got)
	}
}

func TestRevokeCommand_RejectsInvalidToken(t *testing.T) {
	t.Setenv("BRIDGE_AUTH_JWT_SECRET", testSecret)
	configPath = ""

	if _, err := execute(t, "revoke", "not-a-token"); err == nil {
		t.Error("expected error for invalid token")
	}
}
