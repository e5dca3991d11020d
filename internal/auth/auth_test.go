package auth

import (
	"testing"
	"time"
)

func TestGenerateDownloadToken(t *testing.T) {
	m := New(time.Hour, 24*time.Hour)

	token, err := m.GenerateDownloadToken("export-1", 0, "127.0.0.1")
	if err != nil {
		t.Fatalf("GenerateDownloadToken failed: %v", err)
	}

	if len(token.Token) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(token.Token))
	}
	if token.ExportID != "export-1" {
		t.Errorf("ExportID = %q, want export-1", token.ExportID)
	}
	// zero expiresIn falls back to the default
	want := token.CreatedAt.Add(time.Hour)
	if token.ExpiresAt.Sub(want) > time.Second || want.Sub(token.ExpiresAt) > time.Second {
		t.Errorf("ExpiresAt = %v, want about %v", token.ExpiresAt, want)
	}

	second, err := m.GenerateDownloadToken("export-1", 0, "127.0.0.1")
	if err != nil {
		t.Fatalf("GenerateDownloadToken failed: %v", err)
	}
	if second.Token == token.Token {
		t.Error("tokens should be unique")
	}
	if m.GetTokenCount() != 2 {
		t.Errorf("GetTokenCount() = %d, want 2", m.GetTokenCount())
	}
}

func TestGenerateDownloadToken_CapsExpiration(t *testing.T) {
	m := New(time.Hour, 2*time.Hour)

	token, err := m.GenerateDownloadToken("export-1", 100*time.Hour, "")
	if err != nil {
		t.Fatalf("GenerateDownloadToken failed: %v", err)
	}
	if lifetime := token.ExpiresAt.Sub(token.CreatedAt); lifetime > 2*time.Hour+time.Second {
		t.Errorf("token lifetime = %v, want capped at 2h", lifetime)
	}
}

func TestValidateToken(t *testing.T) {
	m := New(time.Hour, 24*time.Hour)
	token, err := m.GenerateDownloadToken("export-1", 0, "")
	if err != nil {
		t.Fatalf("GenerateDownloadToken failed: %v", err)
	}

	if err := m.ValidateToken(token.Token, "export-1"); err != nil {
		t.Errorf("ValidateToken failed for a fresh token: %v", err)
	}
	if err := m.ValidateToken(token.Token, "export-2"); err == nil {
		t.Error("token should not validate for another export")
	}
	if err := m.ValidateToken("bogus", "export-1"); err == nil {
		t.Error("unknown token should not validate")
	}
}

func TestValidateToken_Expired(t *testing.T) {
	m := New(time.Hour, 24*time.Hour)
	token, err := m.GenerateDownloadToken("export-1", time.Nanosecond, "")
	if err != nil {
		t.Fatalf("GenerateDownloadToken failed: %v", err)
	}

	time.Sleep(time.Millisecond)
	if err := m.ValidateToken(token.Token, "export-1"); err == nil {
		t.Error("expired token should not validate")
	}
}

func TestRevokeToken(t *testing.T) {
	m := New(time.Hour, 24*time.Hour)
	token, _ := m.GenerateDownloadToken("export-1", 0, "")

	m.RevokeToken(token.Token)
	if err := m.ValidateToken(token.Token, "export-1"); err == nil {
		t.Error("revoked token should not validate")
	}
	if m.GetTokenCount() != 0 {
		t.Errorf("GetTokenCount() = %d after revoke, want 0", m.GetTokenCount())
	}
}

func TestCleanupExpiredTokens(t *testing.T) {
	m := New(time.Hour, 24*time.Hour)
	m.GenerateDownloadToken("export-1", time.Nanosecond, "")
	m.GenerateDownloadToken("export-2", time.Hour, "")

	time.Sleep(time.Millisecond)
	m.CleanupExpiredTokens()

	if m.GetTokenCount() != 1 {
		t.Errorf("GetTokenCount() = %d after cleanup, want 1", m.GetTokenCount())
	}
}

func TestNew_Defaults(t *testing.T) {
	m := New(0, 0)
	token, err := m.GenerateDownloadToken("export-1", 0, "")
	if err != nil {
		t.Fatalf("GenerateDownloadToken failed: %v", err)
	}
	if lifetime := token.ExpiresAt.Sub(token.CreatedAt); lifetime < 59*time.Minute || lifetime > 61*time.Minute {
		t.Errorf("default lifetime = %v, want about 1h", lifetime)
	}
}
