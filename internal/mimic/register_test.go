package mimic

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/m3-mcp/m3/internal/backend"
	"github.com/m3-mcp/m3/internal/config"
)

func TestAuthFromConfig_DisabledByDefault(t *testing.T) {
	cfg, _ := config.New("INFO", map[string]string{})
	a, err := authFromConfig(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("authFromConfig: %v", err)
	}
	if a != nil {
		t.Error("expected nil Auth when M3_OAUTH2_ENABLED is unset")
	}
}

func TestAuthFromConfig_EnabledRequiresIssuerAndAudience(t *testing.T) {
	cfg, _ := config.New("INFO", map[string]string{"M3_OAUTH2_ENABLED": "true"})
	if _, err := authFromConfig(cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected missing issuer/audience to fail construction")
	}
}

func TestAuthFromConfig_EnabledWithSettings(t *testing.T) {
	cfg, _ := config.New("INFO", map[string]string{
		"M3_OAUTH2_ENABLED":     "true",
		"M3_OAUTH2_ISSUER_URL":  "https://issuer.example.com",
		"M3_OAUTH2_AUDIENCE":    "m3-api",
		"M3_OAUTH2_JWKS_URL":    "https://issuer.example.com/.well-known/jwks.json",
	})
	a, err := authFromConfig(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("authFromConfig: %v", err)
	}
	if a == nil {
		t.Fatal("expected a non-nil Auth when OAuth2 is enabled")
	}
}

func TestNewWithConfigAuth_DisabledBuildsToolWithoutMiddleware(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.duckdb")
	e := backend.NewEmbedded(dbPath)
	cfg, _ := config.New("INFO", map[string]string{"M3_DB_PATH": dbPath})

	tool, err := NewWithConfigAuth([]backend.Backend{e}, "embedded", cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewWithConfigAuth: %v", err)
	}
	if tool.auth != nil {
		t.Error("expected no auth when OAuth2 is disabled")
	}
}
