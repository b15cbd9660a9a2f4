package mimic

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/m3-mcp/m3/internal/auth"
	"github.com/m3-mcp/m3/internal/backend"
	"github.com/m3-mcp/m3/internal/config"
	m3errors "github.com/m3-mcp/m3/internal/errors"
	"github.com/m3-mcp/m3/internal/pipeline"
)

func init() {
	pipeline.RegisterToolType("mimic", factory)
}

func factory(params map[string]any, cfg *config.Config, logger zerolog.Logger) (pipeline.Tool, error) {
	a, err := authFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	return FromDict(params, cfg, a, logger)
}

// authFromConfig mirrors the original's per-tool construction: an Auth
// instance is only built when M3_OAUTH2_ENABLED is the literal string
// "true" (case-insensitive); otherwise actions run unmiddlewared.
func authFromConfig(cfg *config.Config, logger zerolog.Logger) (*auth.Auth, error) {
	enabled := strings.ToLower(cfg.Get("M3_OAUTH2_ENABLED", "false", false)) == "true"
	if !enabled {
		return nil, nil
	}

	acfg := auth.DefaultConfig()
	acfg.Enabled = true
	acfg.IssuerURL = cfg.Get("M3_OAUTH2_ISSUER_URL", "", false)
	acfg.Audience = cfg.Get("M3_OAUTH2_AUDIENCE", "", false)
	acfg.JWKSURL = cfg.Get("M3_OAUTH2_JWKS_URL", "", false)
	acfg.TokenEnvKey = cfg.Get("M3_OAUTH2_TOKEN_ENV_KEY", acfg.TokenEnvKey, false)

	if scopes := cfg.Get("M3_OAUTH2_REQUIRED_SCOPES", "", false); scopes != "" {
		acfg.RequiredScopes = strings.Split(scopes, ",")
		for i := range acfg.RequiredScopes {
			acfg.RequiredScopes[i] = strings.TrimSpace(acfg.RequiredScopes[i])
		}
	}

	if n, err := strconv.Atoi(cfg.Get("M3_OAUTH2_RATE_LIMIT_REQUESTS", "", false)); err == nil {
		acfg.RateLimitRequests = n
	}
	if secs, err := strconv.Atoi(cfg.Get("M3_OAUTH2_RATE_LIMIT_WINDOW_SECONDS", "", false)); err == nil {
		acfg.RateLimitWindow = time.Duration(secs) * time.Second
	}
	if secs, err := strconv.Atoi(cfg.Get("M3_OAUTH2_JWKS_CACHE_TTL_SECONDS", "", false)); err == nil {
		acfg.JWKSCacheTTL = time.Duration(secs) * time.Second
	}

	a, err := auth.New(acfg, logger)
	if err != nil {
		return nil, m3errors.Wrap(m3errors.KindAuthentication, "failed to construct auth from config", err)
	}
	return a, nil
}

// NewWithConfigAuth constructs a MIMIC tool, deriving its Auth (if any)
// from cfg's M3_OAUTH2_* settings rather than requiring the caller to
// build one — the path callers outside tests normally use.
func NewWithConfigAuth(backends []backend.Backend, backendKey string, cfg *config.Config, logger zerolog.Logger) (*Tool, error) {
	a, err := authFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	return New(backends, backendKey, cfg, a, logger)
}
