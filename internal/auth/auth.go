// Package auth implements the optional OAuth2 bearer-token middleware:
// JWKS fetch+cache, RS256/ES256 JWT verification, issuer/audience/scope/
// expiry checks, and per-subject sliding-window rate limiting.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	m3errors "github.com/m3-mcp/m3/internal/errors"
)

// Action is a single callable exposed as an MCP method: the smallest unit
// of the tool surface, per the glossary. A Middleware wraps one Action
// into another.
type Action func(ctx context.Context, params map[string]any) (string, error)

// Middleware wraps an Action into another Action.
type Middleware func(Action) Action

// Config describes the OAuth2 settings for one Auth instance.
type Config struct {
	Enabled             bool
	IssuerURL           string
	Audience            string
	RequiredScopes      []string
	JWKSURL             string
	TokenEnvKey         string // defaults to M3_OAUTH2_TOKEN
	RateLimitRequests    int    // defaults to 100
	RateLimitWindow      time.Duration // defaults to 1 hour
	JWKSCacheTTL         time.Duration // defaults to 1 hour
}

// DefaultConfig returns the defaults named in the design notes: 100
// requests per 3600s window, a 3600s JWKS cache TTL, and the canonical
// M3_OAUTH2_TOKEN env key.
func DefaultConfig() Config {
	return Config{
		RequiredScopes:    []string{"read:mimic-data"},
		TokenEnvKey:       "M3_OAUTH2_TOKEN",
		RateLimitRequests: 100,
		RateLimitWindow:   time.Hour,
		JWKSCacheTTL:      time.Hour,
	}
}

// Auth holds the JWKS cache, rate-limit table, and validated config for one
// running server. It is safe for concurrent use.
type Auth struct {
	cfg    Config
	logger zerolog.Logger

	httpClient *http.Client

	jwksMu      sync.Mutex
	jwksCache   *jwkSet
	jwksFetched time.Time

	rateMu    sync.Mutex
	rateTable map[string][]time.Time
}

// New validates cfg and constructs an Auth instance. If cfg.Enabled is
// false, the returned Auth's Middleware is a no-op passthrough.
func New(cfg Config, logger zerolog.Logger) (*Auth, error) {
	if !cfg.Enabled {
		return &Auth{cfg: cfg, logger: logger}, nil
	}
	if cfg.IssuerURL == "" {
		return nil, m3errors.Config("M3_OAUTH2_ISSUER_URL is required when OAuth2 is enabled")
	}
	if cfg.Audience == "" {
		return nil, m3errors.Config("M3_OAUTH2_AUDIENCE is required when OAuth2 is enabled")
	}
	if cfg.JWKSURL == "" {
		issuer := strings.TrimRight(cfg.IssuerURL, "/")
		cfg.JWKSURL = issuer + "/.well-known/jwks.json"
	}
	if !validURL(cfg.JWKSURL) {
		return nil, m3errors.Config("M3_OAUTH2_JWKS_URL is not a valid URL: %s", cfg.JWKSURL)
	}
	if len(cfg.RequiredScopes) == 0 {
		cfg.RequiredScopes = []string{"read:mimic-data"}
	}
	if cfg.TokenEnvKey == "" {
		cfg.TokenEnvKey = "M3_OAUTH2_TOKEN"
	}
	if cfg.RateLimitRequests == 0 {
		cfg.RateLimitRequests = 100
	}
	if cfg.RateLimitWindow == 0 {
		cfg.RateLimitWindow = time.Hour
	}
	if cfg.JWKSCacheTTL == 0 {
		cfg.JWKSCacheTTL = time.Hour
	}

	return &Auth{
		cfg:        cfg,
		logger:     logger.With().Str("component", "auth").Logger(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		rateTable:  map[string][]time.Time{},
	}, nil
}

// TokenEnvKey returns the config key the caller should read the bearer
// token from before invoking Middleware's rawToken callback.
func (a *Auth) TokenEnvKey() string {
	if a.cfg.TokenEnvKey == "" {
		return "M3_OAUTH2_TOKEN"
	}
	return a.cfg.TokenEnvKey
}

// Middleware wraps action so every invocation passes through Authenticate
// first. When auth is disabled, the wrapped action is invoked directly.
func (a *Auth) Middleware(rawToken func(ctx context.Context) string) Middleware {
	return func(next Action) Action {
		return func(ctx context.Context, params map[string]any) (string, error) {
			if !a.cfg.Enabled {
				return next(ctx, params)
			}
			token := rawToken(ctx)
			token = strings.TrimPrefix(token, "Bearer ")
			if token == "" {
				return "", m3errors.Authentication("Missing OAuth2 access token")
			}
			claims, err := a.Authenticate(ctx, token)
			if err != nil {
				return "", err
			}
			if err := a.checkRateLimit(subjectOf(claims)); err != nil {
				return "", err
			}
			return next(ctx, params)
		}
	}
}

// Authenticate implements the per-invocation algorithm from §4.4, minus the
// rate-limit check (kept separate so callers can distinguish an auth
// failure from a throttling failure).
func (a *Auth) Authenticate(ctx context.Context, token string) (jwt.MapClaims, error) {
	unverified, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, m3errors.Authentication("malformed JWT: %v", err)
	}
	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return nil, m3errors.Authentication("token missing key ID (kid)")
	}

	key, err := a.resolveKey(ctx, kid)
	if err != nil {
		return nil, err
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{"RS256", "ES256"}), jwt.WithIssuer(a.cfg.IssuerURL), jwt.WithAudience(a.cfg.Audience))
	if err != nil || !parsed.Valid {
		return nil, m3errors.Authentication("signature or claim verification failed: %v", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, m3errors.Authentication("unexpected claims type")
	}

	if err := a.validateScopes(claims); err != nil {
		return nil, err
	}

	return claims, nil
}

func (a *Auth) validateScopes(claims jwt.MapClaims) error {
	tokenScopes := map[string]bool{}
	if scopeClaim, ok := claims["scope"].(string); ok {
		for _, s := range strings.Fields(scopeClaim) {
			tokenScopes[s] = true
		}
	}
	if scpClaim, ok := claims["scp"].([]any); ok {
		for _, s := range scpClaim {
			if str, ok := s.(string); ok {
				tokenScopes[str] = true
			}
		}
	}
	var missing []string
	for _, required := range a.cfg.RequiredScopes {
		if !tokenScopes[required] {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return m3errors.Authentication("missing required scopes: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (a *Auth) checkRateLimit(subject string) error {
	a.rateMu.Lock()
	defer a.rateMu.Unlock()

	now := time.Now()
	windowStart := now.Add(-a.cfg.RateLimitWindow)

	recent := a.rateTable[subject]
	pruned := recent[:0]
	for _, t := range recent {
		if t.After(windowStart) {
			pruned = append(pruned, t)
		}
	}

	if len(pruned) >= a.cfg.RateLimitRequests {
		a.rateTable[subject] = pruned
		return m3errors.Authentication("rate limit exceeded")
	}

	pruned = append(pruned, now)
	a.rateTable[subject] = pruned
	return nil
}

func subjectOf(claims jwt.MapClaims) string {
	if sub, ok := claims["sub"].(string); ok {
		return sub
	}
	return "unknown"
}

// GenerateTestToken generates a short-lived JWT with caller-chosen subject
// and scopes using a freshly generated ephemeral RSA key, for integration
// tests and debugging only. It returns the signed token and a matching
// JWKS document so a test server can serve it at the configured JWKS URL.
func GenerateTestToken(subject string, scopes []string, issuer, audience string, expiresIn time.Duration) (token string, jwks []byte, err error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return "", nil, err
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   issuer,
		"aud":   audience,
		"sub":   subject,
		"iat":   now.Unix(),
		"exp":   now.Add(expiresIn).Unix(),
		"scope": strings.Join(scopes, " "),
	}
	jwtToken := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	jwtToken.Header["kid"] = "test-key"
	signed, err := jwtToken.SignedString(privateKey)
	if err != nil {
		return "", nil, err
	}

	jwksDoc, err := encodeJWKS(&privateKey.PublicKey, "test-key")
	if err != nil {
		return "", nil, err
	}

	return signed, jwksDoc, nil
}

// validURL is used only to validate the configured JWKS URL shape at
// construction time when debugging misconfiguration; not required by the
// algorithm itself.
func validURL(raw string) bool {
	_, err := url.ParseRequestURI(raw)
	return err == nil
}
