package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"

	m3errors "github.com/m3-mcp/m3/internal/errors"
)

// jwkSet wraps the parsed JWKS document so lookups do not re-parse it; the
// time it was fetched is kept alongside it in Auth.jwksFetched.
type jwkSet struct {
	set jwk.Set
}

// resolveKey fetches (or serves from cache) the JWKS document and returns
// the raw public key matching kid, converting the JWK via jwx's Export
// rather than hand-rolled base64url/RSA-numbers reconstruction.
func (a *Auth) resolveKey(ctx context.Context, kid string) (any, error) {
	a.jwksMu.Lock()
	stale := a.jwksCache == nil || time.Since(a.jwksFetched) > a.cfg.JWKSCacheTTL
	a.jwksMu.Unlock()

	if stale {
		if err := a.refreshJWKS(ctx); err != nil {
			return nil, err
		}
	}

	a.jwksMu.Lock()
	set := a.jwksCache
	a.jwksMu.Unlock()

	key, ok := set.set.LookupKeyID(kid)
	if !ok {
		// One refresh retry in case the signing key rotated since our
		// last fetch.
		if err := a.refreshJWKS(ctx); err != nil {
			return nil, err
		}
		a.jwksMu.Lock()
		set = a.jwksCache
		a.jwksMu.Unlock()
		key, ok = set.set.LookupKeyID(kid)
		if !ok {
			return nil, m3errors.Authentication("no key found for kid: %s", kid)
		}
	}

	var raw any
	if err := jwk.Export(key, &raw); err != nil {
		return nil, m3errors.Authentication("failed to convert JWK to a usable public key: %v", err)
	}
	return raw, nil
}

func (a *Auth) refreshJWKS(ctx context.Context) error {
	a.jwksMu.Lock()
	defer a.jwksMu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.JWKSURL, nil)
	if err != nil {
		return m3errors.Authentication("failed to build JWKS request: %v", err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return m3errors.Authentication("failed to fetch JWKS from %s: %v", a.cfg.JWKSURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return m3errors.Authentication("failed to read JWKS response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return m3errors.Authentication("JWKS endpoint returned status %d", resp.StatusCode)
	}

	set, err := jwk.Parse(body)
	if err != nil {
		return m3errors.Authentication("failed to parse JWKS document: %v", err)
	}

	a.jwksCache = &jwkSet{set: set}
	a.jwksFetched = time.Now()
	return nil
}

// encodeJWKS builds a minimal JWKS document containing one RSA public key
// under the given kid, for GenerateTestToken's matching test server.
func encodeJWKS(pub *rsa.PublicKey, kid string) ([]byte, error) {
	key, err := jwk.Import(pub)
	if err != nil {
		return nil, err
	}
	if err := key.Set(jwk.KeyIDKey, kid); err != nil {
		return nil, err
	}
	if err := key.Set(jwk.AlgorithmKey, "RS256"); err != nil {
		return nil, err
	}

	set := jwk.NewSet()
	if err := set.AddKey(key); err != nil {
		return nil, err
	}

	return json.Marshal(set)
}
