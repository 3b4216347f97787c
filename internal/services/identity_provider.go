package services

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

var (
	errMissingKid = errors.New("token header has no kid")
	errUnknownKid = errors.New("no signing key for kid")
)

// KeySetCache holds the provider's RSA keys for ttl after each fetch. A kid
// missing from a fresh set is not refetched until the set expires.
type KeySetCache struct {
	url        string
	ttl        time.Duration
	httpClient *http.Client
	now        func() time.Time

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func NewKeySetCache(url string, ttl time.Duration) *KeySetCache {
	return &KeySetCache{
		url:        url,
		ttl:        ttl,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
		keys:       make(map[string]*rsa.PublicKey),
	}
}

// JWKSURL is the well-known key-set location for an issuer domain.
func JWKSURL(domain string) string {
	return "https://" + strings.TrimSuffix(domain, "/") + "/.well-known/jwks.json"
}

func (c *KeySetCache) fresh() bool {
	return !c.fetchedAt.IsZero() && c.now().Before(c.fetchedAt.Add(c.ttl))
}

// Key returns the public key for kid, fetching the set when it is empty or expired.
func (c *KeySetCache) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	if c.fresh() {
		key, ok := c.keys[kid]
		c.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("%w %q", errUnknownKid, kid)
		}
		return key, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.fresh() {
		if err := c.fetchLocked(ctx); err != nil {
			return nil, err
		}
	}
	key, ok := c.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w %q", errUnknownKid, kid)
	}
	return key, nil
}

func (c *KeySetCache) fetchLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: failed to fetch JWKS: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: JWKS endpoint returned status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var set jwkSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("%w: failed to decode JWKS: %v", ErrUpstreamUnavailable, err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := parseRSAPublicKey(k.N, k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	c.keys = keys
	c.fetchedAt = c.now()
	return nil
}

func parseRSAPublicKey(nStr, eStr string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}
	if len(nBytes) == 0 || len(eBytes) == 0 {
		return nil, errors.New("empty modulus or exponent")
	}

	var e int
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}

type providerClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// ProviderScheme verifies RS256 tokens issued by the external identity
// provider. Every failure is reported as not applicable.
type ProviderScheme struct {
	keys     *KeySetCache
	audience string
	issuer   string
	now      func() time.Time
}

func NewProviderScheme(domain, audience string, keys *KeySetCache) *ProviderScheme {
	return &ProviderScheme{
		keys:     keys,
		audience: audience,
		issuer:   "https://" + strings.TrimSuffix(domain, "/") + "/",
		now:      time.Now,
	}
}

func (s *ProviderScheme) Name() string { return "identity_provider" }

func (s *ProviderScheme) Attempt(ctx context.Context, credential string) SchemeResult {
	var claims providerClaims
	_, err := jwt.ParseWithClaims(credential, &claims,
		func(t *jwt.Token) (interface{}, error) {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errMissingKid
			}
			return s.keys.Key(ctx, kid)
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(s.audience),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return notApplicable(err)
	}

	email := strings.TrimSpace(claims.Email)
	if email == "" {
		email = claims.Subject
	}
	if email == "" {
		return notApplicable(errors.New("token carries neither email nor subject"))
	}

	return resolved(&Identity{
		Email:   email,
		Subject: claims.Subject,
		Name:    strings.TrimSpace(claims.Name),
	})
}
