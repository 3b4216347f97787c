package services

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/testutil"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDomain   = "tenant.example.com"
	testAudience = "https://api.checkin.test"
	testSecret   = "local-session-secret"
)

type jwksServer struct {
	*httptest.Server
	fetches atomic.Int32
	fail    atomic.Bool
}

func newJWKSServer(t *testing.T, keys map[string]*rsa.PublicKey) *jwksServer {
	t.Helper()
	s := &jwksServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.fetches.Add(1)
		if s.fail.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		set := jwkSet{}
		for kid, pub := range keys {
			set.Keys = append(set.Keys, jwk{
				Kty: "RSA",
				Kid: kid,
				Alg: "RS256",
				Use: "sig",
				N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}))
	t.Cleanup(s.Close)
	return s
}

func newRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func signProviderToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	base := jwt.MapClaims{
		"iss": "https://" + testDomain + "/",
		"aud": testAudience,
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
	for k, v := range claims {
		base[k] = v
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, base)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	signed, err := tok.SignedString(key)
	require.NoError(t, err)
	return signed
}

func signSessionToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

type resolverFixture struct {
	resolver *IdentityResolver
	cache    *KeySetCache
	server   *jwksServer
	clock    *testutil.Clock
	key      *rsa.PrivateKey
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()
	key := newRSAKey(t)
	server := newJWKSServer(t, map[string]*rsa.PublicKey{"k1": &key.PublicKey})
	clock := testutil.NewClock(time.Now())

	cache := NewKeySetCache(server.URL, time.Hour)
	cache.now = clock.Now

	return &resolverFixture{
		resolver: NewIdentityResolver(
			NewProviderScheme(testDomain, testAudience, cache),
			NewSessionScheme(testSecret),
		),
		cache:  cache,
		server: server,
		clock:  clock,
		key:    key,
	}
}

func TestResolve_ProviderToken(t *testing.T) {
	f := newResolverFixture(t)
	tok := signProviderToken(t, f.key, "k1", jwt.MapClaims{
		"sub":   "provider|abc12345xyz",
		"email": "jane@example.com",
		"name":  "Jane Doe",
	})

	id, err := f.resolver.Resolve(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, &Identity{Email: "jane@example.com", Subject: "provider|abc12345xyz", Name: "Jane Doe"}, id)
}

func TestResolve_ProviderTokenWithoutEmailUsesSubject(t *testing.T) {
	f := newResolverFixture(t)
	tok := signProviderToken(t, f.key, "k1", jwt.MapClaims{"sub": "provider|abc12345xyz"})

	id, err := f.resolver.Resolve(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "provider|abc12345xyz", id.Email)
	assert.Equal(t, "provider|abc12345xyz", id.Subject)
	assert.Empty(t, id.Name)
}

func TestResolve_SessionToken(t *testing.T) {
	f := newResolverFixture(t)
	tok := signSessionToken(t, testSecret, jwt.MapClaims{
		"sub": "organizer@example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	id, err := f.resolver.Resolve(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "organizer@example.com", id.Email)
	assert.Empty(t, id.Subject)
	assert.Zero(t, f.server.fetches.Load(), "HS256 tokens must not trigger a key-set fetch")
}

func TestResolve_Failures(t *testing.T) {
	f := newResolverFixture(t)
	other := newRSAKey(t)

	tests := []struct {
		name string
		tok  string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"session wrong secret", signSessionToken(t, "other-secret", jwt.MapClaims{"sub": "a@b.c", "exp": time.Now().Add(time.Hour).Unix()})},
		{"session expired", signSessionToken(t, testSecret, jwt.MapClaims{"sub": "a@b.c", "exp": time.Now().Add(-time.Minute).Unix()})},
		{"session without subject", signSessionToken(t, testSecret, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})},
		{"session without expiry", signSessionToken(t, testSecret, jwt.MapClaims{"sub": "a@b.c"})},
		{"provider unknown kid", signProviderToken(t, f.key, "nope", jwt.MapClaims{"sub": "p|1"})},
		{"provider missing kid", signProviderToken(t, f.key, "", jwt.MapClaims{"sub": "p|1"})},
		{"provider bad signature", signProviderToken(t, other, "k1", jwt.MapClaims{"sub": "p|1"})},
		{"provider wrong audience", signProviderToken(t, f.key, "k1", jwt.MapClaims{"sub": "p|1", "aud": "someone-else"})},
		{"provider wrong issuer", signProviderToken(t, f.key, "k1", jwt.MapClaims{"sub": "p|1", "iss": "https://evil.example.com/"})},
		{"provider expired", signProviderToken(t, f.key, "k1", jwt.MapClaims{"sub": "p|1", "exp": time.Now().Add(-time.Minute).Unix()})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.resolver.Resolve(context.Background(), tt.tok)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}

func TestProviderScheme_FailuresAreNotApplicable(t *testing.T) {
	f := newResolverFixture(t)
	scheme := NewProviderScheme(testDomain, testAudience, f.cache)

	res := scheme.Attempt(context.Background(), signProviderToken(t, f.key, "missing", jwt.MapClaims{"sub": "p|1"}))
	assert.Equal(t, SchemeNotApplicable, res.Outcome)
	assert.Error(t, res.Err)

	res = scheme.Attempt(context.Background(), signSessionToken(t, testSecret, jwt.MapClaims{"sub": "a@b.c"}))
	assert.Equal(t, SchemeNotApplicable, res.Outcome)
}

func TestResolve_UpstreamFailureFallsThrough(t *testing.T) {
	f := newResolverFixture(t)
	f.server.fail.Store(true)

	provider := signProviderToken(t, f.key, "k1", jwt.MapClaims{"sub": "p|1", "email": "p@example.com"})
	_, err := f.resolver.Resolve(context.Background(), provider)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.EqualValues(t, 1, f.server.fetches.Load())

	session := signSessionToken(t, testSecret, jwt.MapClaims{"sub": "a@b.c", "exp": time.Now().Add(time.Hour).Unix()})
	id, err := f.resolver.Resolve(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", id.Email)
}

func TestKeySetCache_TTL(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()
	tok := signProviderToken(t, f.key, "k1", jwt.MapClaims{"sub": "p|1", "email": "p@example.com"})

	for i := 0; i < 3; i++ {
		_, err := f.resolver.Resolve(ctx, tok)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, f.server.fetches.Load())

	// unknown kid inside the TTL is served from the stale set
	_, err := f.cache.Key(ctx, "rotated")
	assert.ErrorIs(t, err, errUnknownKid)
	assert.EqualValues(t, 1, f.server.fetches.Load())

	f.clock.Advance(time.Hour + time.Second)
	_, err = f.resolver.Resolve(ctx, tok)
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.server.fetches.Load())
}

func TestSessionScheme_IssueRoundTrip(t *testing.T) {
	scheme := NewSessionScheme(testSecret)
	user := &models.User{ID: uuid.New(), Email: "someone@example.com"}

	tok, err := scheme.Issue(user, time.Minute)
	require.NoError(t, err)

	res := scheme.Attempt(context.Background(), tok)
	require.Equal(t, SchemeResolved, res.Outcome)
	assert.Equal(t, "someone@example.com", res.Identity.Email)
}

func TestParseRSAPublicKey_Malformed(t *testing.T) {
	_, err := parseRSAPublicKey("!!!", "AQAB")
	assert.Error(t, err)
	_, err = parseRSAPublicKey("", "")
	assert.Error(t, err)
}

func TestJWKSURL(t *testing.T) {
	assert.Equal(t, "https://tenant.example.com/.well-known/jwks.json", JWKSURL("tenant.example.com/"))
}
