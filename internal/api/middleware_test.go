package api

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testKeyID = "test-kid"

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func signingKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = key
	})
	return testKey
}

type staticKeys struct {
	keys map[string]*rsa.PublicKey
}

func (s staticKeys) PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	key, ok := s.keys[kid]
	if !ok {
		return nil, ErrSigningKeyNotFound
	}
	return key, nil
}

func testKeyProvider(t *testing.T) KeyProvider {
	return staticKeys{keys: map[string]*rsa.PublicKey{testKeyID: &signingKey(t).PublicKey}}
}

func signToken(t *testing.T, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(signingKey(t))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func validClaims(sub string) jwt.MapClaims {
	return jwt.MapClaims{
		"sub": sub,
		"aud": "aurum-portal",
		"iss": "https://id.aurum.test",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
}

func TestAuthMiddleware(t *testing.T) {
	expired := validClaims("user-1")
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	wrongAudience := validClaims("user-1")
	wrongAudience["aud"] = "someone-else"
	noExpiry := validClaims("user-1")
	delete(noExpiry, "exp")
	noSubject := validClaims("")

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid token", header: "Bearer " + signToken(t, testKeyID, validClaims("user-1")), wantStatus: http.StatusOK},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "not a bearer token", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + signToken(t, testKeyID, expired), wantStatus: http.StatusUnauthorized},
		{name: "no expiry", header: "Bearer " + signToken(t, testKeyID, noExpiry), wantStatus: http.StatusUnauthorized},
		{name: "wrong audience", header: "Bearer " + signToken(t, testKeyID, wrongAudience), wantStatus: http.StatusUnauthorized},
		{name: "unknown key id", header: "Bearer " + signToken(t, "rotated-away", validClaims("user-1")), wantStatus: http.StatusUnauthorized},
		{name: "missing subject", header: "Bearer " + signToken(t, testKeyID, noSubject), wantStatus: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer not.a.jwt", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = GetUserID(r.Context())
				w.WriteHeader(http.StatusOK)
			})
			handler := AuthMiddleware(testKeyProvider(t), "aurum-portal", "https://id.aurum.test")(next)

			req := httptest.NewRequest(http.MethodGet, "/bills/payees", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK && gotUser != "user-1" {
				t.Fatalf("expected user-1 in context, got %q", gotUser)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	withRoles := validClaims("staff-1")
	withRoles["roles"] = []string{"support", "ADMIN"}
	singleRole := validClaims("staff-2")
	singleRole["role"] = "admin"
	customer := validClaims("user-1")

	tests := []struct {
		name       string
		claims     jwt.MapClaims
		wantStatus int
	}{
		{name: "roles array", claims: withRoles, wantStatus: http.StatusOK},
		{name: "single role claim", claims: singleRole, wantStatus: http.StatusOK},
		{name: "no role", claims: customer, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			handler := AuthMiddleware(testKeyProvider(t), "", "")(RequireRole("admin")(next))

			req := httptest.NewRequest(http.MethodPost, "/admin/batch", nil)
			req.Header.Set("Authorization", "Bearer "+signToken(t, testKeyID, tt.claims))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func jwksServer(t *testing.T, hits *int) *httptest.Server {
	t.Helper()
	pub := signingKey(t).PublicKey
	body := map[string]interface{}{
		"keys": []map[string]string{
			{
				"kid": testKeyID,
				"kty": "RSA",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
			{"kid": "ec-key", "kty": "EC"},
		},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestJWKSCache_FetchesAndCachesKeys(t *testing.T) {
	hits := 0
	server := jwksServer(t, &hits)
	cache := NewJWKSCache(server.URL, time.Hour)

	key, err := cache.PublicKey(context.Background(), testKeyID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.N.Cmp(signingKey(t).PublicKey.N) != 0 || key.E != signingKey(t).PublicKey.E {
		t.Fatal("expected the served public key")
	}
	if _, err := cache.PublicKey(context.Background(), testKeyID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected 1 jwks fetch, got %d", hits)
	}
}

func TestJWKSCache_UnknownKidRefetches(t *testing.T) {
	hits := 0
	server := jwksServer(t, &hits)
	cache := NewJWKSCache(server.URL, time.Hour)

	_, err := cache.PublicKey(context.Background(), "missing")
	if !errors.Is(err, ErrSigningKeyNotFound) {
		t.Fatalf("expected ErrSigningKeyNotFound, got %v", err)
	}
	_, _ = cache.PublicKey(context.Background(), "missing")
	if hits != 2 {
		t.Fatalf("expected a refetch per unknown kid, got %d fetches", hits)
	}
}

func TestParseRSAPublicKey(t *testing.T) {
	if _, err := parseRSAPublicKey("!!", "AQAB"); err == nil {
		t.Fatal("expected modulus decode error")
	}
	key, err := parseRSAPublicKey(base64.RawURLEncoding.EncodeToString([]byte{0x01, 0x00}), "AQAB")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.E != 65537 {
		t.Fatalf("expected exponent 65537, got %d", key.E)
	}
}
