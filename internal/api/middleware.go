/**
 * @description
 * Authentication middleware for the operations-service. Bearer tokens are RS256 JWTs
 * signed by the identity provider; public keys come from its JWKS endpoint and are
 * cached between requests. Staff routes additionally require a role claim.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: Token parsing and claim validation.
 */

package api

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthContextKey is a custom type for the context keys to avoid collisions.
type AuthContextKey string

const (
	userIDKey AuthContextKey = "userID"
	rolesKey  AuthContextKey = "roles"
)

var ErrSigningKeyNotFound = errors.New("signing key not found")

// KeyProvider resolves the RSA public key for a token's key id.
type KeyProvider interface {
	PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// JWKSCache fetches and caches the identity provider's signing keys. An unknown
// kid triggers a refetch so rotated keys are picked up without a restart.
type JWKSCache struct {
	url        string
	httpClient *http.Client
	ttl        time.Duration

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func NewJWKSCache(jwksURL string, ttl time.Duration) *JWKSCache {
	return &JWKSCache{
		url:        jwksURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		ttl:        ttl,
		keys:       map[string]*rsa.PublicKey{},
	}
}

func (c *JWKSCache) PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	fresh := time.Since(c.fetchedAt) < c.ttl
	c.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}

	if err := c.refresh(ctx); err != nil {
		if ok {
			// Serve the stale key rather than failing every request during a provider outage.
			log.Printf("level=warn component=auth msg=\"jwks refresh failed; using cached key\" kid=%s err=%v", kid, err)
			return key, nil
		}
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok = c.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: kid %s", ErrSigningKeyNotFound, kid)
	}
	return key, nil
}

func (c *JWKSCache) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks endpoint returned status %d", resp.StatusCode)
	}

	var jwks struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return err
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := parseRSAPublicKey(k.N, k.E)
		if err != nil {
			log.Printf("level=warn component=auth msg=\"skipping malformed jwk\" kid=%s err=%v", k.Kid, err)
			continue
		}
		keys[k.Kid] = pub
	}

	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = time.Now()
	c.mu.Unlock()
	return nil
}

// parseRSAPublicKey parses an RSA public key from its base64url modulus and exponent.
func parseRSAPublicKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}
	if len(nb) == 0 || len(eb) == 0 {
		return nil, errors.New("empty modulus or exponent")
	}

	var exp uint64
	for _, b := range eb {
		exp = (exp << 8) | uint64(b)
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: int(exp)}, nil
}

// AuthMiddleware validates the bearer token and stores the subject and roles in the
// request context. Audience and issuer are enforced when configured.
func AuthMiddleware(keys KeyProvider, audience, issuer string) func(http.Handler) http.Handler {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256"}), jwt.WithExpirationRequired()}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader || strings.TrimSpace(tokenString) == "" {
				writeError(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			claims := jwt.MapClaims{}
			token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				kid, ok := token.Header["kid"].(string)
				if !ok || kid == "" {
					return nil, errors.New("kid not found in token header")
				}
				return keys.PublicKey(r.Context(), kid)
			})
			if err != nil || !token.Valid {
				log.Printf("level=warn component=auth outcome=reject reason=invalid_token err=%v", err)
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			userID, _ := claims["sub"].(string)
			if strings.TrimSpace(userID) == "" {
				writeError(w, http.StatusUnauthorized, "User ID not found in token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			ctx = context.WithValue(ctx, rolesKey, rolesFromClaims(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// rolesFromClaims accepts either a single "role" string or a "roles" array.
func rolesFromClaims(claims jwt.MapClaims) []string {
	var roles []string
	if role, ok := claims["role"].(string); ok && role != "" {
		roles = append(roles, role)
	}
	if list, ok := claims["roles"].([]interface{}); ok {
		for _, item := range list {
			if role, ok := item.(string); ok && role != "" {
				roles = append(roles, role)
			}
		}
	}
	return roles
}

// RequireRole rejects authenticated callers that do not carry the role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, have := range GetRoles(r.Context()) {
				if strings.EqualFold(have, role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			log.Printf("level=warn component=auth outcome=reject reason=missing_role user_id=%s role=%s", GetUserID(r.Context()), role)
			writeError(w, http.StatusForbidden, "Forbidden")
		})
	}
}

// GetUserID returns the authenticated subject, or an empty string.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

func GetRoles(ctx context.Context) []string {
	roles, _ := ctx.Value(rolesKey).([]string)
	return roles
}
