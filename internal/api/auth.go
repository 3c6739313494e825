package api

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
)

type principalKey struct{}

// WithPrincipal stores the authenticated caller in the context.
func WithPrincipal(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, principalKey{}, name)
}

// PrincipalFromContext extracts the authenticated caller from the context.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(principalKey{}).(string)
	return name, ok
}

// AuthConfig lists the credentials accepted on the /v1 routes.
type AuthConfig struct {
	// JWTSecret validates HS256 bearer tokens; empty disables JWT.
	JWTSecret []byte
	// APIKeys are accepted in the X-API-Key header.
	APIKeys []string
}

// Enabled reports whether any credential is configured.
func (c AuthConfig) Enabled() bool {
	return len(c.JWTSecret) > 0 || len(c.APIKeys) > 0
}

// Authenticator tries a JWT bearer token first, then an API key. Returns 401
// if both fail.
func Authenticator(cfg AuthConfig) func(http.Handler) http.Handler {
	hashes := make([][sha256.Size]byte, 0, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		if k != "" {
			hashes = append(hashes, sha256.Sum256([]byte(k)))
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth := r.Header.Get("Authorization"); len(cfg.JWTSecret) > 0 && strings.HasPrefix(auth, "Bearer ") {
				if sub, err := validateHS256(cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer ")); err == nil {
					next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), sub)))
					return
				}
			}

			if key := r.Header.Get("X-API-Key"); key != "" {
				sum := sha256.Sum256([]byte(key))
				for i, h := range hashes {
					if subtle.ConstantTimeCompare(sum[:], h[:]) == 1 {
						principal := fmt.Sprintf("api-key-%d", i)
						next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
						return
					}
				}
			}

			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"error":      "unauthorized: provide a valid JWT bearer token or API key",
				"code":       "UNAUTHORIZED",
				"request_id": chimw.GetReqID(r.Context()),
			})
		})
	}
}

// validateHS256 verifies a token signed with secret and returns its subject.
func validateHS256(secret []byte, tokenString string) (string, error) {
	tok, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("token verification failed: %w", err)
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("parse claims: unsupported claim type %T", tok.Claims)
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("parse claims: %w", err)
	}
	if sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}
