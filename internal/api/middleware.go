/**
 * @description
 * This file contains custom middleware for the HTTP router. Middlewares are used
 * to process requests before they reach the final handler, perfect for tasks like
 * authentication, logging, or adding context to a request.
 *
 * @dependencies
 * - context, net/http, strings: Standard Go libraries.
 * - github.com/golang-jwt/jwt/v5: Token verification.
 */

package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bankcards/bankcards-service/internal/app"
)

// IdentityContextKey is a custom type for the context key to avoid collisions.
type IdentityContextKey string

const identityKey IdentityContextKey = "identity"

// AuthMiddleware creates a middleware that validates HS256 JWT tokens issued
// by this service's login endpoint and stores the caller's Identity in the
// request context.
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	secret := []byte(jwtSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "Invalid token claims", http.StatusUnauthorized)
				return
			}
			subject, err := claims.GetSubject()
			if err != nil {
				http.Error(w, "Invalid token claims", http.StatusUnauthorized)
				return
			}
			userID, err := uuid.Parse(subject)
			if err != nil {
				http.Error(w, "Invalid token claims", http.StatusUnauthorized)
				return
			}
			admin, _ := claims["admin"].(bool)

			identity := app.Identity{UserID: userID, Admin: admin}
			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity retrieves the authenticated caller from the request context.
func GetIdentity(ctx context.Context) (app.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(app.Identity)
	return identity, ok
}
