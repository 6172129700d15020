package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type principalKey struct{}

// authRequired verifies an HS256 bearer token and stores the userId claim in
// the request context as the caller's opaque principal id. Token issuance is
// the auth service's job; the relay only consumes.
func authRequired(secret []byte, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, apiResponse{Message: "Access denied. No token provided."})
			return
		}
		parsed, err := jwt.Parse(token, func(*jwt.Token) (any, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !parsed.Valid {
			writeJSON(w, http.StatusUnauthorized, apiResponse{Message: "Token is not valid."})
			return
		}
		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, apiResponse{Message: "Token is not valid."})
			return
		}
		userID, _ := claims["userId"].(string)
		if userID == "" {
			writeJSON(w, http.StatusUnauthorized, apiResponse{Message: "Token is not valid."})
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, userID)
		next(w, r.WithContext(ctx))
	}
}

// principal returns the authenticated user id stored by authRequired.
func principal(ctx context.Context) string {
	id, _ := ctx.Value(principalKey{}).(string)
	return id
}
