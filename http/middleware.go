package http

import (
	"context"
	"net/http"
	"strings"
)

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

type contextKey string

const userIDKey contextKey = "userID"

// AuthMiddleware enforces bearer authentication. The verified user id is
// stored on the request context for callerID.
func AuthMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				WriteError(w, http.StatusUnauthorized, "No token")
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				WriteError(w, http.StatusUnauthorized, "Token invalid")
				return
			}

			userID, err := verifier.VerifyToken(token)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "Token invalid")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// callerID returns the authenticated user id set by AuthMiddleware, or ""
// on unauthenticated routes.
func callerID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}
