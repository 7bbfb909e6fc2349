package handlers

import (
	"net/http"
	"strings"

	"github.com/norastrand/bookwise/libs/auth"
	"github.com/norastrand/bookwise/libs/httpx"
)

// RequireAuth verifies the bearer token and pins the verified identity onto
// the request headers, clobbering anything the caller sent.
func RequireAuth(jwtSecret string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") || len(strings.TrimSpace(authHeader)) <= len("Bearer ") {
				http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
				return
			}

			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			claims, err := auth.ParseAndVerifyHS256(token, jwtSecret)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			r.Header.Del("X-User-Id")
			r.Header.Del("X-Role")
			r.Header.Set("X-User-Id", claims.Sub)
			r.Header.Set("X-Role", claims.Role)
			next.ServeHTTP(w, r)
		})
	}
}

func actorID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-Id"))
}
