package middleware

import (
	"net/http"
	"strings"

	"meridian/internal/auth"
	"meridian/internal/httputil"
)

// Auth validates the Supabase JWT from the Authorization header and
// injects the caller's user id into the request context. Requests without
// a valid bearer token are rejected with 401.
func Auth(verifier auth.JWTVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				httputil.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			r = httputil.WithUserID(r, claims.GetUserID())
			next.ServeHTTP(w, r)
		})
	}
}
