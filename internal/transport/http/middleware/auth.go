package httpmw

import (
	"net/http"
	"strings"

	"github.com/Aklilu27/audiorooms/pkg/auth"
)

// AuthMiddleware requires a valid Bearer token and puts the caller's
// identity into the request context.
func AuthMiddleware(verifier *auth.JWT) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") || len(header) <= 7 {
				http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
				return
			}

			id, err := verifier.Verify(strings.TrimSpace(header[7:]))
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}
