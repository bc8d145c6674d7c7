package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/galleta-assistant/galleta/pkg/metrics"
)

// authMiddleware checks the bearer token when an API key is configured. A
// missing or malformed header is 401, a wrong token is 403.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			reason := "invalid_format"
			if authHeader == "" {
				reason = "missing_header"
			}
			metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
			w.Header().Set("WWW-Authenticate", "Bearer")
			s.writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(s.apiKey)) != 1 {
			metrics.AuthFailuresTotal.WithLabelValues("invalid_token").Inc()
			s.writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}
