package access

import (
	"context"
	"net/http"
	"strings"
)

// securityHeadersMiddleware sets the response headers every portal service
// is expected to carry
func (s *Service) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates the bearer token and stores the actor claims in
// the request context. Operational endpoints stay open for probes and
// scrapers.
func (s *Service) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/health") || strings.HasPrefix(r.URL.Path, "/metrics") {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.writeErrorResponse(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.writeErrorResponse(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		claims, err := s.tokenValidator.ValidateJWT(parts[1])
		if err != nil {
			s.logger.Security("invalid_token", "", map[string]interface{}{
				"path":  r.URL.Path,
				"error": err.Error(),
			})
			s.recordAuth("failed")
			s.writeErrorResponse(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		s.recordAuth("success")

		ctx := context.WithValue(r.Context(), "actor_claims", claims)
		ctx = context.WithValue(ctx, "actor_id", claims.ActorID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Service) recordAuth(status string) {
	if s.metrics != nil {
		s.metrics.RecordAuthAttempt("jwt", status)
	}
}
