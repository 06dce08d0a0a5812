package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// AdminAuth validates the bearer token on admin routes. An empty configured
// token disables the admin surface entirely rather than leaving it open.
type AdminAuth struct {
	token  string
	logger zerolog.Logger
}

// NewAdminAuth creates the auth middleware.
func NewAdminAuth(token string, logger zerolog.Logger) *AdminAuth {
	return &AdminAuth{token: token, logger: logger}
}

// Handler returns the middleware handler function.
func (a *AdminAuth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.token == "" {
			http.Error(w, `{"error":"admin api disabled","message":"set ADMIN_TOKEN to enable"}`, http.StatusForbidden)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, `{"error":"missing authentication","message":"Authorization header required"}`, http.StatusUnauthorized)
			return
		}
		token := authHeader
		if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			token = authHeader[7:]
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
			a.logger.Warn().Str("path", r.URL.Path).Msg("admin auth rejected")
			http.Error(w, `{"error":"invalid authentication"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
