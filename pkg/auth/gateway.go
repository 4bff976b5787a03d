// Package auth is the request gateway: CORS, rate limiting and bearer
// token resolution into a caller identity on the request context.
package auth

import (
	"context"
	"net"
	"net/http"
	"strings"

	"courier/pkg/identity"
	"courier/pkg/logger"
	"courier/pkg/telemetry"
	"courier/pkg/utils"
)

// SecConfig drives the gateway middleware.
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
	Provider       *identity.Provider
}

type ctxIdentityKey struct{}

// anonPaths may be reached without a bearer token.
var anonPaths = map[string]struct{}{
	"/signup":                  {},
	"/login":                   {},
	"/reset-password":          {},
	"/reset-password/complete": {},
	"/healthz":                 {},
	"/readyz":                  {},
	"/metrics":                 {},
	"/openapi.yaml":            {},
}

func isAnon(path string) bool {
	if _, ok := anonPaths[path]; ok {
		return true
	}
	return strings.HasPrefix(path, "/docs/")
}

// Middleware authenticates requests and injects the verified identity into
// the request context. Anonymous paths pass through rate-limited by client
// IP; everything else requires a valid bearer token.
func Middleware(cfg SecConfig) func(http.Handler) http.Handler {
	limiters := &limiterPool{cfg: cfg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.LogRequest(r)

			origin := r.Header.Get("Origin")
			if origin != "" && originAllowed(origin, cfg.AllowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type")
				w.Header().Set("Access-Control-Max-Age", "600")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if isAnon(r.URL.Path) {
				if !limiters.Allow(clientIP(r)) {
					telemetry.RequestsRejected.WithLabelValues("rate_limited").Inc()
					utils.JSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r)
			if token == "" {
				telemetry.RequestsRejected.WithLabelValues("unauthorized").Inc()
				logger.Warn("request_unauthorized", "path", r.URL.Path, "remote", r.RemoteAddr)
				utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			id, err := cfg.Provider.Verify(token)
			if err != nil {
				telemetry.RequestsRejected.WithLabelValues("unauthorized").Inc()
				logger.Warn("token_rejected", "path", r.URL.Path, "remote", r.RemoteAddr)
				utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			if !limiters.Allow(id.ID) {
				telemetry.RequestsRejected.WithLabelValues("rate_limited").Inc()
				logger.Warn("rate_limited", "user", id.ID, "path", r.URL.Path)
				utils.JSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			logger.Debug("request_allowed", "method", r.Method, "path", r.URL.Path, "user", id.ID)
			ctx := context.WithValue(r.Context(), ctxIdentityKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext returns the verified caller identity, if present.
func IdentityFromContext(ctx context.Context) (identity.Identity, bool) {
	id, ok := ctx.Value(ctxIdentityKey{}).(identity.Identity)
	return id, ok
}

// RequireAdmin gates a subrouter on the allow-list. isAdmin is supplied by
// the admin aggregator so the list stays injected, not global.
func RequireAdmin(isAdmin func(email string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !isAdmin(id.Email) {
				telemetry.RequestsRejected.WithLabelValues("forbidden").Inc()
				logger.Warn("admin_route_forbidden", "user", id.ID, "path", r.URL.Path)
				utils.JSONError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func originAllowed(origin string, allowed []string) bool {
	if len(allowed) == 0 {
		return false
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
