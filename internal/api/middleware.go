package api

import (
	"context"
	"crypto/subtle"
	"log"
	"net/http"
	"strings"

	"github.com/ignite/mailcore/internal/pkg/httputil"
	"github.com/ignite/mailcore/internal/pkg/logger"
	"github.com/ignite/mailcore/internal/pkg/ratelimit"
)

// apiActor is recorded on audit entries for token-authenticated calls.
const apiActor = "api"

// RequireToken rejects requests without the configured bearer token. An
// empty token disables the API entirely rather than leaving it open.
func RequireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				httputil.Unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(withActor(r.Context(), apiActor)))
		})
	}
}

// IPReputations decides whether a caller IP may use the send API.
type IPReputations interface {
	CanSend(ctx context.Context, ip string) (bool, error)
}

// AntiSpam blocks callers with a bad IP reputation and throttles each IP to
// the limiter's per-window budget. Lookup failures let the request through.
func AntiSpam(reputations IPReputations, limiter ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			ok, err := reputations.CanSend(r.Context(), ip)
			if err != nil {
				log.Printf("[API] Reputation lookup failed for %s: %v", logger.RedactIP(ip), err)
			} else if !ok {
				httputil.JSON(w, http.StatusForbidden, map[string]any{
					"success": false,
					"error":   "Your IP address has been blocked due to suspicious activity",
					"code":    "IP_BLOCKED",
				})
				return
			}

			allowed, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				log.Printf("[API] Rate limiter failed for %s: %v", logger.RedactIP(ip), err)
			} else if !allowed {
				httputil.JSON(w, http.StatusTooManyRequests, map[string]any{
					"success": false,
					"error":   "Rate limit exceeded. Please try again later.",
					"code":    "RATE_LIMIT_EXCEEDED",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
