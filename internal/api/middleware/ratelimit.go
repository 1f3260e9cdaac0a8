package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rensmac/sparq-chat/internal/api/response"
	"github.com/rensmac/sparq-chat/internal/repository/redis"
	"github.com/rs/zerolog/log"
)

// RateLimitMiddleware applies per-route fixed-window request limits,
// keyed by authenticated user when present, otherwise by client address.
type RateLimitMiddleware struct {
	limiter *redis.RateLimiter
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(limiter *redis.RateLimiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter}
}

// Limit returns middleware enforcing at most limit requests per window
// for the named scope.
func (m *RateLimitMiddleware) Limit(scope string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientAddr(r)
			if userID, ok := GetUserID(r.Context()); ok {
				key = userID.String()
			}

			allowed, remaining, resetTime, err := m.limiter.Allow(r.Context(), scope, key, limit, window)
			if err != nil {
				// Fail open when the limiter is unreachable.
				log.Warn().Err(err).Str("scope", scope).Msg("Rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			w.Header().Set("X-RateLimit-Reset", resetTime.UTC().Format(time.RFC3339))

			if !allowed {
				response.TooManyRequests(w, "rate limit exceeded, try again later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
