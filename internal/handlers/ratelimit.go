package handlers

import (
	"net/http"

	"cryptotracker/internal/cache"
	"cryptotracker/internal/logger"

	"github.com/go-redis/redis_rate/v10"
	"go.uber.org/zap"
)

// RateLimit wraps a handler with a per-client-IP request budget backed
// by the shared Redis instance, so the limit holds across API replicas.
func RateLimit(c *cache.Cache, perSecond int, next http.Handler) http.Handler {
	limiter := redis_rate.NewLimiter(c.Client())

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ratelimit:" + clientIP(r)

		res, err := limiter.Allow(r.Context(), key, redis_rate.PerSecond(perSecond))
		if err != nil {
			// Redis trouble should not take the API down.
			logger.Log.Warn("Rate limiter unavailable, letting request through", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		if res.Allowed == 0 {
			w.Header().Set("Retry-After", res.RetryAfter.String())
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}
