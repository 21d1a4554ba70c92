package middlewares

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"scribe-server/internal/infrastructure/metrics"
)

const rateWindow = time.Hour

// RollingLimiter caps requests per endpoint within a rolling one-hour
// window. It is in-memory and per process: independent instances do not
// coordinate, which is accepted since the limiter guards against abuse
// rather than enforcing a hard quota.
type RollingLimiter struct {
	mu      sync.Mutex
	perHour int
	log     map[string][]time.Time
}

func NewRollingLimiter(perHour int) *RollingLimiter {
	return &RollingLimiter{
		perHour: perHour,
		log:     make(map[string][]time.Time),
	}
}

// Allow records one request against the endpoint and reports whether it is
// within the rolling window's budget.
func (l *RollingLimiter) Allow(endpoint string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.perHour <= 0 {
		return true
	}

	now := time.Now()
	cutoff := now.Add(-rateWindow)
	entries := l.log[endpoint]
	kept := entries[:0]
	for _, t := range entries {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.perHour {
		l.log[endpoint] = kept
		return false
	}
	l.log[endpoint] = append(kept, now)
	return true
}

// SetBudget swaps the per-endpoint hourly budget. The periodic environment
// reload applies a changed RATE_LIMIT_GLOBAL_PER_HOUR through this without a
// restart; recorded requests keep counting against the new budget.
func (l *RollingLimiter) SetBudget(perHour int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.perHour = perHour
}

// Purge drops entries older than two windows. Run periodically so idle
// endpoints do not pin memory.
func (l *RollingLimiter) Purge() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-2 * rateWindow)
	for key, entries := range l.log {
		kept := entries[:0]
		for _, t := range entries {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			delete(l.log, key)
			continue
		}
		l.log[key] = kept
	}
}

// RateLimitMiddleware rejects requests over the rolling per-endpoint budget
// with 429 and a Retry-After hint.
func RateLimitMiddleware(limiter *RollingLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}

		if !limiter.Allow(endpoint) {
			metrics.RateLimitedTotal.WithLabelValues(endpoint).Inc()
			c.Header("Retry-After", "3600")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": "Hourly request budget exhausted, retry later",
			})
			return
		}

		c.Next()
	}
}
