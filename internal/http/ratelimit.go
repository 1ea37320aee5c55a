package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL         = time.Hour
	limiterCleanupInterval = 5 * time.Minute
)

// rateLimiterStore keeps one token bucket per client IP.
type rateLimiterStore struct {
	limiters sync.Map // client IP -> *rateLimiterEntry
	rps      float64
	burst    int
}

type rateLimiterEntry struct {
	limiter *rate.Limiter

	mu         sync.Mutex
	lastAccess time.Time
}

func newRateLimiterStore(rps float64, burst int) *rateLimiterStore {
	return &rateLimiterStore{rps: rps, burst: burst}
}

func (s *rateLimiterStore) limiter(ip string) *rate.Limiter {
	now := time.Now()
	value, _ := s.limiters.LoadOrStore(ip, &rateLimiterEntry{
		limiter:    rate.NewLimiter(rate.Limit(s.rps), s.burst),
		lastAccess: now,
	})
	entry := value.(*rateLimiterEntry)

	entry.mu.Lock()
	entry.lastAccess = now
	entry.mu.Unlock()
	return entry.limiter
}

// evictIdle drops limiters not used since before threshold.
func (s *rateLimiterStore) evictIdle(threshold time.Time) {
	s.limiters.Range(func(key, value any) bool {
		entry := value.(*rateLimiterEntry)
		entry.mu.Lock()
		idle := entry.lastAccess.Before(threshold)
		entry.mu.Unlock()
		if idle {
			s.limiters.Delete(key)
		}
		return true
	})
}

// runCleanup evicts idle limiters until ctx is done.
func (s *rateLimiterStore) runCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evictIdle(time.Now().Add(-limiterIdleTTL))
		}
	}
}

// rateLimitMiddleware answers 429 with a Retry-After header once a client IP exhausts its bucket.
func rateLimitMiddleware(store *rateLimiterStore, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		limiter := store.limiter(clientIP)

		if limiter.Allow() {
			c.Next()
			return
		}

		reservation := limiter.Reserve()
		retryAfter := int(reservation.Delay().Seconds()) + 1
		reservation.Cancel()

		logger.Debug("rate limit exceeded",
			slog.String("client_ip", clientIP),
			slog.Int("retry_after", retryAfter))

		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":   "rate_limit_exceeded",
			"message": "Too many requests, retry after the delay in Retry-After",
		})
	}
}
