package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"beacon/internal/config"
	"beacon/pkg/errors"
	"beacon/pkg/metrics"
)

type RateLimitConfig struct {
	RPS             float64
	Burst           int
	CleanupInterval time.Duration
	MaxAge          time.Duration
}

func DefaultConfig() RateLimitConfig {
	return RateLimitConfig{
		RPS:             10.0,
		Burst:           20,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          10 * time.Minute,
	}
}

// FromSettings fills unset fields from DefaultConfig. Intervals are in seconds.
func FromSettings(cfg config.RateLimitConfig) RateLimitConfig {
	out := DefaultConfig()
	if cfg.RPS > 0 {
		out.RPS = cfg.RPS
	}
	if cfg.Burst > 0 {
		out.Burst = cfg.Burst
	}
	if cfg.CleanupInterval > 0 {
		out.CleanupInterval = time.Duration(cfg.CleanupInterval) * time.Second
	}
	if cfg.MaxAge > 0 {
		out.MaxAge = time.Duration(cfg.MaxAge) * time.Second
	}
	return out
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clients holds one token bucket per caller address.
type clients struct {
	cfg RateLimitConfig

	mu    sync.Mutex
	byKey map[string]*client
	swept time.Time
}

func newClients(cfg RateLimitConfig) *clients {
	return &clients{cfg: cfg, byKey: make(map[string]*client), swept: time.Now()}
}

// take reports whether key may proceed and the tokens it has left.
func (c *clients) take(key string, now time.Time) (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.swept) >= c.cfg.CleanupInterval {
		c.evictIdle(now)
	}

	cl, ok := c.byKey[key]
	if !ok {
		cl = &client{limiter: rate.NewLimiter(rate.Limit(c.cfg.RPS), c.cfg.Burst)}
		c.byKey[key] = cl
	}
	cl.lastSeen = now

	allowed := cl.limiter.AllowN(now, 1)
	left := int(cl.limiter.TokensAt(now))
	if left < 0 {
		left = 0
	}
	return allowed, left
}

func (c *clients) evictIdle(now time.Time) {
	for key, cl := range c.byKey {
		if now.Sub(cl.lastSeen) > c.cfg.MaxAge {
			delete(c.byKey, key)
		}
	}
	c.swept = now
}

// RateLimitMiddleware limits each client IP to cfg.RPS with bursts of cfg.Burst.
// Idle clients are evicted lazily every CleanupInterval.
func RateLimitMiddleware(cfg RateLimitConfig) gin.HandlerFunc {
	table := newClients(cfg)
	limit := strconv.Itoa(int(cfg.RPS))

	return func(c *gin.Context) {
		key := c.ClientIP()
		if key == "" {
			key = c.RemoteIP()
		}

		allowed, left := table.take(key, time.Now())
		c.Header("X-RateLimit-Limit", limit)
		c.Header("X-RateLimit-Remaining", strconv.Itoa(left))

		if !allowed {
			metrics.RateLimitRequestsTotal.WithLabelValues("limited").Inc()
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				errors.ToErrorResponse(errors.ErrServiceUnavailable.WithMessage("rate limit exceeded")))
			return
		}

		metrics.RateLimitRequestsTotal.WithLabelValues("allowed").Inc()
		c.Next()
	}
}
