package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinicops/clinic/internal/platform/auth"
)

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// IdleTTL drops buckets not touched for this long.
	IdleTTL time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{RequestsPerSecond: 20, BurstSize: 40, IdleTTL: 10 * time.Minute}
}

type tokenBucket struct {
	tokens   float64
	lastSeen time.Time
}

// limiter is a per-key token bucket.
type limiter struct {
	mu      sync.Mutex
	cfg     RateLimitConfig
	buckets map[string]*tokenBucket
	now     func() time.Time
	sweptAt time.Time
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.RequestsPerSecond <= 0 || cfg.BurstSize <= 0 {
		d := DefaultRateLimitConfig()
		cfg.RequestsPerSecond, cfg.BurstSize = d.RequestsPerSecond, d.BurstSize
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultRateLimitConfig().IdleTTL
	}
	return &limiter{cfg: cfg, buckets: make(map[string]*tokenBucket), now: time.Now}
}

// allow spends one token for key. When refused it returns the whole seconds
// until the next token.
func (l *limiter) allow(key string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &tokenBucket{tokens: float64(l.cfg.BurstSize), lastSeen: now}
		l.buckets[key] = b
	}
	b.tokens += now.Sub(b.lastSeen).Seconds() * l.cfg.RequestsPerSecond
	if burst := float64(l.cfg.BurstSize); b.tokens > burst {
		b.tokens = burst
	}
	b.lastSeen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	return false, int((1-b.tokens)/l.cfg.RequestsPerSecond) + 1
}

func (l *limiter) sweep(now time.Time) {
	if now.Sub(l.sweptAt) < l.cfg.IdleTTL {
		return
	}
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.cfg.IdleTTL {
			delete(l.buckets, k)
		}
	}
	l.sweptAt = now
}

// RateLimit limits each authenticated user, or each client IP before auth.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	l := newLimiter(cfg)
	limit := strconv.FormatFloat(l.cfg.RequestsPerSecond, 'f', -1, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "ip:" + c.RealIP()
			if uid := auth.UserIDFromContext(c.Request().Context()); uid != "" {
				key = "user:" + uid
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			ok, retryAfter := l.allow(key)
			if !ok {
				h.Set("Retry-After", strconv.Itoa(retryAfter))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
