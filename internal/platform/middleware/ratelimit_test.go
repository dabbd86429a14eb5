package middleware

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinicops/clinic/internal/platform/auth"
)

func TestLimiter_BurstAndRefill(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})
	l.now = func() time.Time { return now }

	if ok, _ := l.allow("k"); !ok {
		t.Fatal("first request should pass")
	}
	if ok, _ := l.allow("k"); !ok {
		t.Fatal("second request should pass within burst")
	}
	ok, retry := l.allow("k")
	if ok || retry < 1 {
		t.Fatalf("third request should be limited, got ok=%v retry=%d", ok, retry)
	}
	if ok, _ := l.allow("other"); !ok {
		t.Error("keys must be limited independently")
	}

	now = now.Add(1100 * time.Millisecond)
	if ok, _ := l.allow("k"); !ok {
		t.Error("token should have refilled")
	}
}

func TestLimiter_SweepsIdleBuckets(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, IdleTTL: time.Minute})
	l.now = func() time.Time { return now }

	l.allow("a")
	now = now.Add(2 * time.Minute)
	l.allow("b")
	if _, ok := l.buckets["a"]; ok {
		t.Error("idle bucket should be swept")
	}
	if len(l.buckets) != 1 {
		t.Errorf("expected 1 bucket, got %d", len(l.buckets))
	}
}

func TestLimiter_InvalidConfigUsesDefaults(t *testing.T) {
	l := newLimiter(RateLimitConfig{})
	if l.cfg.RequestsPerSecond <= 0 || l.cfg.BurstSize <= 0 || l.cfg.IdleTTL <= 0 {
		t.Errorf("expected defaults, got %+v", l.cfg)
	}
}

func TestRateLimit_Middleware(t *testing.T) {
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1})
	handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	c, rec := newContext(http.MethodGet, "/", "")
	if err := handler(c); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if rec.Header().Get("X-RateLimit-Limit") == "" {
		t.Error("expected X-RateLimit-Limit header")
	}

	c, rec = newContext(http.MethodGet, "/", "")
	err := handler(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	c, _ = newContext(http.MethodGet, "/", "")
	c.SetRequest(c.Request().WithContext(auth.WithUser(context.Background(), "u1", "", nil)))
	if err := handler(c); err != nil {
		t.Errorf("authenticated user has its own bucket, got %v", err)
	}
}
