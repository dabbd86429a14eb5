package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
}

func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
		Healthy:         stat.TotalConns() > 0,
	}
}

// Check is an extra dependency probe reported by HealthHandler, e.g. the cache.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthHandler pings the database and every extra check. Any failure turns
// the response into a 503.
func HealthHandler(pool *pgxpool.Pool, checks ...Check) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		body := map[string]interface{}{}
		healthy := true

		if pool != nil {
			stats := GetPoolStats(pool)
			if err := pool.Ping(ctx); err != nil {
				stats.Healthy = false
				healthy = false
				body["error"] = err.Error()
			}
			body["pool"] = stats
		}

		deps := map[string]string{}
		for _, chk := range checks {
			if err := chk.Ping(ctx); err != nil {
				deps[chk.Name] = err.Error()
				healthy = false
				continue
			}
			deps[chk.Name] = "ok"
		}
		if len(deps) > 0 {
			body["checks"] = deps
		}

		if !healthy {
			body["status"] = "unhealthy"
			return c.JSON(http.StatusServiceUnavailable, body)
		}
		body["status"] = "healthy"
		return c.JSON(http.StatusOK, body)
	}
}
