package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/clinicops/clinic/internal/config"
	"github.com/clinicops/clinic/internal/domain/client"
	"github.com/clinicops/clinic/internal/domain/formulary"
	"github.com/clinicops/clinic/internal/domain/labtest"
	"github.com/clinicops/clinic/internal/domain/screening"
	"github.com/clinicops/clinic/internal/platform/auth"
	"github.com/clinicops/clinic/internal/platform/cache"
	"github.com/clinicops/clinic/internal/platform/db"
	"github.com/clinicops/clinic/internal/platform/middleware"
	"github.com/clinicops/clinic/internal/platform/notification"
)

const version = "0.1.0"

// routeRegistrar is implemented by every domain handler.
type routeRegistrar interface {
	RegisterRoutes(api *echo.Group)
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		Schema:   cfg.DBSchema,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Str("schema", cfg.DBSchema).Msg("connected to database")

	candidateCache, err := cache.New(ctx, cache.Config{URL: cfg.RedisURL})
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, candidate cache disabled")
		candidateCache = cache.Disabled()
	}
	defer candidateCache.Close()

	catalog, err := formulary.Load(cfg.FormularyPath)
	if err != nil {
		logger.Error().Err(err).Str("path", cfg.FormularyPath).Msg("failed to load formulary")
		return err
	}
	logger.Info().Int("medications", catalog.Len()).Msg("formulary loaded")

	notifier := notification.NewManager(notification.NewLogSender(logger, cfg.NotifyFrom), nil)

	clientSvc := client.NewService(client.NewClientRepo(pool), client.NewMedicationRepo(pool), catalog, logger).
		WithCandidateCache(candidateCache, cfg.CandidateCacheTTL)
	testSvc := labtest.NewService(
		labtest.NewTestRepo(pool),
		labtest.NewSnapshotRepo(pool),
		clientSvc,
		notifier,
		pool,
		labtest.Config{
			Policy:          screening.Policy{AutoAcceptInconclusive: cfg.AutoAcceptDilute},
			AdminAlertEmail: cfg.AdminAlertEmail,
		},
		logger,
	)

	e := newEcho(cfg, logger, pool, candidateCache,
		client.NewHandler(clientSvc),
		labtest.NewHandler(testSvc),
		formulary.NewHandler(catalog),
		notification.NewHandler(notifier),
	)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newEcho(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, candidateCache *cache.Cache, handlers ...routeRegistrar) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID},
	}))
	e.Use(authMiddleware(cfg))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/db", db.HealthHandler(pool, db.Check{Name: "cache", Ping: candidateCache.Ping}))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(rateLimitConfig(cfg)))
	for _, h := range handlers {
		h.RegisterRoutes(apiV1)
	}
	return e
}

func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	if cfg.IsDev() && cfg.AuthJWKSURL == "" && cfg.AuthSigningKey == "" {
		return auth.DevAuthMiddleware()
	}
	jc := auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
		Skipper:  auth.PublicSkipper,
	}
	if cfg.AuthSigningKey != "" {
		jc.SigningKey = []byte(cfg.AuthSigningKey)
	}
	return auth.JWTMiddleware(jc)
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}
	return rl
}
