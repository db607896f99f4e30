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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/mediconnect/mediconnect/internal/config"
	"github.com/mediconnect/mediconnect/internal/domain/admin"
	"github.com/mediconnect/mediconnect/internal/domain/billing"
	"github.com/mediconnect/mediconnect/internal/domain/diagnostics"
	"github.com/mediconnect/mediconnect/internal/domain/identity"
	"github.com/mediconnect/mediconnect/internal/domain/medication"
	"github.com/mediconnect/mediconnect/internal/domain/records"
	"github.com/mediconnect/mediconnect/internal/domain/scheduling"
	"github.com/mediconnect/mediconnect/internal/platform/auth"
	"github.com/mediconnect/mediconnect/internal/platform/db"
	"github.com/mediconnect/mediconnect/internal/platform/middleware"
	"github.com/mediconnect/mediconnect/internal/platform/validation"
	"github.com/mediconnect/mediconnect/pkg/response"
)

const version = "1.0.0"

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).Level(level).With().Timestamp().Logger()
	}
	return logger
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	e, err := newServer(cfg, pool, logger, reg)
	if err != nil {
		return err
	}

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
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer builds the echo instance with every route registered. The pool
// is only touched by requests, so tests may pass nil.
func newServer(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger, reg *prometheus.Registry) (*echo.Echo, error) {
	access, err := auth.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("load access policy: %w", err)
	}
	metrics := middleware.NewMetrics(reg)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.Echo{}
	e.HTTPErrorHandler = response.ErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	e.GET("/health", func(c echo.Context) error {
		return response.OK(c, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool, logger))
	e.GET("/metrics", middleware.Handler(reg))

	// Repositories
	tx := db.NewTxRunner(pool)
	userRepo := identity.NewUserRepoPG(pool)
	patientRepo := identity.NewPatientRepoPG(pool)
	doctorRepo := identity.NewDoctorRepoPG(pool)
	nurseRepo := identity.NewNurseRepoPG(pool)
	apptRepo := scheduling.NewAppointmentRepoPG(pool)

	// Services
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	identitySvc := identity.NewService(tx, userRepo, patientRepo, doctorRepo, nurseRepo, access,
		tokens, auth.NewPasswordHasher(cfg.BcryptCost))
	schedulingSvc := scheduling.NewService(tx, apptRepo, patientRepo, doctorRepo, access)
	schedulingSvc.SetConflictObserver(metrics)
	billingSvc := billing.NewService(tx, billing.NewBillRepoPG(pool), apptRepo, patientRepo, access)
	medicationSvc := medication.NewService(tx, medication.NewPrescriptionRepoPG(pool), patientRepo, doctorRepo, apptRepo, access)
	diagnosticsSvc := diagnostics.NewService(tx, diagnostics.NewLabResultRepoPG(pool), patientRepo, apptRepo, access)
	recordsSvc := records.NewService(tx, records.NewRecordRepoPG(pool), patientRepo, doctorRepo, access)
	adminSvc := admin.NewService(identitySvc, schedulingSvc, billingSvc)

	rateLimit := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimit.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rateLimit.BurstSize = cfg.RateLimitBurst
	}

	api := e.Group("/api")
	api.Use(auth.JWTMiddleware(tokens, identitySvc, auth.AuthSkipper))
	api.Use(middleware.RateLimit(rateLimit))
	api.Use(middleware.Audit(logger))

	identity.NewHandler(identitySvc).RegisterRoutes(api)
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(api)
	billing.NewHandler(billingSvc).RegisterRoutes(api)
	medication.NewHandler(medicationSvc).RegisterRoutes(api)
	diagnostics.NewHandler(diagnosticsSvc).RegisterRoutes(api)
	records.NewHandler(recordsSvc).RegisterRoutes(api)
	admin.NewHandler(adminSvc).RegisterRoutes(api)

	return e, nil
}
