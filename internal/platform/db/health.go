package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mediconnect/mediconnect/pkg/response"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
	Stat() *pgxpool.Stat
}

func GetPoolStats(stat *pgxpool.Stat) *PoolStats {
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// HealthHandler pings the database. Failures are logged, not returned to the client.
func HealthHandler(pool Pinger, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		if err := pool.Ping(ctx); err != nil {
			logger.Warn().Err(err).Msg("database health check failed")
			return c.JSON(http.StatusServiceUnavailable, response.Envelope{
				Success: false,
				Message: "database unavailable",
			})
		}

		return response.OK(c, map[string]interface{}{
			"status": "healthy",
			"pool":   GetPoolStats(pool.Stat()),
		})
	}
}
