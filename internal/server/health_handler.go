package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ThiagoRGoveia/section3-compliance/internal/logger"
)

const (
	pingTimeout = 2 * time.Second
	// A ping slower than this still answers but reports the service degraded.
	slowPingThreshold = time.Second
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	log           *logger.Logger
	db            Pinger
	slowThreshold time.Duration
}

func NewHealthHandler(log *logger.Logger, db Pinger) *HealthHandler {
	return &HealthHandler{
		log:           log.With("handler", "HealthHandler"),
		db:            db,
		slowThreshold: slowPingThreshold,
	}
}

// HealthCheck answers 200 for healthy and degraded and 503 for unhealthy.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
	defer cancel()

	start := time.Now()
	err := h.db.Ping(ctx)
	elapsed := time.Since(start)

	if err != nil {
		h.log.Warn("health check failed", "error", err, "response_time_ms", elapsed.Milliseconds())
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":           "unhealthy",
			"database":         "unreachable",
			"response_time_ms": elapsed.Milliseconds(),
			"time":             time.Now().UTC(),
		})
		return
	}

	status, database := "healthy", "connected"
	if elapsed > h.slowThreshold {
		status, database = "degraded", "slow"
		h.log.Warn("database responding slowly", "response_time_ms", elapsed.Milliseconds())
	}

	RespondOK(c, gin.H{
		"status":           status,
		"database":         database,
		"response_time_ms": elapsed.Milliseconds(),
		"time":             time.Now().UTC(),
	})
}
