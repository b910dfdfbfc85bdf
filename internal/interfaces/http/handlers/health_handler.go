package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/genlayerlabs/glvault/internal/domain/service"
	"github.com/genlayerlabs/glvault/pkg/constants"
	"github.com/genlayerlabs/glvault/pkg/logger"
)

// HealthHandler reports whether the configured storage backend is reachable
// by probing CredentialStore.List, and how many credentials it holds.
type HealthHandler struct {
	store     service.CredentialStore
	log       logger.Logger
	startedAt time.Time
}

// NewHealthHandler builds a HealthHandler. startedAt is captured once at
// construction so uptime_ms reflects process age on every call.
func NewHealthHandler(store service.CredentialStore, log logger.Logger) *HealthHandler {
	return &HealthHandler{store: store, log: log, startedAt: time.Now()}
}

// HealthCheck handles GET /health.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	keys, err := h.store.List(ctx)

	status := "ok"
	httpStatus := http.StatusOK
	storage := "connected"
	keysRegistered := 0

	if err != nil {
		h.log.Warn(ctx, "health check backend probe failed", logger.Fields{"error": err.Error()})
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
		storage = "disconnected"
	} else {
		keysRegistered = len(keys)
	}

	c.JSON(httpStatus, gin.H{
		"status":          status,
		"version":         constants.ServiceVersion,
		"uptime_ms":       time.Since(h.startedAt).Milliseconds(),
		"storage":         storage,
		"keys_registered": keysRegistered,
	})
}

// ReadinessCheck handles GET /ready.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	h.HealthCheck(c)
}
