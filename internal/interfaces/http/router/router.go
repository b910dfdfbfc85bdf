// Package router assembles glvault's gin engine: the relay endpoint, the
// admin-token-gated management endpoints, health, and Prometheus metrics.
package router

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/genlayerlabs/glvault/internal/config"
	"github.com/genlayerlabs/glvault/internal/domain/service"
	"github.com/genlayerlabs/glvault/internal/interfaces/http/handlers"
	"github.com/genlayerlabs/glvault/internal/interfaces/http/middleware"
	"github.com/genlayerlabs/glvault/pkg/logger"
)

// Router owns the gin engine and its HTTP server lifecycle.
type Router struct {
	engine        *gin.Engine
	config        *config.Config
	logger        logger.Logger
	healthHandler *handlers.HealthHandler
	relayHandler  *handlers.RelayHandler
	adminHandler  *handlers.AdminHandler
	authenticator service.RequestAuthenticator
	server        *http.Server
}

// NewRouter builds a Router. Routes are not installed until SetupRoutes runs.
func NewRouter(
	cfg *config.Config,
	log logger.Logger,
	healthHandler *handlers.HealthHandler,
	relayHandler *handlers.RelayHandler,
	adminHandler *handlers.AdminHandler,
	authenticator service.RequestAuthenticator,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	return &Router{
		engine:        engine,
		config:        cfg,
		logger:        log,
		healthHandler: healthHandler,
		relayHandler:  relayHandler,
		adminHandler:  adminHandler,
		authenticator: authenticator,
	}
}

// SetupRoutes installs every middleware and route.
func (r *Router) SetupRoutes() {
	r.engine.Use(gin.Recovery())
	r.engine.Use(middleware.RequestIDMiddleware())
	r.engine.Use(middleware.ObservabilityMiddleware(otel.Tracer("glvault")))

	corsConfig := cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "Retry-After-Ms"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	r.engine.Use(cors.New(corsConfig))

	r.engine.GET("/health", r.healthHandler.HealthCheck)
	r.engine.GET("/ready", r.healthHandler.ReadinessCheck)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(r.engine)

	r.engine.POST("/proxy", r.relayHandler.Relay)

	keys := r.engine.Group("/keys")
	keys.Use(middleware.AdminAuthMiddleware(r.authenticator))
	{
		keys.POST("/register", r.adminHandler.Register)
		keys.GET("/list", r.adminHandler.List)
		keys.POST("/rotate", r.adminHandler.Rotate)
		keys.DELETE("/:alias", r.adminHandler.Remove)
		keys.GET("/audit", r.adminHandler.Audit)
	}

	r.engine.HandleMethodNotAllowed = true
	r.engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "METHOD_NOT_ALLOWED", "status": http.StatusMethodNotAllowed})
	})
	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "NOT_FOUND", "status": http.StatusNotFound})
	})
}

// Start installs routes and serves until the process receives SIGINT/SIGTERM.
func (r *Router) Start() error {
	r.SetupRoutes()

	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	r.server = &http.Server{
		Addr:           addr,
		Handler:        r.engine,
		ReadTimeout:    time.Duration(r.config.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(r.config.Server.WriteTimeout) * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	r.logger.Info(context.Background(), "starting http server", logger.Fields{"address": addr})

	go r.gracefulShutdown()

	if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (r *Router) gracefulShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	r.logger.Info(context.Background(), "shutting down http server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := r.server.Shutdown(ctx); err != nil {
		r.logger.Error(context.Background(), "server forced to shutdown", err)
	}
	r.logger.Info(context.Background(), "http server stopped")
}

// Stop shuts the server down explicitly, for use outside the signal-driven path.
func (r *Router) Stop(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	r.logger.Info(ctx, "stopping http server")
	return r.server.Shutdown(ctx)
}

// Engine exposes the gin engine, chiefly for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
