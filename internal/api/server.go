// Package api is the HTTP transport of the plaza reward service.
// server.go builds the gin engine, mounts the feature routes and runs the
// http.Server until the context is cancelled.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/plaza-rewards/internal/api/middleware"
	"serotonyl.ru/plaza-rewards/internal/config"
)

// BasePath prefixes every plaza route.
const BasePath = "/api/v1/plaza"

// Registrar mounts a feature's routes on a group.
type Registrar interface {
	Register(rg *gin.RouterGroup)
}

// Pinger reports whether the database answers. *pgxpool.Pool implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server owns the HTTP listener.
type Server struct {
	cfg    *config.Config
	engine *gin.Engine
	http   *http.Server
}

// NewServer creates the engine and mounts the routes.
//
//	/healthz                     no identity
//	/api/v1/plaza/...            X-Tenant-ID and X-User-ID
//	/api/v1/plaza/admin/...      X-Tenant-ID, bearer session
func NewServer(cfg *config.Config, db Pinger, plaza Registrar, admin Registrar) *Server {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.Recovery(), middleware.RequestLogger())

	engine.GET("/healthz", healthz(db))

	v1 := engine.Group(BasePath)
	admin.Register(v1.Group("/admin", middleware.RequireTenant()))
	plaza.Register(v1.Group("", middleware.RequireIdentity()))

	return &Server{
		cfg:    cfg,
		engine: engine,
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      engine,
			ReadTimeout:  cfg.HTTPReadTimeout,
			WriteTimeout: cfg.HTTPWriteTimeout,
		},
	}
}

// Handler exposes the engine for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until ctx is cancelled, then drains in-flight requests
// for up to HTTP_SHUTDOWN_TIMEOUT.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", s.http.Addr).Info("HTTP server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("HTTP server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTPShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func healthz(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			log.WithError(err).Warn("Health check: database unreachable")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
