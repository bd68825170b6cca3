// Package server holds the HTTP plumbing shared by the router and tenant processes.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/lms-platform/api/swagger"
	"github.com/noah-isme/lms-platform/internal/handler"
	"github.com/noah-isme/lms-platform/internal/middleware"
	"github.com/noah-isme/lms-platform/internal/service"
	"github.com/noah-isme/lms-platform/pkg/config"
	"github.com/noah-isme/lms-platform/pkg/logger"
	corsmiddleware "github.com/noah-isme/lms-platform/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lms-platform/pkg/middleware/requestid"
)

const shutdownTimeout = 15 * time.Second

// NewEngine builds a gin engine with observability routes mounted ahead of
// identity resolution. Routes added to the returned engine see the caller.
func NewEngine(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, identities *service.IdentityService, checks map[string]handler.ReadinessCheck) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	observability := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", observability.Health)
	r.GET("/ready", observability.Ready)
	r.GET("/metrics", observability.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.Identity(identities))
	return r
}

// Serve runs handler on addr until ctx is cancelled, then drains in-flight
// requests.
func Serve(ctx context.Context, addr string, h http.Handler, logr *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	logr.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// Addr formats the listen address for port.
func Addr(port int) string {
	return fmt.Sprintf(":%d", port)
}
