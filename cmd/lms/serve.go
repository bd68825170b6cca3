package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-platform/internal/server"
	"github.com/noah-isme/lms-platform/pkg/config"
	"github.com/noah-isme/lms-platform/pkg/logger"
)

// process is what router and tenant have in common.
type process interface {
	Start(ctx context.Context)
	Engine() *gin.Engine
	Close() error
}

type buildFunc func(ctx context.Context, cfg *config.Config, logr *zap.Logger) (process, error)

// run loads configuration, builds the process and serves it until SIGINT or
// SIGTERM.
func run(component string, port int, build buildFunc) (err error) {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port > 0 {
		cfg.Port = port
	}

	logr, err := logger.New(cfg, component)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logr.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, cfg, logr)
	if err != nil {
		logr.Error("startup failed", zap.Error(err))
		return err
	}
	defer func() { err = multierr.Append(err, app.Close()) }()

	app.Start(ctx)
	logr.Info("starting", zap.String("env", cfg.Env), zap.String("api_prefix", cfg.APIPrefix))
	return server.Serve(ctx, server.Addr(cfg.Port), app.Engine(), logr)
}
