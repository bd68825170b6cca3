package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-platform/internal/router"
	"github.com/noah-isme/lms-platform/pkg/config"
)

func newRouterCommand() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "router",
		Short: "Serve the router: provisioning, tenant registry and routing table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run("router", port, func(ctx context.Context, cfg *config.Config, logr *zap.Logger) (process, error) {
				return router.New(ctx, cfg, logr, router.Options{})
			})
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides PORT)")
	return cmd
}
