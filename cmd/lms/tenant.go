package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-platform/internal/tenant"
	"github.com/noah-isme/lms-platform/pkg/config"
)

func newTenantCommand() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Serve one university tenant",
		Long:  "Serve one university tenant. TENANT_ID and TENANT_ADMIN_PRINCIPAL initialize the store on first start and must match on every later start.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run("tenant", port, func(ctx context.Context, cfg *config.Config, logr *zap.Logger) (process, error) {
				return tenant.New(ctx, cfg, logr, tenant.Options{})
			})
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides PORT)")
	return cmd
}
