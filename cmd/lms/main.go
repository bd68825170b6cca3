package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// @title LMS Platform API
// @version 1.0.0
// @description Multi-tenant learning management: a router that provisions and routes universities, and per-university tenant services.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "lms",
		Short:         "Multi-tenant learning management platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRouterCommand(), newTenantCommand(), newInspectCommand())
	return root
}
