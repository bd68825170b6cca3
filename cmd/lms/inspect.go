package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/noah-isme/lms-platform/internal/repository"
	"github.com/noah-isme/lms-platform/internal/service"
	"github.com/noah-isme/lms-platform/pkg/config"
	"github.com/noah-isme/lms-platform/pkg/store"
)

var errInconsistent = errors.New("registry and routing table are inconsistent")

func newInspectCommand() *cobra.Command {
	var (
		storePath string
		strict    bool
	)
	cmd := &cobra.Command{
		Use:       "inspect [registry|routing|system]",
		Short:     "Inspect a router store offline",
		Long:      "Inspect a router store offline. The router must be stopped; the store file is locked while it runs.",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"registry", "routing", "system"},
		RunE: func(cmd *cobra.Command, args []string) error {
			section := "system"
			if len(args) == 1 {
				section = args[0]
			}
			if storePath == "" {
				cfg, err := config.Load()
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				storePath = cfg.Store.Path
			}
			return inspect(cmd, storePath, section, strict)
		},
	}
	cmd.Flags().StringVar(&storePath, "store", "", "router store file (defaults to STORE_PATH)")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when orphans are found")
	return cmd
}

func inspect(cmd *cobra.Command, path, section string, strict bool) (err error) {
	s := store.New(path, nil, repository.RouterBuckets()...)
	if err := s.Open(cmd.Context()); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	inspection := service.NewInspectionService(repository.NewTenantRepository(s), nil, nil, nil)
	ctx := cmd.Context()
	switch section {
	case "registry":
		report, err := inspection.InspectTenantRegistry(ctx)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), report)
	case "routing":
		report, err := inspection.InspectRoutingTable(ctx)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), report)
	default:
		report, err := inspection.InspectFullSystem(ctx)
		if err != nil {
			return err
		}
		if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
		if strict && !report.DataConsistency {
			return errInconsistent
		}
		return nil
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
