package main

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/oriys/lambdadev/internal/config"
	"github.com/oriys/lambdadev/internal/domain"
	"github.com/oriys/lambdadev/internal/logging"
	"github.com/oriys/lambdadev/internal/module"
	"github.com/oriys/lambdadev/internal/output"
	"github.com/oriys/lambdadev/internal/staleness"
)

func listCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List functions and whether their compiled output is up to date",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			logging.InitStructured(cfg.Logging.Format, cfg.Logging.Level)

			oracle, store, err := newOracle(ctx, cfg)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			rows, err := moduleRows(ctx, cfg, oracle)
			if err != nil {
				return err
			}
			return output.NewPrinter(output.ParseFormat(format), cmd.OutOrStdout()).PrintModules(rows)
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "table", "Output format (table, json, yaml)")
	return cmd
}

func moduleRows(ctx context.Context, cfg *config.Config, oracle staleness.Oracle) ([]output.ModuleRow, error) {
	mods, err := module.Modules(cfg.Functions.Src, cfg.Functions.Output, cfg.Functions.Extensions)
	if err != nil {
		return nil, err
	}
	rows := make([]output.ModuleRow, 0, len(mods))
	for _, mod := range mods {
		rows = append(rows, output.ModuleRow{
			Name:   mod.Name,
			Source: mod.SourcePath,
			Output: mod.OutputPath,
			Status: moduleStatus(ctx, oracle, mod),
		})
	}
	return rows, nil
}

func moduleStatus(ctx context.Context, oracle staleness.Oracle, mod *domain.FunctionModule) string {
	if _, err := os.Stat(mod.OutputPath); errors.Is(err, fs.ErrNotExist) {
		return output.StatusMissing
	} else if err != nil {
		return output.StatusUnknown
	}
	stale, err := oracle.Stale(ctx, mod.SourcePath, mod.OutputPath)
	if err != nil {
		logging.Op().Warn("staleness check failed", "function", mod.Name, "error", err)
		return output.StatusUnknown
	}
	if stale {
		return output.StatusStale
	}
	return output.StatusFresh
}
