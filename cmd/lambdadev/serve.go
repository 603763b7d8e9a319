package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oriys/lambdadev/internal/api"
	"github.com/oriys/lambdadev/internal/artifact"
	"github.com/oriys/lambdadev/internal/compiler"
	"github.com/oriys/lambdadev/internal/config"
	"github.com/oriys/lambdadev/internal/gateway"
	"github.com/oriys/lambdadev/internal/logging"
	"github.com/oriys/lambdadev/internal/metrics"
	"github.com/oriys/lambdadev/internal/observability"
	"github.com/oriys/lambdadev/internal/staleness"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the development server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx := context.Background()
			if err := setup(ctx, cfg); err != nil {
				return err
			}
			defer logging.Default().Close()

			oracle, store, err := newOracle(ctx, cfg)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			registry := artifact.NewRegistry()
			defer registry.Close()

			gw := newGateway(cfg, oracle, registry)
			httpServer := api.StartHTTPServer(cfg.Server.Addr, api.ServerConfig{
				Prefix:            cfg.Functions.Prefix,
				Gateway:           gw,
				Artifacts:         registry,
				Metrics:           metrics.Global(),
				PrometheusEnabled: cfg.Metrics.Enabled,
			})
			logging.Op().Info("dev server started",
				"addr", cfg.Server.Addr,
				"prefix", cfg.Functions.Prefix,
				"src", cfg.Functions.Src,
				"output", cfg.Functions.Output,
				"staleness", cfg.Staleness.Strategy)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			// A second signal falls through to the default handler and exits.
			signal.Stop(sigCh)

			logging.Op().Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logging.Op().Warn("graceful shutdown incomplete, closing connections", "error", err)
				httpServer.Close()
			}
			registry.Close()
			observability.Shutdown(shutdownCtx)
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address")
	return cmd
}

func newGateway(cfg *config.Config, oracle staleness.Oracle, registry *artifact.Registry) *gateway.Gateway {
	comp := compiler.New(compiler.Options{Scope: cfg.Functions.Src})
	return gateway.New(gateway.Config{
		SourceDir:  cfg.Functions.Src,
		OutputDir:  cfg.Functions.Output,
		Extensions: cfg.Functions.Extensions,
	}, comp, oracle, registry)
}
