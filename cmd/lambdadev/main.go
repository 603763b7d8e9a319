package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oriys/lambdadev/internal/cache"
	"github.com/oriys/lambdadev/internal/config"
	"github.com/oriys/lambdadev/internal/logging"
	"github.com/oriys/lambdadev/internal/metrics"
	"github.com/oriys/lambdadev/internal/observability"
	"github.com/oriys/lambdadev/internal/staleness"
)

var version = "dev"

var (
	configPath string
	srcDir     string
	outputDir  string
	extensions []string
	logLevel   string
	logFormat  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "lambdadev",
		Short:         "Local gateway for Lambda-style JavaScript and TypeScript functions",
		Long:          "Compiles function sources on demand and serves them under /.netlify/functions/",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&srcDir, "src", "", "Functions source directory")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output", "", "Compiled functions output directory")
	rootCmd.PersistentFlags().StringSliceVar(&extensions, "ext", nil, "Source extensions, in lookup order")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (text, json)")

	rootCmd.AddCommand(
		serveCmd(),
		buildCmd(),
		invokeCmd(),
		listCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig merges defaults, the config file, the environment and flags,
// in that order, and validates the result.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)

	if srcDir != "" {
		cfg.Functions.Src = srcDir
	}
	if outputDir != "" {
		cfg.Functions.Output = outputDir
	}
	if len(extensions) > 0 {
		cfg.Functions.Extensions = extensions
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setup initializes the ambient stack and runs the pre-init checks.
func setup(ctx context.Context, cfg *config.Config) error {
	logging.InitStructured(cfg.Logging.Format, cfg.Logging.Level)
	if cfg.Logging.File != "" {
		if err := logging.Default().SetOutput(cfg.Logging.File); err != nil {
			return fmt.Errorf("open request log: %w", err)
		}
	}
	if cfg.Metrics.Enabled {
		metrics.InitPrometheus(cfg.Metrics.Namespace, nil)
	}
	if err := observability.Init(ctx, observability.Config{
		Enabled:    cfg.Tracing.Enabled,
		Endpoint:   cfg.Tracing.Endpoint,
		SampleRate: cfg.Tracing.SampleRate,
		Version:    version,
	}); err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	return config.Prepare(cfg)
}

// newOracle builds the staleness oracle and, for the digest strategy, the
// store behind it. The returned store may be nil.
func newOracle(ctx context.Context, cfg *config.Config) (staleness.Oracle, cache.Cache, error) {
	if cfg.Staleness.Strategy != "digest" {
		oracle, err := staleness.New(cfg.Staleness.Strategy, nil)
		return oracle, nil, err
	}
	store, err := cache.New(ctx, cache.Options{
		Backend: cfg.Staleness.Store,
		Redis: cache.RedisCacheConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
	})
	if err != nil {
		return nil, nil, err
	}
	oracle, err := staleness.New(cfg.Staleness.Strategy, store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return oracle, store, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "lambdadev", version)
		},
	}
}
