package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oriys/lambdadev/internal/compiler"
	"github.com/oriys/lambdadev/internal/logging"
	"github.com/oriys/lambdadev/internal/observability"
	"github.com/oriys/lambdadev/internal/publish"
)

func buildCmd() *cobra.Command {
	var publishTo string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compile every function for deployment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var target publish.Target
			if publishTo != "" {
				if target, err = publish.ParseTarget(publishTo); err != nil {
					return err
				}
			}

			ctx := context.Background()
			if err := setup(ctx, cfg); err != nil {
				return err
			}
			defer observability.Shutdown(ctx)

			comp := compiler.New(compiler.Options{Scope: cfg.Functions.Src})
			res, err := comp.Batch(ctx, cfg.Functions.Src, cfg.Functions.Output, cfg.Functions.Extensions)
			if res != nil {
				for _, mod := range res.Compiled {
					fmt.Fprintf(cmd.OutOrStdout(), "compiled %s -> %s\n", mod.SourcePath, mod.OutputPath)
				}
				for _, mod := range res.Failed {
					fmt.Fprintf(cmd.OutOrStdout(), "FAILED   %s\n", mod.SourcePath)
				}
			}
			if err != nil {
				return err
			}

			if publishTo == "" {
				return nil
			}
			pub, err := publish.NewFromEnv(ctx, publish.Options{
				Region:          cfg.Publish.Region,
				Endpoint:        cfg.Publish.Endpoint,
				AccessKeyID:     cfg.Publish.AccessKeyID,
				SecretAccessKey: cfg.Publish.SecretAccessKey,
			})
			if err != nil {
				return err
			}
			files := make([]string, 0, len(res.Compiled))
			for _, mod := range res.Compiled {
				files = append(files, mod.OutputPath)
			}
			keys, err := pub.Publish(ctx, target, files)
			if err != nil {
				return err
			}
			logging.Op().Info("build published", "target", target.String(), "objects", len(keys))
			return nil
		},
	}

	cmd.Flags().StringVar(&publishTo, "publish", "", "Upload compiled functions to s3://bucket/prefix")
	return cmd
}
