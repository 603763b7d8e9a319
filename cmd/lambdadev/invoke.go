package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/oriys/lambdadev/internal/api"
	"github.com/oriys/lambdadev/internal/artifact"
	"github.com/oriys/lambdadev/internal/logging"
	"github.com/oriys/lambdadev/internal/output"
)

func invokeCmd() *cobra.Command {
	var (
		method  string
		data    string
		headers []string
		query   []string
		format  string
	)

	cmd := &cobra.Command{
		Use:   "invoke <name>",
		Short: "Invoke a function once without starting a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			if err := setup(ctx, cfg); err != nil {
				return err
			}

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
			gw.SetRequestLogger(logging.NewLogger(cmd.ErrOrStderr()))

			prefix := strings.TrimSuffix(cfg.Functions.Prefix, "/")
			if prefix == "" {
				prefix = api.DefaultPrefix
			}
			target := prefix + "/" + args[0]
			if len(query) > 0 {
				q := url.Values{}
				for _, kv := range query {
					k, v, _ := strings.Cut(kv, "=")
					q.Add(k, v)
				}
				target += "?" + q.Encode()
			}

			req := httptest.NewRequest(strings.ToUpper(method), target, strings.NewReader(data))
			for _, h := range headers {
				k, v, ok := strings.Cut(h, ":")
				if !ok {
					return fmt.Errorf("invalid header %q, expected name:value", h)
				}
				req.Header.Add(strings.TrimSpace(k), strings.TrimSpace(v))
			}

			start := time.Now()
			rec := httptest.NewRecorder()
			http.StripPrefix(prefix, gw).ServeHTTP(rec, req)

			printer := output.NewPrinter(output.ParseFormat(format), cmd.OutOrStdout())
			if err := printer.PrintInvokeResult(output.InvokeResult{
				Function:   args[0],
				StatusCode: rec.Code,
				Headers:    rec.Header(),
				Body:       rec.Body.String(),
				DurationMs: time.Since(start).Milliseconds(),
			}); err != nil {
				return err
			}
			if rec.Code >= http.StatusInternalServerError {
				return fmt.Errorf("invocation returned status %d", rec.Code)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&method, "method", "X", http.MethodGet, "HTTP method")
	cmd.Flags().StringVarP(&data, "data", "d", "", "Request body")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Request header (name:value), repeatable")
	cmd.Flags().StringArrayVarP(&query, "query", "q", nil, "Query parameter (key=value), repeatable")
	cmd.Flags().StringVarP(&format, "output", "o", "table", "Output format (table, json, yaml)")
	return cmd
}
