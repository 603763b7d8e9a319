package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/oriys/lambdadev/internal/artifact"
	"github.com/oriys/lambdadev/internal/logging"
	"github.com/oriys/lambdadev/internal/metrics"
	"github.com/oriys/lambdadev/internal/observability"
)

// DefaultPrefix is the URL prefix function invocations are served under.
const DefaultPrefix = "/.netlify/functions"

// ServerConfig contains dependencies for the HTTP server.
type ServerConfig struct {
	// Prefix is where Gateway is mounted. Defaults to DefaultPrefix.
	Prefix    string
	Gateway   http.Handler
	Artifacts *artifact.Registry
	Metrics   *metrics.Metrics

	// PrometheusEnabled exposes /metrics.
	PrometheusEnabled bool
}

// NewHandler builds the dev server routes: the function gateway under the
// prefix plus /health, /stats and optionally /metrics.
func NewHandler(cfg ServerConfig) http.Handler {
	prefix := strings.TrimSuffix(cfg.Prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}

	mux := http.NewServeMux()
	mux.Handle(prefix+"/", http.StripPrefix(prefix, cfg.Gateway))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"status":         "ok",
			"uptime_seconds": int64(time.Since(metrics.StartTime()).Seconds()),
		}
		if cfg.Artifacts != nil {
			resp["cached_artifacts"] = cfg.Artifacts.Len()
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	mux.Handle("GET /stats", m.JSONHandler())
	if cfg.PrometheusEnabled {
		mux.Handle("GET /metrics", metrics.PrometheusHandler())
	}

	return observability.HTTPMiddleware(mux)
}

// StartHTTPServer creates and starts the HTTP server in the background.
func StartHTTPServer(addr string, cfg ServerConfig) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           NewHandler(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Op().Error("HTTP server error", "error", err)
		}
	}()

	return server
}
