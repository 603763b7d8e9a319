package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps the prometheus collectors of the dev server.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	invocationsTotal *prometheus.CounterVec
	compilesTotal    *prometheus.CounterVec
	loadsTotal       *prometheus.CounterVec

	invocationDuration *prometheus.HistogramVec
	compileDuration    *prometheus.HistogramVec

	uptime          prometheus.GaugeFunc
	activeRequests  prometheus.Gauge
	cachedArtifacts prometheus.Gauge
}

// Default histogram buckets for invocation duration (in milliseconds)
var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

var promMetrics *PrometheusMetrics

// InitPrometheus initializes the Prometheus metrics subsystem.
func InitPrometheus(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		invocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocations_total",
				Help:      "Total number of function invocations",
			},
			[]string{"function", "status"},
		),

		compilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compiles_total",
				Help:      "Total number of module compilations",
			},
			[]string{"function", "status"},
		),

		loadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "artifact_loads_total",
				Help:      "Total number of compiled artifacts loaded into the engine",
			},
			[]string{"function", "status"},
		),

		invocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "invocation_duration_milliseconds",
				Help:      "Duration of function invocations in milliseconds",
				Buckets:   buckets,
			},
			[]string{"function", "compiled"},
		),

		compileDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "compile_duration_milliseconds",
				Help:      "Duration of module compilations in milliseconds",
				Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
			[]string{"function"},
		),

		activeRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_requests",
				Help:      "Number of requests currently waiting on a handler",
			},
		),

		cachedArtifacts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cached_artifacts",
				Help:      "Number of compiled artifacts held in the artifact cache",
			},
		),
	}

	pm.uptime = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Time since the dev server started",
		},
		func() float64 {
			return time.Since(StartTime()).Seconds()
		},
	)

	registry.MustRegister(
		pm.invocationsTotal,
		pm.compilesTotal,
		pm.loadsTotal,
		pm.invocationDuration,
		pm.compileDuration,
		pm.uptime,
		pm.activeRequests,
		pm.cachedArtifacts,
	)

	promMetrics = pm
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}

// RecordPrometheusInvocation records an invocation in Prometheus collectors.
func RecordPrometheusInvocation(funcName string, durationMs int64, compiled bool, success bool) {
	if promMetrics == nil {
		return
	}
	promMetrics.invocationsTotal.WithLabelValues(funcName, statusLabel(success)).Inc()

	compiledLabel := "false"
	if compiled {
		compiledLabel = "true"
	}
	promMetrics.invocationDuration.WithLabelValues(funcName, compiledLabel).Observe(float64(durationMs))
}

// RecordPrometheusCompile records one compilation and its duration.
func RecordPrometheusCompile(funcName string, durationMs int64, success bool) {
	if promMetrics == nil {
		return
	}
	promMetrics.compilesTotal.WithLabelValues(funcName, statusLabel(success)).Inc()
	if success {
		promMetrics.compileDuration.WithLabelValues(funcName).Observe(float64(durationMs))
	}
}

// RecordPrometheusLoad records an artifact load attempt.
func RecordPrometheusLoad(funcName string, success bool) {
	if promMetrics == nil {
		return
	}
	promMetrics.loadsTotal.WithLabelValues(funcName, statusLabel(success)).Inc()
}

// SetCachedArtifacts sets the artifact cache size gauge.
func SetCachedArtifacts(n int) {
	if promMetrics == nil {
		return
	}
	promMetrics.cachedArtifacts.Set(float64(n))
}

// IncActiveRequests increments the active requests gauge.
func IncActiveRequests() {
	if promMetrics == nil {
		return
	}
	promMetrics.activeRequests.Inc()
}

// DecActiveRequests decrements the active requests gauge.
func DecActiveRequests() {
	if promMetrics == nil {
		return
	}
	promMetrics.activeRequests.Dec()
}

// PrometheusHandler returns an HTTP handler for Prometheus metrics scraping.
func PrometheusHandler() http.Handler {
	if promMetrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("prometheus metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}

// PrometheusRegistry returns the prometheus registry (for custom collectors).
func PrometheusRegistry() *prometheus.Registry {
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}
