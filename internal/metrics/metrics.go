package metrics

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects in-process counters for the dev server. Prometheus
// collectors are updated alongside when InitPrometheus was called.
type Metrics struct {
	TotalInvocations   atomic.Int64
	SuccessInvocations atomic.Int64
	FailedInvocations  atomic.Int64
	Compiles           atomic.Int64
	CompileFailures    atomic.Int64

	// Latency metrics (in milliseconds)
	TotalLatencyMs atomic.Int64
	MinLatencyMs   atomic.Int64
	MaxLatencyMs   atomic.Int64

	funcMetrics sync.Map // function name -> *FunctionMetrics

	startTime time.Time
}

// FunctionMetrics tracks metrics for a single function.
type FunctionMetrics struct {
	Invocations atomic.Int64
	Successes   atomic.Int64
	Failures    atomic.Int64
	Compiles    atomic.Int64
	TotalMs     atomic.Int64
	MinMs       atomic.Int64
	MaxMs       atomic.Int64
}

var global = New()

// New returns an empty Metrics. Most callers use Global.
func New() *Metrics {
	m := &Metrics{startTime: time.Now()}
	m.MinLatencyMs.Store(maxInt64)
	return m
}

const maxInt64 = int64(^uint64(0) >> 1)

// Global returns the process-wide metrics instance.
func Global() *Metrics {
	return global
}

// StartTime returns the time when the metrics system was initialized.
func StartTime() time.Time {
	return global.startTime
}

// RecordInvocation records an invocation outcome.
func (m *Metrics) RecordInvocation(funcName string, durationMs int64, compiled bool, success bool) {
	m.TotalInvocations.Add(1)
	if success {
		m.SuccessInvocations.Add(1)
	} else {
		m.FailedInvocations.Add(1)
	}
	m.TotalLatencyMs.Add(durationMs)
	updateMin(&m.MinLatencyMs, durationMs)
	updateMax(&m.MaxLatencyMs, durationMs)

	fm := m.getFunctionMetrics(funcName)
	fm.Invocations.Add(1)
	if success {
		fm.Successes.Add(1)
	} else {
		fm.Failures.Add(1)
	}
	fm.TotalMs.Add(durationMs)
	updateMin(&fm.MinMs, durationMs)
	updateMax(&fm.MaxMs, durationMs)

	RecordPrometheusInvocation(funcName, durationMs, compiled, success)
}

// RecordCompile records one compilation of funcName.
func (m *Metrics) RecordCompile(funcName string, durationMs int64, success bool) {
	m.Compiles.Add(1)
	if !success {
		m.CompileFailures.Add(1)
	}
	m.getFunctionMetrics(funcName).Compiles.Add(1)

	RecordPrometheusCompile(funcName, durationMs, success)
}

func (m *Metrics) getFunctionMetrics(funcName string) *FunctionMetrics {
	if v, ok := m.funcMetrics.Load(funcName); ok {
		return v.(*FunctionMetrics)
	}
	fm := &FunctionMetrics{}
	fm.MinMs.Store(maxInt64)
	actual, _ := m.funcMetrics.LoadOrStore(funcName, fm)
	return actual.(*FunctionMetrics)
}

// Snapshot returns the current counters as a JSON-friendly map.
func (m *Metrics) Snapshot() map[string]interface{} {
	total := m.TotalInvocations.Load()
	var avg float64
	if total > 0 {
		avg = float64(m.TotalLatencyMs.Load()) / float64(total)
	}
	minMs := m.MinLatencyMs.Load()
	if minMs == maxInt64 {
		minMs = 0
	}

	return map[string]interface{}{
		"uptime_seconds": int64(time.Since(m.startTime).Seconds()),
		"invocations": map[string]interface{}{
			"total":   total,
			"success": m.SuccessInvocations.Load(),
			"failed":  m.FailedInvocations.Load(),
		},
		"compiles": map[string]interface{}{
			"total":  m.Compiles.Load(),
			"failed": m.CompileFailures.Load(),
		},
		"latency_ms": map[string]interface{}{
			"avg": avg,
			"min": minMs,
			"max": m.MaxLatencyMs.Load(),
		},
		"functions": m.FunctionStats(),
	}
}

// FunctionStats returns per-function counters keyed by function name.
func (m *Metrics) FunctionStats() map[string]interface{} {
	var names []string
	m.funcMetrics.Range(func(key, _ any) bool {
		names = append(names, key.(string))
		return true
	})
	sort.Strings(names)

	stats := make(map[string]interface{}, len(names))
	for _, name := range names {
		fm := m.getFunctionMetrics(name)
		invocations := fm.Invocations.Load()
		var avg float64
		if invocations > 0 {
			avg = float64(fm.TotalMs.Load()) / float64(invocations)
		}
		minMs := fm.MinMs.Load()
		if minMs == maxInt64 {
			minMs = 0
		}
		stats[name] = map[string]interface{}{
			"invocations": invocations,
			"successes":   fm.Successes.Load(),
			"failures":    fm.Failures.Load(),
			"compiles":    fm.Compiles.Load(),
			"avg_ms":      avg,
			"min_ms":      minMs,
			"max_ms":      fm.MaxMs.Load(),
		}
	}
	return stats
}

// JSONHandler serves Snapshot as JSON.
func (m *Metrics) JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.Snapshot())
	})
}

func updateMin(target *atomic.Int64, value int64) {
	for {
		current := target.Load()
		if value >= current {
			return
		}
		if target.CompareAndSwap(current, value) {
			return
		}
	}
}

func updateMax(target *atomic.Int64, value int64) {
	for {
		current := target.Load()
		if value <= current {
			return
		}
		if target.CompareAndSwap(current, value) {
			return
		}
	}
}
