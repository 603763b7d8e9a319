// Package gateway serves function invocations, compiling sources on demand.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/oriys/lambdadev/internal/artifact"
	"github.com/oriys/lambdadev/internal/bridge"
	"github.com/oriys/lambdadev/internal/domain"
	"github.com/oriys/lambdadev/internal/logging"
	"github.com/oriys/lambdadev/internal/metrics"
	"github.com/oriys/lambdadev/internal/module"
	"github.com/oriys/lambdadev/internal/observability"
	"github.com/oriys/lambdadev/internal/staleness"
)

// Compiler produces the compiled artifact for a source file.
type Compiler interface {
	Compile(ctx context.Context, sourcePath, outputPath string) error
}

// Config locates function sources and compiled outputs.
type Config struct {
	SourceDir  string
	OutputDir  string
	Extensions []string
}

// Gateway resolves the function named by the request path, recompiles it
// when stale, and runs its handler. Mount it behind http.StripPrefix so the
// request path is the function name.
type Gateway struct {
	cfg       Config
	compiler  Compiler
	oracle    staleness.Oracle
	artifacts *artifact.Registry
	requests  *logging.Logger
	metrics   *metrics.Metrics
}

// New creates a Gateway.
func New(cfg Config, compiler Compiler, oracle staleness.Oracle, artifacts *artifact.Registry) *Gateway {
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = domain.DefaultExtensions
	}
	return &Gateway{
		cfg:       cfg,
		compiler:  compiler,
		oracle:    oracle,
		artifacts: artifacts,
		requests:  logging.Default(),
		metrics:   metrics.Global(),
	}
}

// SetRequestLogger replaces the per-invocation logger.
func (g *Gateway) SetRequestLogger(l *logging.Logger) {
	g.requests = l
}

// SetMetrics replaces the metrics sink.
func (g *Gateway) SetMetrics(m *metrics.Metrics) {
	g.metrics = m
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.New().String()
	name := module.NameFromPath(r.URL.Path)

	metrics.IncActiveRequests()
	defer metrics.DecActiveRequests()

	ctx, span := observability.StartSpan(r.Context(), "invoke",
		observability.AttrFunctionName.String(name),
		observability.AttrRequestID.String(requestID),
	)
	defer span.End()

	cw := &countingWriter{ResponseWriter: w}
	resp, compiled, err := g.handle(ctx, name, r.WithContext(ctx))
	if err == nil {
		if werr := bridge.WriteResponse(cw, resp); werr != nil {
			var ie *domain.InvocationError
			if errors.As(werr, &ie) {
				err = werr
			} else {
				logging.Op().Warn("write response failed", "function", name, "request_id", requestID, "error", werr)
			}
		}
	}

	status := http.StatusInternalServerError
	if err != nil {
		bridge.WriteFailure(cw, err)
		logging.OpWithTrace(observability.GetTraceID(ctx), observability.GetSpanID(ctx)).Error(
			"function invocation failed", "function", name, "request_id", requestID, "error", err)
		observability.SetSpanError(span, err)
	} else {
		status = *resp.StatusCode
		observability.SetSpanOK(span)
	}
	span.SetAttributes(
		observability.AttrCompiled.Bool(compiled),
		observability.AttrStatusCode.Int(status),
	)

	duration := time.Since(start).Milliseconds()
	g.metrics.RecordInvocation(name, duration, compiled, err == nil)

	entry := &logging.RequestLog{
		Timestamp:  start,
		RequestID:  requestID,
		TraceID:    observability.GetTraceID(ctx),
		Function:   name,
		Method:     r.Method,
		Path:       r.URL.Path,
		StatusCode: status,
		DurationMs: duration,
		Compiled:   compiled,
		Success:    err == nil,
		InputSize:  int(max(r.ContentLength, 0)),
		OutputSize: cw.n,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	g.requests.Log(entry)
}

// handle runs resolve, staleness check, compile, load and invoke for one
// request. Nothing is written to the client here.
func (g *Gateway) handle(ctx context.Context, name string, r *http.Request) (*domain.InvokeResponse, bool, error) {
	mod, err := module.Lookup(g.cfg.SourceDir, g.cfg.OutputDir, name, g.cfg.Extensions)
	if err != nil {
		return nil, false, err
	}

	compiled, err := g.ensureCompiled(ctx, mod)
	if err != nil {
		return nil, compiled, err
	}
	if compiled {
		g.artifacts.Invalidate(mod.OutputPath)
	}

	req, err := bridge.NewRequest(r)
	if err != nil {
		return nil, compiled, err
	}

	for {
		a, err := g.artifacts.Get(mod.OutputPath)
		if err != nil {
			return nil, compiled, err
		}
		resp, err := a.Invoke(ctx, req)
		if errors.Is(err, artifact.ErrClosed) {
			// Replaced by a concurrent recompile; pick up the new one.
			continue
		}
		return resp, compiled, err
	}
}

// ensureCompiled compiles mod when its output is missing or stale and
// reports whether it did.
func (g *Gateway) ensureCompiled(ctx context.Context, mod *domain.FunctionModule) (bool, error) {
	stale := false
	if _, err := os.Stat(mod.OutputPath); errors.Is(err, fs.ErrNotExist) {
		stale = true
	} else if err != nil {
		return false, fmt.Errorf("stat output: %w", err)
	} else {
		stale, err = g.oracle.Stale(ctx, mod.SourcePath, mod.OutputPath)
		if err != nil {
			return false, fmt.Errorf("check staleness: %w", err)
		}
	}
	if !stale {
		return false, nil
	}

	if err := g.compiler.Compile(ctx, mod.SourcePath, mod.OutputPath); err != nil {
		return false, err
	}
	if err := g.oracle.Record(ctx, mod.SourcePath, mod.OutputPath); err != nil {
		logging.Op().Warn("record compile state failed", "source", mod.SourcePath, "error", err)
	}
	return true, nil
}

type countingWriter struct {
	http.ResponseWriter
	n int
}

func (w *countingWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.n += n
	return n, err
}
