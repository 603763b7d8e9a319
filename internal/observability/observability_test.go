package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInit_DisabledIsNoop(t *testing.T) {
	if err := Init(context.Background(), Config{Enabled: false}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if Enabled() {
		t.Fatal("tracing should be disabled")
	}
	ctx, span := StartSpan(context.Background(), "compile")
	SetSpanError(span, errors.New("boom"))
	span.End()
	if GetTraceID(ctx) != "" {
		t.Fatal("noop spans should not carry a trace id")
	}
}

func TestInit_EnabledDoesNotDialCollector(t *testing.T) {
	for _, endpoint := range []string{"127.0.0.1:1", "http://127.0.0.1:1/v1/traces"} {
		if err := Init(context.Background(), Config{Enabled: true, Endpoint: endpoint, SampleRate: 1}); err != nil {
			t.Fatalf("Init(%q) failed: %v", endpoint, err)
		}
		if !Enabled() {
			t.Fatalf("Init(%q): tracing should be enabled", endpoint)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		Shutdown(ctx)
		cancel()
		if Enabled() {
			t.Fatal("Shutdown should restore the no-op tracer")
		}
	}
}

func TestHTTPMiddleware_RecordsSpan(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	if err := install(context.Background(), exp, Config{Enabled: true, SampleRate: 1, Version: "test"}); err != nil {
		t.Fatalf("install failed: %v", err)
	}
	t.Cleanup(func() { Shutdown(context.Background()) })

	var traceID string
	h := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = GetTraceID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/.netlify/functions/hello", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status not propagated: %d", rec.Code)
	}
	if traceID == "" {
		t.Fatal("handler should see an active trace")
	}

	if err := global.tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush failed: %v", err)
	}
	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 exported span, got %d", len(spans))
	}
	if got := spans[0].SpanContext.TraceID().String(); got != traceID {
		t.Fatalf("exported trace id %s, handler saw %s", got, traceID)
	}
}
