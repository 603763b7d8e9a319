package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oriys/lambdadev/internal/artifact"
	"github.com/oriys/lambdadev/internal/metrics"
)

func TestNewHandler_RoutesPrefixToGateway(t *testing.T) {
	var gotPath string
	gw := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusTeapot)
	})
	h := NewHandler(ServerConfig{Gateway: gw, Metrics: metrics.New()})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/.netlify/functions/hello", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotPath != "/hello" {
		t.Fatalf("gateway saw path %q, want /hello", gotPath)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/elsewhere", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status outside prefix = %d, want 404", rec.Code)
	}
}

func TestNewHandler_CustomPrefix(t *testing.T) {
	hit := false
	gw := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hit = true })
	h := NewHandler(ServerConfig{Prefix: "/fn/", Gateway: gw, Metrics: metrics.New()})

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fn/x", nil))
	if !hit {
		t.Fatal("gateway not reached under custom prefix")
	}
}

func TestNewHandler_Health(t *testing.T) {
	reg := artifact.NewRegistry()
	defer reg.Close()
	h := NewHandler(ServerConfig{Gateway: http.NotFoundHandler(), Artifacts: reg, Metrics: metrics.New()})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["cached_artifacts"] != float64(0) {
		t.Fatalf("body = %v", body)
	}
}

func TestNewHandler_Stats(t *testing.T) {
	m := metrics.New()
	m.RecordInvocation("hello", 3, true, true)
	h := NewHandler(ServerConfig{Gateway: http.NotFoundHandler(), Metrics: m})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	inv := body["invocations"].(map[string]any)
	if inv["total"] != float64(1) {
		t.Fatalf("invocations = %v", inv)
	}
}

func TestNewHandler_MetricsDisabled(t *testing.T) {
	h := NewHandler(ServerConfig{Gateway: http.NotFoundHandler(), Metrics: metrics.New()})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 when prometheus is disabled", rec.Code)
	}
}
