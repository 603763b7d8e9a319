package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogger_ConsoleLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	l.Log(&RequestLog{
		RequestID:  "req-1",
		Function:   "hello",
		Method:     "GET",
		StatusCode: 500,
		DurationMs: 12,
		Compiled:   true,
		Error:      "boom",
	})

	out := buf.String()
	for _, want := range []string{"✗", "req-1", "GET hello 500 12ms [compiled]", "error: boom"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requests.jsonl")
	l := NewLogger(nil)
	if err := l.SetOutput(path); err != nil {
		t.Fatalf("SetOutput failed: %v", err)
	}
	l.Log(&RequestLog{RequestID: "a", Function: "f", Success: true, StatusCode: 200})
	l.Log(&RequestLog{RequestID: "b", Function: "f", Success: true, StatusCode: 201})
	l.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var entry RequestLog
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			t.Fatalf("invalid JSON line: %v", err)
		}
		if entry.Timestamp.IsZero() {
			t.Fatal("timestamp should be filled in")
		}
		ids = append(ids, entry.RequestID)
	}
	if strings.Join(ids, ",") != "a,b" {
		t.Fatalf("unexpected entries: %v", ids)
	}
}

func TestInitStructured_JSON(t *testing.T) {
	var buf bytes.Buffer
	InitStructuredTo(&buf, "json", "warn")
	t.Cleanup(func() { InitStructured("text", "info") })

	Op().Info("hidden")
	Op().Warn("shown", "function", "hello")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatal("info message should be filtered at warn level")
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &rec); err != nil {
		t.Fatalf("expected a JSON record, got %q: %v", out, err)
	}
	if rec["function"] != "hello" {
		t.Fatalf("expected function attribute, got %v", rec)
	}
}

func TestSetLevelFromString(t *testing.T) {
	t.Cleanup(func() { SetLevel(slog.LevelInfo) })

	SetLevelFromString("DEBUG")
	if logLevel.Level() != slog.LevelDebug {
		t.Fatalf("expected debug, got %v", logLevel.Level())
	}
	SetLevelFromString("bogus")
	if logLevel.Level() != slog.LevelDebug {
		t.Fatal("unknown level must not change the current level")
	}
}
