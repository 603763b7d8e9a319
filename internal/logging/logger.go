package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// RequestLog represents a single invocation log entry.
type RequestLog struct {
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
	TraceID    string    `json:"trace_id,omitempty"`
	Function   string    `json:"function"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	StatusCode int       `json:"status_code"`
	DurationMs int64     `json:"duration_ms"`
	Compiled   bool      `json:"compiled"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	InputSize  int       `json:"input_size"`
	OutputSize int       `json:"output_size,omitempty"`
}

// Logger writes request logs to the console and, optionally, to a JSON
// lines file.
type Logger struct {
	mu      sync.Mutex
	enabled bool
	file    *os.File
	console io.Writer
}

var defaultLogger = &Logger{enabled: true, console: os.Stdout}

// Default returns the process-wide request logger.
func Default() *Logger {
	return defaultLogger
}

// NewLogger returns a request logger printing to console (nil disables it).
func NewLogger(console io.Writer) *Logger {
	return &Logger{enabled: true, console: console}
}

// SetOutput appends JSON entries to the file at path.
func (l *Logger) SetOutput(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = f
	return nil
}

// SetConsole redirects (or, with nil, disables) console output.
func (l *Logger) SetConsole(w io.Writer) {
	l.mu.Lock()
	l.console = w
	l.mu.Unlock()
}

// Log writes a request log entry.
func (l *Logger) Log(entry *RequestLog) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	if l.console != nil {
		status := "✓"
		if !entry.Success {
			status = "✗"
		}
		compiled := ""
		if entry.Compiled {
			compiled = " [compiled]"
		}
		fmt.Fprintf(l.console, "[request] %s %s %s %s %d %dms%s\n",
			status, entry.RequestID, entry.Method, entry.Function, entry.StatusCode, entry.DurationMs, compiled)
		if entry.Error != "" {
			fmt.Fprintf(l.console, "[request]   error: %s\n", entry.Error)
		}
	}

	if l.file != nil {
		data, _ := json.Marshal(entry)
		l.file.Write(append(data, '\n'))
	}
}

// Close closes the log file.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
