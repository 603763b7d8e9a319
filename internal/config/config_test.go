package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadFromFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lambdadev.yaml")
	data := `
functions:
  src: lambdas
  output: build/lambdas
  extensions: [".ts", ".js"]
server:
  addr: ":9999"
staleness:
  strategy: digest
  store: redis
redis:
  addr: redis:6379
  db: 2
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Functions.Src != "lambdas" || cfg.Functions.Output != "build/lambdas" {
		t.Fatalf("functions = %+v", cfg.Functions)
	}
	if len(cfg.Functions.Extensions) != 2 || cfg.Functions.Extensions[0] != ".ts" {
		t.Fatalf("extensions = %v", cfg.Functions.Extensions)
	}
	if cfg.Server.Addr != ":9999" || cfg.Redis.DB != 2 || cfg.Staleness.Strategy != "digest" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	// untouched sections keep defaults
	if cfg.Functions.Prefix != "/.netlify/functions" || cfg.Logging.Level != "info" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lambdadev.json")
	if err := os.WriteFile(path, []byte(`{"functions": {"src": "fns"}, "metrics": {"enabled": false}}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Functions.Src != "fns" || cfg.Metrics.Enabled {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadFromFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("functions: [unclosed"), 0644)
	if _, err := LoadFromFile(path); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LAMBDADEV_FUNCTIONS_SRC", "env-src")
	t.Setenv("LAMBDADEV_EXTENSIONS", ".ts, .js,")
	t.Setenv("LAMBDADEV_ADDR", ":7000")
	t.Setenv("LAMBDADEV_REDIS_ADDR", "cache:6379")
	t.Setenv("LAMBDADEV_METRICS_ENABLED", "false")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.Functions.Src != "env-src" || cfg.Server.Addr != ":7000" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.Functions.Extensions) != 2 || cfg.Functions.Extensions[1] != ".js" {
		t.Fatalf("extensions = %v", cfg.Functions.Extensions)
	}
	if cfg.Redis.Addr != "cache:6379" || cfg.Staleness.Store != "redis" {
		t.Fatalf("redis = %+v, staleness = %+v", cfg.Redis, cfg.Staleness)
	}
	if cfg.Metrics.Enabled {
		t.Fatal("metrics should be disabled")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty src", func(c *Config) { c.Functions.Src = "" }, "functions.src"},
		{"no extensions", func(c *Config) { c.Functions.Extensions = nil }, "functions.extensions"},
		{"bad extension", func(c *Config) { c.Functions.Extensions = []string{"ts"} }, "invalid extension"},
		{"bad prefix", func(c *Config) { c.Functions.Prefix = "fn" }, "functions.prefix"},
		{"bad strategy", func(c *Config) { c.Staleness.Strategy = "hash" }, "staleness.strategy"},
		{"bad store", func(c *Config) { c.Staleness.Store = "disk" }, "staleness.store"},
		{"bad sample rate", func(c *Config) { c.Tracing.SampleRate = 2 }, "sample_rate"},
		{"half credentials", func(c *Config) { c.Publish.AccessKeyID = "AKIA" }, "publish.access_key_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestPrepare(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.Functions.Src = filepath.Join(root, "src")
	cfg.Functions.Output = filepath.Join(root, "out", "nested")

	err := Prepare(cfg)
	if err == nil || !strings.Contains(err.Error(), "functions.src") {
		t.Fatalf("expected error naming functions.src, got %v", err)
	}

	if err := os.Mkdir(cfg.Functions.Src, 0755); err != nil {
		t.Fatal(err)
	}
	if err := Prepare(cfg); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if info, err := os.Stat(cfg.Functions.Output); err != nil || !info.IsDir() {
		t.Fatalf("output dir not created: %v", err)
	}
	// second run is a no-op
	if err := Prepare(cfg); err != nil {
		t.Fatalf("Prepare again: %v", err)
	}
}

func TestPrepare_SrcIsFile(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file")
	os.WriteFile(file, nil, 0644)

	cfg := DefaultConfig()
	cfg.Functions.Src = file
	cfg.Functions.Output = filepath.Join(root, "out")
	if err := Prepare(cfg); err == nil {
		t.Fatal("expected error when functions.src is a file")
	}
}
