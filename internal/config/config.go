package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oriys/lambdadev/internal/domain"
)

// FunctionsConfig locates function sources and compiled output.
type FunctionsConfig struct {
	Src        string   `yaml:"src"`
	Output     string   `yaml:"output"`
	Extensions []string `yaml:"extensions"`
	Prefix     string   `yaml:"prefix"`
}

// ServerConfig holds dev server settings
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
	File   string `yaml:"file"`   // optional JSON lines request log
}

// StalenessConfig selects how out-of-date outputs are detected.
type StalenessConfig struct {
	Strategy string `yaml:"strategy"` // mtime or digest
	Store    string `yaml:"store"`    // memory or redis, digest only
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"` // host:port or http(s) URL of an OTLP/HTTP collector
	SampleRate float64 `yaml:"sample_rate"`
}

// PublishConfig holds artifact upload settings
type PublishConfig struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"` // S3-compatible server, optional
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// Config is the central configuration struct embedding all component configs
type Config struct {
	Functions FunctionsConfig `yaml:"functions"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Staleness StalenessConfig `yaml:"staleness"`
	Redis     RedisConfig     `yaml:"redis"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Publish   PublishConfig   `yaml:"publish"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Functions: FunctionsConfig{
			Src:        "src/functions",
			Output:     "functions",
			Extensions: append([]string(nil), domain.DefaultExtensions...),
			Prefix:     "/.netlify/functions",
		},
		Server: ServerConfig{
			Addr: ":8000",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Staleness: StalenessConfig{
			Strategy: "mtime",
			Store:    "memory",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "lambdadev",
		},
		Tracing: TracingConfig{
			Endpoint:   "localhost:4318",
			SampleRate: 1.0,
		},
	}
}

// LoadFromFile loads configuration from a YAML (or JSON) file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromEnv applies LAMBDADEV_* environment overrides.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("LAMBDADEV_FUNCTIONS_SRC"); v != "" {
		cfg.Functions.Src = v
	}
	if v := os.Getenv("LAMBDADEV_FUNCTIONS_OUTPUT"); v != "" {
		cfg.Functions.Output = v
	}
	if v := os.Getenv("LAMBDADEV_EXTENSIONS"); v != "" {
		cfg.Functions.Extensions = splitList(v)
	}
	if v := os.Getenv("LAMBDADEV_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("LAMBDADEV_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LAMBDADEV_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("LAMBDADEV_STALENESS"); v != "" {
		cfg.Staleness.Strategy = v
	}
	if v := os.Getenv("LAMBDADEV_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Staleness.Store = "redis"
	}
	if v := os.Getenv("LAMBDADEV_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LAMBDADEV_TRACING_ENDPOINT"); v != "" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Endpoint = v
	}
	if v := os.Getenv("LAMBDADEV_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if v := os.Getenv("AWS_REGION"); v != "" && cfg.Publish.Region == "" {
		cfg.Publish.Region = v
	}
	if v := os.Getenv("LAMBDADEV_PUBLISH_ENDPOINT"); v != "" {
		cfg.Publish.Endpoint = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks option values without touching the filesystem.
func (c *Config) Validate() error {
	var errs []error
	if c.Functions.Src == "" {
		errs = append(errs, errors.New("functions.src is required"))
	}
	if c.Functions.Output == "" {
		errs = append(errs, errors.New("functions.output is required"))
	}
	if len(c.Functions.Extensions) == 0 {
		errs = append(errs, errors.New("functions.extensions must not be empty"))
	}
	for _, ext := range c.Functions.Extensions {
		if !strings.HasPrefix(ext, ".") || strings.ContainsAny(ext, `/\`) {
			errs = append(errs, fmt.Errorf("functions.extensions: invalid extension %q", ext))
		}
	}
	if !strings.HasPrefix(c.Functions.Prefix, "/") {
		errs = append(errs, fmt.Errorf("functions.prefix must start with /: %q", c.Functions.Prefix))
	}
	switch c.Staleness.Strategy {
	case "", "mtime", "digest":
	default:
		errs = append(errs, fmt.Errorf("staleness.strategy: unknown strategy %q", c.Staleness.Strategy))
	}
	switch c.Staleness.Store {
	case "", "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("staleness.store: unknown store %q", c.Staleness.Store))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q", c.Logging.Format))
	}
	if (c.Publish.AccessKeyID == "") != (c.Publish.SecretAccessKey == "") {
		errs = append(errs, errors.New("publish.access_key_id and publish.secret_access_key must be set together"))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_rate must be within [0, 1]: %v", c.Tracing.SampleRate))
	}
	return errors.Join(errs...)
}

// Prepare checks that the functions source directory exists and creates the
// output directory when it is missing. It runs once before serving or
// building.
func Prepare(cfg *Config) error {
	info, err := os.Stat(cfg.Functions.Src)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("functions.src must be set to an existing directory: %q", cfg.Functions.Src)
	}
	if err := os.MkdirAll(cfg.Functions.Output, 0755); err != nil {
		return fmt.Errorf("create functions.output %q: %w", cfg.Functions.Output, err)
	}
	return nil
}
