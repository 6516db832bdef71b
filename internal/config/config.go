package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jetoze/attribut/pkg/property"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the default name of the configuration file.
	ConfigFileName = "attribut.yaml"

	// DefaultAddr is the default inspector listen address.
	DefaultAddr = "127.0.0.1:9464"

	// DefaultNamespace is the default metrics namespace.
	DefaultNamespace = "attribut"
)

// Config represents the complete attribut.yaml configuration.
type Config struct {
	// Log contains logging configuration.
	Log LogConfig `yaml:"log"`

	// Bench contains `attribut bench` configuration.
	Bench BenchConfig `yaml:"bench"`

	// Serve contains `attribut serve` configuration.
	Serve ServeConfig `yaml:"serve"`

	// Metrics contains Prometheus configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains OpenTelemetry configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// LogConfig contains logging configuration.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// BenchConfig contains load generator settings.
type BenchConfig struct {
	// Writers is the number of concurrent writer goroutines.
	Writers int `yaml:"writers"`

	// Iterations is the number of writes per writer.
	Iterations int `yaml:"iterations"`

	// Listeners is the number of listeners attached to each property.
	Listeners int `yaml:"listeners"`

	// ListSize is the length of the slices written to the list property.
	ListSize int `yaml:"listSize"`

	// CopyPolicy is the list copy policy: snapshot, copy or reference.
	CopyPolicy string `yaml:"copyPolicy"`
}

// ServeConfig contains inspector server settings.
type ServeConfig struct {
	// Addr is the listen address.
	Addr string `yaml:"addr"`

	// Tick is how often the demo properties change.
	Tick time.Duration `yaml:"tick"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled wraps registries with the Prometheus decorator.
	Enabled bool `yaml:"enabled"`

	// Namespace is the metrics namespace.
	Namespace string `yaml:"namespace"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	// Enabled wraps registries with the OpenTelemetry decorator.
	Enabled bool `yaml:"enabled"`

	// TracerName is the tracer name.
	TracerName string `yaml:"tracerName"`
}

// New returns a configuration with default values.
func New() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Bench: BenchConfig{
			Writers:    8,
			Iterations: 10000,
			Listeners:  4,
			ListSize:   16,
			CopyPolicy: property.Snapshot.String(),
		},
		Serve: ServeConfig{
			Addr: DefaultAddr,
			Tick: time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: DefaultNamespace,
		},
		Tracing: TracingConfig{
			TracerName: "attribut",
		},
	}
}

// LoadFile reads the configuration at path. Fields missing from the file
// keep their default values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config: no %s found at %s", ConfigFileName, path)
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// LoadOrDefault reads path if it is non-empty and returns the defaults
// otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return New(), nil
	}
	return LoadFile(path)
}

// SaveTo writes the configuration to path.
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	c.configPath = path
	return nil
}

// Path returns the path the configuration was loaded from or saved to.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in blank values that an explicit but empty YAML
// field would otherwise leave unset.
func (c *Config) applyDefaults() {
	defaults := New()
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	if c.Bench.CopyPolicy == "" {
		c.Bench.CopyPolicy = defaults.Bench.CopyPolicy
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = defaults.Serve.Addr
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = defaults.Metrics.Namespace
	}
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = defaults.Tracing.TracerName
	}
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Bench.Writers < 1 {
		errs = append(errs, fmt.Errorf("bench.writers must be at least 1, got %d", c.Bench.Writers))
	}
	if c.Bench.Iterations < 1 {
		errs = append(errs, fmt.Errorf("bench.iterations must be at least 1, got %d", c.Bench.Iterations))
	}
	if c.Bench.Listeners < 0 {
		errs = append(errs, fmt.Errorf("bench.listeners must not be negative, got %d", c.Bench.Listeners))
	}
	if c.Bench.ListSize < 0 {
		errs = append(errs, fmt.Errorf("bench.listSize must not be negative, got %d", c.Bench.ListSize))
	}
	if _, err := property.ParseCopyPolicy(c.Bench.CopyPolicy); err != nil {
		errs = append(errs, fmt.Errorf("bench.copyPolicy: %w", err))
	}
	if c.Serve.Tick <= 0 {
		errs = append(errs, fmt.Errorf("serve.tick must be positive, got %s", c.Serve.Tick))
	}
	if errs == nil {
		return nil
	}
	return fmt.Errorf("config: invalid configuration: %w", errors.Join(errs...))
}

// CopyPolicy returns the parsed bench copy policy.
func (c *Config) CopyPolicy() property.CopyPolicy {
	p, _ := property.ParseCopyPolicy(c.Bench.CopyPolicy)
	return p
}

// Logger builds the logger described by c, writing to w.
func (c LogConfig) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level must be debug, info, warn or error, got %q", s)
	}
	return level, nil
}
