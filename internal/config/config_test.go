package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jetoze/attribut/pkg/property"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Serve.Addr != DefaultAddr {
		t.Errorf("Serve.Addr = %q, want %q", cfg.Serve.Addr, DefaultAddr)
	}
	if cfg.Metrics.Namespace != DefaultNamespace {
		t.Errorf("Metrics.Namespace = %q, want %q", cfg.Metrics.Namespace, DefaultNamespace)
	}
	if cfg.CopyPolicy() != property.Snapshot {
		t.Errorf("CopyPolicy() = %v, want snapshot", cfg.CopyPolicy())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	tmpDir := t.TempDir()

	// Test loading non-existent config
	_, err := LoadFile(filepath.Join(tmpDir, ConfigFileName))
	if err == nil {
		t.Error("Expected error for missing config")
	}

	configPath := filepath.Join(tmpDir, ConfigFileName)
	configYAML := `log:
  level: debug
  format: json
bench:
  writers: 2
  copyPolicy: reference
serve:
  tick: 250ms
tracing:
  enabled: true
`
	if err := os.WriteFile(configPath, []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v, want debug/json", cfg.Log)
	}
	if cfg.Bench.Writers != 2 {
		t.Errorf("Bench.Writers = %d, want 2", cfg.Bench.Writers)
	}
	if cfg.Bench.Iterations != New().Bench.Iterations {
		t.Errorf("Bench.Iterations = %d, want default %d", cfg.Bench.Iterations, New().Bench.Iterations)
	}
	if cfg.CopyPolicy() != property.ByReference {
		t.Errorf("CopyPolicy() = %v, want reference", cfg.CopyPolicy())
	}
	if cfg.Serve.Tick != 250*time.Millisecond {
		t.Errorf("Serve.Tick = %v, want 250ms", cfg.Serve.Tick)
	}
	if cfg.Serve.Addr != DefaultAddr {
		t.Errorf("Serve.Addr = %q, want default", cfg.Serve.Addr)
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.TracerName != "attribut" {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if cfg.Path() != configPath {
		t.Errorf("Path() = %q, want %q", cfg.Path(), configPath)
	}
}

func TestLoadFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(path, []byte("bench: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault(\"\"): %v", err)
	}
	if cfg.Bench.Writers != New().Bench.Writers {
		t.Errorf("expected defaults, got %+v", cfg.Bench)
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	cfg := New()
	cfg.Bench.Listeners = 9
	cfg.Serve.Tick = 3 * time.Second

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if loaded.Bench.Listeners != 9 || loaded.Serve.Tick != 3*time.Second {
		t.Errorf("round trip lost values: %+v %+v", loaded.Bench, loaded.Serve)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"writers", func(c *Config) { c.Bench.Writers = 0 }, "bench.writers"},
		{"iterations", func(c *Config) { c.Bench.Iterations = 0 }, "bench.iterations"},
		{"listeners", func(c *Config) { c.Bench.Listeners = -1 }, "bench.listeners"},
		{"list size", func(c *Config) { c.Bench.ListSize = -1 }, "bench.listSize"},
		{"copy policy", func(c *Config) { c.Bench.CopyPolicy = "alias" }, "bench.copyPolicy"},
		{"tick", func(c *Config) { c.Serve.Tick = 0 }, "serve.tick"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := New()
	cfg.Bench.Writers = 0
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"bench.writers", "log.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	LogConfig{Level: "warn", Format: "json"}.Logger(&buf).Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info message logged at warn level: %s", buf.String())
	}

	LogConfig{Level: "debug", Format: "json"}.Logger(&buf).Debug("shown", "k", "v")
	if !strings.Contains(buf.String(), `"msg":"shown"`) {
		t.Errorf("expected JSON debug output, got %s", buf.String())
	}
}
