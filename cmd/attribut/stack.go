package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jetoze/attribut/internal/config"
	"github.com/jetoze/attribut/pkg/middleware"
	"github.com/jetoze/attribut/pkg/property"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// stack is the registry chain shared by bench and serve:
// hub <- Prometheus <- OpenTelemetry.
type stack struct {
	hub      *property.Hub
	registry property.Registry
	metrics  *prometheus.Registry
	shutdown func(context.Context) error
}

func newStack(cfg *config.Config, logger *slog.Logger, traceOut io.Writer) (*stack, error) {
	hub := property.NewHub(property.WithHubLogger(logger))
	s := &stack{
		hub:      hub,
		registry: hub,
		metrics:  prometheus.NewRegistry(),
		shutdown: func(context.Context) error { return nil },
	}

	if cfg.Metrics.Enabled {
		reg, err := middleware.Prometheus(s.registry,
			middleware.WithRegistry(s.metrics),
			middleware.WithNamespace(cfg.Metrics.Namespace),
		)
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		s.registry = reg
	}

	if cfg.Tracing.Enabled {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(traceOut))
		if err != nil {
			return nil, fmt.Errorf("tracing: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		reg, err := middleware.OpenTelemetry(s.registry,
			middleware.WithTracerProvider(tp),
			middleware.WithTracerName(cfg.Tracing.TracerName),
		)
		if err != nil {
			return nil, fmt.Errorf("tracing: %w", err)
		}
		s.registry = reg
		s.shutdown = tp.Shutdown
	}

	return s, nil
}

// loadConfig reads the file named by --config, or the defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.LoadOrDefault(path)
}
