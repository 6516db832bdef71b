package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/jetoze/attribut/pkg/property"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for attribut registries.
const defaultTracerName = "attribut"

// spanName is the name of the span recorded for every change.
const spanName = "property.change"

// OTelConfig configures the OpenTelemetry registry decorator.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "attribut").
	TracerName string

	// TracerProvider supplies the tracer.
	// If nil, the global provider is used.
	TracerProvider trace.TracerProvider

	// Filter determines which changes to trace.
	// Return true to trace the change, false to skip.
	// If nil, all changes are traced.
	Filter func(ev property.Event) bool

	// AttributeExtractor extracts custom attributes from an event.
	// Called for each traced change.
	AttributeExtractor func(ev property.Event) []attribute.KeyValue

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry registry decorator.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithEventFilter sets a filter function for changes.
func WithEventFilter(filter func(ev property.Event) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(ev property.Event) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

// defaultOTelConfig returns the default OpenTelemetry configuration.
func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName: defaultTracerName,
	}
}

// tracingRegistry decorates a property.Registry with one span per change.
type tracingRegistry struct {
	next   property.Registry
	config OTelConfig
}

// OpenTelemetry decorates next so that every dispatched change is recorded
// as a "property.change" span.
//
// The span carries:
//   - property.name: the property name
//   - property.old_type, property.new_type: the Go types of the values
//   - property.listeners: the listener count, when next or a registry it
//     wraps can count them
//
// A panicking listener is recorded as a span error and the panic is
// re-raised to the writer.
//
// Example:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	reg, _ := middleware.OpenTelemetry(hub, middleware.WithTracerProvider(tp))
//	title, _ := property.New("title", "", property.WithRegistry(reg))
func OpenTelemetry(next property.Registry, opts ...OTelOption) (property.Registry, error) {
	if next == nil {
		return nil, errors.New("middleware: OpenTelemetry: nil registry")
	}
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}

	tp := config.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	config.tracer = tp.Tracer(config.TracerName)

	return &tracingRegistry{next: next, config: config}, nil
}

// Unwrap returns the decorated registry.
func (r *tracingRegistry) Unwrap() property.Registry {
	return r.next
}

func (r *tracingRegistry) AddListener(name string, l property.Listener) {
	r.next.AddListener(name, l)
}

func (r *tracingRegistry) RemoveListener(name string, l property.Listener) {
	r.next.RemoveListener(name, l)
}

func (r *tracingRegistry) Fire(ev property.Event) {
	if r.config.Filter != nil && !r.config.Filter(ev) {
		r.next.Fire(ev)
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("property.name", ev.Name),
		attribute.String("property.old_type", fmt.Sprintf("%T", ev.Old)),
		attribute.String("property.new_type", fmt.Sprintf("%T", ev.New)),
	}
	if n, ok := countListeners(r.next, ev.Name); ok {
		attrs = append(attrs, attribute.Int("property.listeners", n))
	}
	if r.config.AttributeExtractor != nil {
		attrs = append(attrs, r.config.AttributeExtractor(ev)...)
	}

	// Dispatch is synchronous and has no caller context.
	_, span := r.config.tracer.Start(
		context.Background(),
		spanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("listener panic: %v", rec)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			panic(rec)
		}
	}()

	r.next.Fire(ev)
	span.SetStatus(codes.Ok, "")
}
