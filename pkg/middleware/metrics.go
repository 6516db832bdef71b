package middleware

import (
	"errors"
	"time"

	"github.com/jetoze/attribut/pkg/property"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsConfig configures the Prometheus registry decorator.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "attribut").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for dispatch duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus registry decorator.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// defaultMetricsConfig returns the default metrics configuration.
func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "attribut",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// metrics holds the Prometheus collectors of one decorator.
type metrics struct {
	changesTotal     *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	listeners        *prometheus.GaugeVec
}

func initMetrics(config MetricsConfig) (*metrics, error) {
	changes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   config.Namespace,
		Subsystem:   config.Subsystem,
		Name:        "changes_total",
		Help:        "Total number of property change notifications dispatched",
		ConstLabels: config.ConstLabels,
	}, []string{"property", "status"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   config.Namespace,
		Subsystem:   config.Subsystem,
		Name:        "dispatch_duration_seconds",
		Help:        "Time spent running the listeners of one change",
		ConstLabels: config.ConstLabels,
		Buckets:     config.Buckets,
	}, []string{"property"})

	listeners := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   config.Namespace,
		Subsystem:   config.Subsystem,
		Name:        "listeners",
		Help:        "Number of listeners registered per property",
		ConstLabels: config.ConstLabels,
	}, []string{"property"})

	m := &metrics{}
	var err error
	if m.changesTotal, err = register(config.Registry, changes); err != nil {
		return nil, err
	}
	if m.dispatchDuration, err = register(config.Registry, duration); err != nil {
		return nil, err
	}
	if m.listeners, err = register(config.Registry, listeners); err != nil {
		return nil, err
	}
	return m, nil
}

// register registers c, or returns the identical collector that is
// already registered, so several decorators can share one registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// listenerCounter is implemented by registries that can count listeners,
// such as *property.Hub.
type listenerCounter interface {
	Listeners(name string) []property.Listener
}

// countListeners counts the listeners for name in reg, looking through
// decorators that expose the registry they wrap.
func countListeners(reg property.Registry, name string) (int, bool) {
	for reg != nil {
		if c, ok := reg.(listenerCounter); ok {
			return len(c.Listeners(name)), true
		}
		u, ok := reg.(interface{ Unwrap() property.Registry })
		if !ok {
			return 0, false
		}
		reg = u.Unwrap()
	}
	return 0, false
}

// metricsRegistry decorates a property.Registry with Prometheus metrics.
type metricsRegistry struct {
	next property.Registry
	m    *metrics
}

// Prometheus decorates next with Prometheus metrics.
//
// Metrics collected:
//   - attribut_changes_total: Counter of dispatched changes by property and status
//   - attribut_dispatch_duration_seconds: Histogram of listener run time per change
//   - attribut_listeners: Gauge of registered listeners (when next can count them)
//
// Example:
//
//	hub := property.NewHub()
//	reg, err := middleware.Prometheus(hub, middleware.WithNamespace("myapp"))
//	if err != nil {
//	    return err
//	}
//	title, _ := property.New("title", "", property.WithRegistry(reg))
//
//	// Expose metrics endpoint
//	http.Handle("/metrics", promhttp.Handler())
func Prometheus(next property.Registry, opts ...MetricsOption) (property.Registry, error) {
	if next == nil {
		return nil, errors.New("middleware: Prometheus: nil registry")
	}
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	m, err := initMetrics(config)
	if err != nil {
		return nil, err
	}
	return &metricsRegistry{next: next, m: m}, nil
}

// Unwrap returns the decorated registry.
func (r *metricsRegistry) Unwrap() property.Registry {
	return r.next
}

func (r *metricsRegistry) AddListener(name string, l property.Listener) {
	r.next.AddListener(name, l)
	r.recordListeners(name)
}

func (r *metricsRegistry) RemoveListener(name string, l property.Listener) {
	r.next.RemoveListener(name, l)
	r.recordListeners(name)
}

func (r *metricsRegistry) Fire(ev property.Event) {
	start := time.Now()
	status := "panic"
	defer func() {
		r.m.dispatchDuration.WithLabelValues(ev.Name).Observe(time.Since(start).Seconds())
		r.m.changesTotal.WithLabelValues(ev.Name, status).Inc()
	}()

	r.next.Fire(ev)
	status = "ok"
}

func (r *metricsRegistry) recordListeners(name string) {
	if n, ok := countListeners(r.next, name); ok {
		r.m.listeners.WithLabelValues(name).Set(float64(n))
	}
}
