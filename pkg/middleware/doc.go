// Package middleware provides observability decorators for property registries.
//
// Each decorator wraps a property.Registry and forwards every call to it,
// recording what it sees on the way. Decorators compose:
//
//	hub := property.NewHub()
//	reg, _ := middleware.Prometheus(hub)
//	reg, _ = middleware.OpenTelemetry(reg)
//	count, _ := property.New("count", 0, property.WithRegistry(reg))
//
// # Prometheus Metrics
//
// The Prometheus decorator collects:
//   - attribut_changes_total: Changes dispatched, by property and status
//   - attribut_dispatch_duration_seconds: Listener run time per change
//   - attribut_listeners: Listeners registered per property
//
// Expose them with promhttp:
//
//	http.Handle("/metrics", promhttp.Handler())
//
// # OpenTelemetry Tracing
//
// The OpenTelemetry decorator records one span per dispatched change:
//
//	middleware.OpenTelemetry(hub,
//	    middleware.WithTracerName("my-app"),
//	    middleware.WithEventFilter(func(ev property.Event) bool {
//	        return ev.Name != "clock"
//	    }),
//	)
package middleware
