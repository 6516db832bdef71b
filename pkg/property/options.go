package property

import "log/slog"

// Option configures a property at construction.
type Option func(*options)

type options struct {
	registry    Registry
	registrySet bool
	logger      *slog.Logger
	copyPolicy  CopyPolicy
}

// WithRegistry makes the property dispatch through r instead of a private
// Hub. Several properties may share one registry; their listeners are kept
// apart by property name.
func WithRegistry(r Registry) Option {
	return func(o *options) {
		o.registry = r
		o.registrySet = true
	}
}

// WithLogger sets the logger of the private Hub created when no registry
// is supplied. It has no effect together with WithRegistry.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithCopyPolicy sets the initial copy policy of a List.
// Scalar properties ignore it.
func WithCopyPolicy(policy CopyPolicy) Option {
	return func(o *options) {
		o.copyPolicy = policy
	}
}

func buildOptions(op string, opts []Option) (options, error) {
	o := options{copyPolicy: Snapshot}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	if o.registrySet && isAbsent(o.registry) {
		return o, argError(op, "registry", "must not be nil")
	}
	if !o.copyPolicy.valid() {
		return o, argError(op, "copy policy", "unknown policy "+o.copyPolicy.String())
	}
	if o.registry == nil {
		var hubOpts []HubOption
		if o.logger != nil {
			hubOpts = append(hubOpts, WithHubLogger(o.logger))
		}
		o.registry = NewHub(hubOpts...)
	}
	return o, nil
}
