package cluster

// Option configures a service or rebalancer with optional dependencies.
type Option func(*options)

// options holds optional configuration shared by the constructors of this package.
type options struct {
	hooks      *Hooks
	metrics    MetricsCollector
	logger     Logger
	order      *int
	attributes map[string]any
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// WithHooks sets rebalancer hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for NewRebalancingService
//
// Example:
//
//	hooks := &cluster.Hooks{
//	    OnRebalanced: func(ctx context.Context, res cluster.RebalanceResult) error {
//	        log.Printf("owned=%v disabled=%v", res.Owned, res.Disabled)
//	        return nil
//	    },
//	}
//	svc, err := cluster.NewRebalancingService(delegate, time.Second, cluster.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *options) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for any constructor
//
// Example:
//
//	metrics := cluster.NewPrometheusMetrics(prometheus.DefaultRegisterer, "myapp")
//	svc, err := cluster.NewNATSService(&cfg, nc, cluster.WithMetrics(metrics))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for any constructor
//
// Example:
//
//	logger := zap.NewExample().Sugar()
//	svc, err := cluster.NewNATSService(&cfg, nc, cluster.WithLogger(logger))
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithOrder overrides Config.Order, the priority used by selector.ByOrder.
func WithOrder(order int) Option {
	return func(o *options) {
		o.order = &order
	}
}

// WithAttributes overrides Config.Attributes, the metadata matched by selector.ByAttribute.
func WithAttributes(attrs map[string]any) Option {
	return func(o *options) {
		o.attributes = attrs
	}
}
