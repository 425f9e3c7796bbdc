package memory

import (
	"context"

	"github.com/arloliu/cluster/internal/logger"
	"github.com/arloliu/cluster/internal/metrics"
	"github.com/arloliu/cluster/internal/service"
	"github.com/arloliu/cluster/types"
)

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	order      int
	attributes map[string]any
	logger     types.Logger
	metrics    types.MetricsCollector
}

// WithOrder sets the selection priority of the service.
func WithOrder(order int) Option {
	return func(o *serviceOptions) {
		o.order = order
	}
}

// WithAttributes sets the service attributes.
func WithAttributes(attrs map[string]any) Option {
	return func(o *serviceOptions) {
		o.attributes = attrs
	}
}

// WithLogger sets the service logger.
func WithLogger(l types.Logger) Option {
	return func(o *serviceOptions) {
		o.logger = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m types.MetricsCollector) Option {
	return func(o *serviceOptions) {
		o.metrics = m
	}
}

// Service is a preemptive cluster service backed by a Cluster.
type Service struct {
	*service.Base

	cluster *Cluster
	metrics types.MetricsCollector
}

var _ types.PreemptiveService = (*Service)(nil)

func newService(c *Cluster, id string, opts ...Option) *Service {
	o := serviceOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Service{
		cluster: c,
		metrics: metrics.OrNop(o.metrics),
	}
	s.Base = service.NewBase(service.Config{
		ID:         id,
		Order:      o.order,
		Attributes: o.attributes,
		Logger:     logger.OrNop(o.logger),
	}, func(namespace string) (types.View, error) {
		return newView(s, namespace), nil
	})

	return s
}

// Cluster returns the cluster the service belongs to.
func (s *Service) Cluster() *Cluster {
	return s.cluster
}

// Sync waits until every pending event of the cluster was delivered.
func (s *Service) Sync(ctx context.Context) error {
	return s.cluster.Sync(ctx)
}
