package cluster

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/cluster/internal/metrics"
)

// NewPrometheusMetrics returns a MetricsCollector that registers its metrics
// with reg on first use.
//
// Parameters:
//   - reg: Registerer; nil uses prometheus.DefaultRegisterer
//   - namespace: Metric name prefix; empty uses "cluster"
//
// Returns:
//   - MetricsCollector: Collector for WithMetrics
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	m := cluster.NewPrometheusMetrics(reg, "orders")
//	svc, err := cluster.NewNATSService(&cfg, nc, cluster.WithMetrics(m))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) MetricsCollector {
	return metrics.NewPrometheus(reg, namespace)
}
