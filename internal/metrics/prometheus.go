package metrics

import (
	"strconv"
	"sync"

	"github.com/arloliu/cluster/types"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered lazily on first use.
type PrometheusCollector struct {
	*NopMetrics

	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	// Rebalancer
	rebalanceTotal    *prometheus.CounterVec
	rebalanceDuration prometheus.Histogram
	partitionToggles  *prometheus.CounterVec
	ownedPartitions   prometheus.Gauge
	clusterMembers    prometheus.Gauge
	clusterPartitions prometheus.Gauge

	// Views
	eventsDispatched *prometheus.CounterVec
	eventDeliveries  *prometheus.CounterVec
	listenerPanics   *prometheus.CounterVec

	// Backends
	leadershipChanges *prometheus.CounterVec
	heartbeats        *prometheus.CounterVec
	kvLatency         *prometheus.HistogramVec
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "cluster" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "cluster"
	}

	return &PrometheusCollector{NopMetrics: NewNop(), reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.rebalanceTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "rebalancer",
			Name:      "passes_total",
			Help:      "Total reconciliation passes by outcome.",
		}, []string{"outcome"})
		p.rebalanceDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "rebalancer",
			Name:      "pass_duration_seconds",
			Help:      "Duration of reconciliation passes in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~2s
		})
		p.partitionToggles = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "rebalancer",
			Name:      "partition_toggles_total",
			Help:      "Total partition contention toggles by action (disable,enable).",
		}, []string{"action"})
		p.ownedPartitions = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "rebalancer",
			Name:      "owned_partitions",
			Help:      "Partitions owned by the local member at the last pass.",
		})
		p.clusterMembers = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "rebalancer",
			Name:      "members",
			Help:      "Distinct members observed at the last pass.",
		})
		p.clusterPartitions = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "rebalancer",
			Name:      "partitions",
			Help:      "Partitions considered at the last pass.",
		})

		p.eventsDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "view",
			Name:      "events_total",
			Help:      "Total events dispatched by kind.",
		}, []string{"kind"})
		p.eventDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "view",
			Name:      "event_deliveries_total",
			Help:      "Total listener invocations by event kind.",
		}, []string{"kind"})
		p.listenerPanics = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "view",
			Name:      "listener_panics_total",
			Help:      "Total recovered listener panics by event kind.",
		}, []string{"kind"})

		p.leadershipChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "backend",
			Name:      "leadership_changes_total",
			Help:      "Total observed leadership changes by namespace.",
		}, []string{"namespace"})
		p.heartbeats = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "backend",
			Name:      "heartbeats_total",
			Help:      "Total membership heartbeats by result (true,false).",
		}, []string{"success"})
		p.kvLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "backend",
			Name:      "kv_operation_duration_seconds",
			Help:      "Latency of backend store operations in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"op"})

		p.reg.MustRegister(
			p.rebalanceTotal,
			p.rebalanceDuration,
			p.partitionToggles,
			p.ownedPartitions,
			p.clusterMembers,
			p.clusterPartitions,
			p.eventsDispatched,
			p.eventDeliveries,
			p.listenerPanics,
			p.leadershipChanges,
			p.heartbeats,
			p.kvLatency,
		)
	})
}

// RecordRebalance counts a reconciliation pass and observes its duration.
func (p *PrometheusCollector) RecordRebalance(outcome string, duration float64) {
	p.ensureRegistered()
	p.rebalanceTotal.WithLabelValues(outcome).Inc()
	p.rebalanceDuration.Observe(duration)
}

// RecordPartitionToggle counts a partition contention toggle.
func (p *PrometheusCollector) RecordPartitionToggle(disabled bool) {
	p.ensureRegistered()
	action := "enable"
	if disabled {
		action = "disable"
	}
	p.partitionToggles.WithLabelValues(action).Inc()
}

// RecordOwnedPartitions sets the owned partitions gauge.
func (p *PrometheusCollector) RecordOwnedPartitions(count int) {
	p.ensureRegistered()
	p.ownedPartitions.Set(float64(count))
}

// RecordClusterSize sets the member and partition gauges.
func (p *PrometheusCollector) RecordClusterSize(members, partitions int) {
	p.ensureRegistered()
	p.clusterMembers.Set(float64(members))
	p.clusterPartitions.Set(float64(partitions))
}

// RecordEventDispatched counts an event and its listener deliveries.
func (p *PrometheusCollector) RecordEventDispatched(kind types.EventKind, listeners int) {
	p.ensureRegistered()
	p.eventsDispatched.WithLabelValues(kind.String()).Inc()
	if listeners > 0 {
		p.eventDeliveries.WithLabelValues(kind.String()).Add(float64(listeners))
	}
}

// RecordListenerPanic counts a recovered listener panic.
func (p *PrometheusCollector) RecordListenerPanic(kind types.EventKind) {
	p.ensureRegistered()
	p.listenerPanics.WithLabelValues(kind.String()).Inc()
}

// RecordLeadershipChange counts an observed leadership change.
func (p *PrometheusCollector) RecordLeadershipChange(namespace, _ /* leader */ string) {
	p.ensureRegistered()
	p.leadershipChanges.WithLabelValues(namespace).Inc()
}

// RecordHeartbeat counts a heartbeat attempt.
func (p *PrometheusCollector) RecordHeartbeat(_ /* memberID */ string, success bool) {
	p.ensureRegistered()
	p.heartbeats.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// RecordKVOperationDuration observes a backend store operation latency.
func (p *PrometheusCollector) RecordKVOperationDuration(operation string, duration float64) {
	p.ensureRegistered()
	p.kvLatency.WithLabelValues(operation).Observe(duration)
}
