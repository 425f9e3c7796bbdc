package metrics

import (
	"time"

	"github.com/arloliu/cluster/types"
)

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Used as the default when no collector is configured.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A new no-op metrics collector instance
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// OrNop returns m, or a no-op collector when m is nil.
func OrNop(m types.MetricsCollector) types.MetricsCollector {
	if m == nil {
		return NewNop()
	}

	return m
}

// RebalanceMetrics implementation

// RecordRebalance discards the rebalance pass metric.
func (n *NopMetrics) RecordRebalance(_ /* outcome */ string, _ /* duration */ float64) {
	// No-op
}

// RecordPartitionToggle discards the partition toggle metric.
func (n *NopMetrics) RecordPartitionToggle(_ /* disabled */ bool) {
	// No-op
}

// RecordOwnedPartitions discards the owned partitions metric.
func (n *NopMetrics) RecordOwnedPartitions(_ /* count */ int) {
	// No-op
}

// RecordClusterSize discards the cluster size metric.
func (n *NopMetrics) RecordClusterSize(_ /* members */, _ /* partitions */ int) {
	// No-op
}

// ViewMetrics implementation

// RecordEventDispatched discards the event dispatch metric.
func (n *NopMetrics) RecordEventDispatched(_ /* kind */ types.EventKind, _ /* listeners */ int) {
	// No-op
}

// RecordListenerPanic discards the listener panic metric.
func (n *NopMetrics) RecordListenerPanic(_ /* kind */ types.EventKind) {
	// No-op
}

// BackendMetrics implementation

// RecordLeadershipChange discards the leadership change metric.
func (n *NopMetrics) RecordLeadershipChange(_ /* namespace */, _ /* leader */ string) {
	// No-op
}

// RecordHeartbeat discards the heartbeat metric.
func (n *NopMetrics) RecordHeartbeat(_ /* memberID */ string, _ /* success */ bool) {
	// No-op
}

// RecordKVOperationDuration discards the KV operation duration metric.
func (n *NopMetrics) RecordKVOperationDuration(_ /* operation */ string, _ /* duration */ float64) {
	// No-op
}

// Timed runs op and reports its duration to m under the given operation name.
// A nil m only runs op.
func Timed(m types.BackendMetrics, operation string, op func() error) error {
	start := time.Now()
	err := op()
	if m != nil {
		m.RecordKVOperationDuration(operation, time.Since(start).Seconds())
	}

	return err
}
