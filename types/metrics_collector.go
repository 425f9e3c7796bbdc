package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods are called from internal goroutines and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	RebalanceMetrics
	ViewMetrics
	BackendMetrics
}

// RebalanceMetrics defines metrics for the rebalancing control loop.
type RebalanceMetrics interface {
	// RecordRebalance records one reconciliation pass.
	//
	// Parameters:
	//   - outcome: "applied", "skipped_no_partitions", "skipped_no_members", "skipped_unknown_membership"
	//   - duration: Time taken in seconds
	RecordRebalance(outcome string, duration float64)

	// RecordPartitionToggle records a change of a partition's disabled flag.
	//
	// Parameters:
	//   - disabled: true when the partition was ceded, false when contention was re-enabled
	RecordPartitionToggle(disabled bool)

	// RecordOwnedPartitions sets the number of partitions owned by the local member (gauge).
	RecordOwnedPartitions(count int)

	// RecordClusterSize sets the observed peer and partition counts (gauges).
	RecordClusterSize(members, partitions int)
}

// ViewMetrics defines metrics for view event dispatch.
type ViewMetrics interface {
	// RecordEventDispatched records one event delivered to its interested listeners.
	//
	// Parameters:
	//   - kind: Event category
	//   - listeners: Number of listeners the event was delivered to
	RecordEventDispatched(kind EventKind, listeners int)

	// RecordListenerPanic records a listener panic recovered during dispatch.
	RecordListenerPanic(kind EventKind)
}

// BackendMetrics defines metrics recorded by cluster backends.
type BackendMetrics interface {
	// RecordLeadershipChange records a leadership change observed for a namespace.
	//
	// Parameters:
	//   - namespace: Namespace whose leader changed
	//   - leader: New leader ID ("" when the namespace has no leader)
	RecordLeadershipChange(namespace, leader string)

	// RecordHeartbeat records a membership heartbeat published by the local member.
	RecordHeartbeat(memberID string, success bool)

	// RecordKVOperationDuration records backend store operation latency.
	//
	// Parameters:
	//   - operation: Operation type ("get", "put", "create", "update", "delete", "list")
	//   - duration: Time taken in seconds
	RecordKVOperationDuration(operation string, duration float64)
}
