package types

import "context"

// RebalanceResult summarizes one reconciliation pass of the rebalancer.
type RebalanceResult struct {
	// Members is the number of distinct peers observed (0 when unknown).
	Members int

	// Partitions is the number of namespaces considered.
	Partitions int

	// Owned lists the partitions owned by the local member when the pass started.
	Owned []string

	// Enabled lists the partitions whose veto was lifted during the pass.
	Enabled []string

	// Disabled lists the partitions ceded or vetoed during the pass.
	Disabled []string

	// Skipped is non-empty when the pass made no changes on purpose,
	// e.g. "no_partitions", "no_members", "unknown_membership".
	Skipped string
}

// Changed reports whether the pass toggled at least one partition.
func (r RebalanceResult) Changed() bool {
	return len(r.Enabled) > 0 || len(r.Disabled) > 0
}

// Hooks defines callbacks for rebalancer lifecycle events.
//
// All hooks are optional. They are called synchronously on the rebalancing
// worker after each pass, so they delay the next pass while running.
//
// Best practices for hook implementation:
//   - Complete quickly (< 1 second recommended)
//   - Respect context cancellation
//   - Handle errors gracefully (return error for logging)
//
// Example:
//
//	hooks := &cluster.Hooks{
//	    OnRebalanced: func(ctx context.Context, res cluster.RebalanceResult) error {
//	        if res.Changed() {
//	            log.Printf("ceded %v, contending %v", res.Disabled, res.Enabled)
//	        }
//	        return nil
//	    },
//	}
type Hooks struct {
	// OnRebalanced is called after every reconciliation pass, including skipped ones.
	OnRebalanced func(ctx context.Context, result RebalanceResult) error

	// OnError is called when a partition could not be read or toggled during a pass.
	OnError func(ctx context.Context, err error) error
}
