// Package cluster provides per-namespace cluster membership and leader
// election, and a rebalancer that spreads leadership of many namespaces
// evenly across the members.
//
// A Service hands out one View per namespace (a partition, a shard, a job
// name). A View reports the members that joined the namespace and which of
// them leads, and delivers LeadershipChanged, MemberAdded and MemberRemoved
// events to registered listeners. A listener registered on a populated view
// first receives the current state: the leader, then every member.
//
// # Backends
//
//   - memory.Cluster: in-process services for tests and simulations
//   - NewNATSService: NATS JetStream KV heartbeats and leases, with optional
//     stable member IDs claimed from a pool
//   - NewZooKeeperService: ephemeral member nodes and sequential candidate nodes
//
// All of them are preemptive: a PreemptiveView can be disabled, which takes the
// local member out of the election for that namespace without leaving it.
//
// # Quick Start
//
//	cfg := cluster.DefaultConfig()
//	cfg.MemberID = "worker-1"
//
//	svc, err := cluster.NewNATSService(&cfg, nc, cluster.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//
//	reb, err := cluster.NewRebalancingService(svc, cfg.RebalancePeriod)
//	if err != nil {
//	    return err
//	}
//	if err := reb.Start(ctx); err != nil {
//	    return err
//	}
//	defer reb.Stop(context.Background())
//
//	for _, p := range partitions {
//	    v, err := reb.PreemptiveView(ctx, p)
//	    if err != nil {
//	        return err
//	    }
//	    gate := cluster.NewLeadershipGate(v, consume(p))
//	    _ = gate.Start(ctx)
//	}
//
// # Rebalancing
//
// RebalancingService wraps a PreemptiveService. Every period it sorts the
// namespaces of the service, gives each member floor(k/n) of the first
// floor(k/n)*n and at most one of the rest, and moves the local member towards
// that share: leaderships beyond it are disabled so another member takes them
// over, and disabled namespaces are re-enabled while the member is short.
// Passes are skipped while any view is unhealthy or the members differ
// between namespaces. Results go to Hooks and the MetricsCollector.
//
// # Selecting a backend
//
// The selector package picks one Service out of several candidates, for
// example by Order or by concrete type.
package cluster
