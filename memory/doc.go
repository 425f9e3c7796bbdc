// Package memory provides an in-process cluster backend.
//
// A Cluster plays the role of the coordination store: every Service created from
// the same Cluster sees the same members and leaders. It is intended for
// development, tests and simulations of the rebalancer; it offers no durability
// and no cross-process visibility.
//
// Leadership rules:
//   - A started, enabled view contends for leadership of its namespace.
//   - When the namespace has no leader, the enabled member that joined first wins.
//   - Disabling the leader relinquishes leadership immediately; a disabled view
//     stays a member.
//
// Events are delivered asynchronously by a single dispatcher goroutine in the
// order the cluster state changed, so listeners may call back into views and
// services. Use Cluster.Sync to wait until every pending event was delivered.
//
// Example:
//
//	c := memory.NewCluster()
//	defer c.Close()
//
//	a, _ := c.NewService("a")
//	b, _ := c.NewService("b")
//	_ = a.Start(ctx)
//	_ = b.Start(ctx)
//
//	va, _ := a.PreemptiveView(ctx, "orders")
//	_ = c.Sync(ctx)
//	va.LocalMember().IsLeader() // true: a joined first
package memory
