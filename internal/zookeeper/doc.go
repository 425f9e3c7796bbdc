// Package zookeeper implements a preemptive cluster service on ZooKeeper.
//
// Each namespace owns two persistent nodes under the configured root:
//
//	<root>/<namespace>/members/<member>          ephemeral, one per started view
//	<root>/<namespace>/candidates/<member>-<seq> ephemeral sequential, one per enabled view
//
// The candidate with the lowest sequence leads. Disabling a view deletes its
// candidate node; re-enabling creates a new one at the end of the queue, so a
// returning member never preempts the current leader. Names are path-escaped.
//
// Views keep child watches on both nodes and re-read them when a watch fires
// or the poll interval passes. A read that finds the local nodes missing, as
// after a session expiry, recreates them before delivering the difference.
package zookeeper
