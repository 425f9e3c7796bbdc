// Package natskv implements a preemptive cluster service on NATS JetStream KV.
//
// # Buckets
//
// Three buckets are shared by every member:
//
//   - membership (TTL = heartbeat TTL): one key per started view,
//     "<namespace>.<member>", refreshed every heartbeat interval
//   - election (TTL = lease TTL): one lease key per namespace, "<namespace>",
//     holding "<member>:<unix seconds>"
//   - stable ID (TTL = member ID TTL): pool claims, only used when no member ID
//     is configured
//
// Namespace and member names that are not valid key tokens are hashed with
// xxh3; the raw names travel in the values.
//
// # Views
//
// A started view publishes its heartbeat and contends for the namespace lease
// unless it is disabled. A background loop renews the lease every TTL/3 and
// re-reads the namespace when a watcher reports a change or, to catch entries
// that expire silently, every heartbeat TTL/2. Each read is diffed against the
// last delivered state and the difference is dispatched to listeners from the
// loop goroutine.
//
// Until its first successful read, or after a failed one, a view reports
// itself unhealthy so a rebalancer does not act on a stale membership.
package natskv
