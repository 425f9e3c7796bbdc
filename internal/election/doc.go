// Package election implements per-namespace leadership leases on NATS KV.
//
// Each namespace has one lease key in the election bucket. The bucket TTL is
// the lease duration:
//
//  1. Acquire: Create the key; fails with no error when another member holds it
//  2. Renew: Update with the held revision, every TTL/3
//  3. Release: Delete guarded by the held revision, so a lease taken over by
//     another member after expiry is never removed
//  4. Failover: a crashed holder stops renewing and the key expires
//
// The lease value is "<memberID>:<unix seconds>"; Holder parses the member ID
// back so every member can observe the current leader.
//
// Example:
//
//	lease := election.NewLease(kv, "orders", "member-3")
//	acquired, err := lease.Acquire(ctx)
//	...
//	defer lease.Release(context.Background())
package election
