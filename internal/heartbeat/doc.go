// Package heartbeat publishes namespace membership heartbeats to NATS KV.
//
// Every started view keeps one key alive in the membership bucket:
//
//	{namespaceKey}.{memberKey}
//
// The key value is the raw member ID, so observers can recover IDs that had to
// be hashed into a valid key token. The bucket TTL is about three heartbeat
// intervals: a member that crashes disappears after three missed heartbeats, a
// member that stops deletes its key right away.
//
// Example:
//
//	pub := heartbeat.New(kv, "orders", "member-1", 2*time.Second)
//	if err := pub.Start(ctx); err != nil {
//	    return err
//	}
//	defer pub.Stop(context.Background())
package heartbeat
