// Package testing provides test utilities for the cluster library.
//
// It follows Go's convention of providing testing utilities in a dedicated
// package (similar to net/http/httptest).
//
// Key utilities:
//   - StartEmbeddedNATS, ConnectNATS: In-process NATS server with JetStream and clients
//   - CreateJetStreamKV: Convenience wrapper for KV bucket creation
//   - ZKServer: In-memory ZooKeeper with ephemeral and sequential nodes
//   - Recorder: Event listener that records what a view delivered
//   - NewTestLogger: Logger writing to the test output
//
// Example usage:
//
//	import (
//	    "testing"
//	    clustertest "github.com/arloliu/cluster/testing"
//	)
//
//	func TestMyComponent(t *testing.T) {
//	    _, nc := clustertest.StartEmbeddedNATS(t)
//	    rec := clustertest.NewRecorder()
//	    view.AddEventListener(rec)
//	    require.Eventually(t, func() bool { return rec.Contains("leader:member-0") }, ...)
//	}
package testing
