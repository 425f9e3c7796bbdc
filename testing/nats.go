package testing

import (
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// StartEmbeddedNATS starts an in-process NATS server with JetStream on a
// random port and returns it with a connected client.
//
// JetStream data lives in t.TempDir(). The client and the server are shut
// down in t.Cleanup; tests may also shut the server down early to simulate an
// outage.
//
// Example:
//
//	func TestMembership(t *testing.T) {
//	    _, nc := clustertest.StartEmbeddedNATS(t)
//	    cfg := cluster.TestConfig()
//	    svc, err := cluster.NewNATSService(&cfg, nc)
//	    ...
//	}
func StartEmbeddedNATS(t testing.TB) (*server.Server, *nats.Conn) {
	t.Helper()

	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	if err != nil {
		t.Fatalf("create embedded NATS server: %v", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		t.Fatal("embedded NATS server not ready within 5s")
	}
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})

	return ns, ConnectNATS(t, ns)
}

// ConnectNATS opens another client on ns, closed in t.Cleanup. Separate
// clients stand in for separate processes of a cluster.
//
// Reconnects are bounded so a test that shuts the server down sees the client
// fail within a few hundred milliseconds.
func ConnectNATS(t testing.TB, ns *server.Server) *nats.Conn {
	t.Helper()

	nc, err := nats.Connect(ns.ClientURL(),
		nats.Timeout(2*time.Second),
		nats.MaxReconnects(3),
		nats.ReconnectWait(100*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("connect to embedded NATS server: %v", err)
	}
	t.Cleanup(nc.Close)

	return nc
}

// CreateJetStreamKV creates a memory-backed KV bucket with a one minute TTL.
//
// Example:
//
//	_, nc := clustertest.StartEmbeddedNATS(t)
//	kv := clustertest.CreateJetStreamKV(t, nc, "member-ids")
func CreateJetStreamKV(t testing.TB, nc *nats.Conn, bucket string) jetstream.KeyValue {
	t.Helper()

	js, err := jetstream.New(nc)
	if err != nil {
		t.Fatalf("jetstream: %v", err)
	}

	kv, err := js.CreateKeyValue(t.Context(), jetstream.KeyValueConfig{
		Bucket:  bucket,
		TTL:     time.Minute,
		Storage: jetstream.MemoryStorage,
	})
	if err != nil {
		t.Fatalf("create KV bucket %s: %v", bucket, err)
	}

	return kv
}
