package kvutil

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	clustertest "github.com/arloliu/cluster/testing"
)

func TestBucketConfig(t *testing.T) {
	cfg := BucketConfig("cluster-membership", "heartbeats", 6*time.Second)
	require.Equal(t, "cluster-membership", cfg.Bucket)
	require.Equal(t, uint8(1), cfg.History)
	require.Equal(t, 6*time.Second, cfg.TTL)
	require.Equal(t, jetstream.FileStorage, cfg.Storage)
}

func TestEnsureKVBucketWithRetry(t *testing.T) {
	_, nc := clustertest.StartEmbeddedNATS(t)

	ctx := context.Background()
	js, err := jetstream.New(nc)
	require.NoError(t, err)

	t.Run("creates missing bucket", func(t *testing.T) {
		kv, err := EnsureKVBucketWithRetry(ctx, js, BucketConfig("retry-1", "", 5*time.Second), 3)
		require.NoError(t, err)
		require.Equal(t, "retry-1", kv.Bucket())
	})

	t.Run("opens existing bucket", func(t *testing.T) {
		cfg := BucketConfig("retry-2", "", 5*time.Second)
		_, err := js.CreateKeyValue(ctx, cfg)
		require.NoError(t, err)

		kv, err := EnsureKVBucketWithRetry(ctx, js, cfg, 0)
		require.NoError(t, err)
		require.NotNil(t, kv)
	})

	t.Run("concurrent members", func(t *testing.T) {
		const members = 10
		cfg := BucketConfig("retry-3", "", 5*time.Second)

		var wg sync.WaitGroup
		errs := make([]error, members)
		for i := range members {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = EnsureKVBucketWithRetry(ctx, js, cfg, 5)
			}()
		}
		wg.Wait()

		require.NoError(t, errors.Join(errs...))
	})

	t.Run("expired context", func(t *testing.T) {
		shortCtx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		time.Sleep(time.Millisecond)

		_, err := EnsureKVBucketWithRetry(shortCtx, js, BucketConfig("retry-4", "", 0), 3)
		require.Error(t, err)
		require.Contains(t, err.Error(), "context")
	})
}

func TestKeysWithPrefix(t *testing.T) {
	_, nc := clustertest.StartEmbeddedNATS(t)
	kv := clustertest.CreateJetStreamKV(t, nc, "keys")
	ctx := t.Context()

	keys, err := KeysWithPrefix(ctx, kv, "orders")
	require.NoError(t, err)
	require.Empty(t, keys)

	for _, k := range []string{"orders.m-1", "orders.m-2", "ordersx.m-3", "invoices.m-1", "orders"} {
		_, err := kv.Put(ctx, k, []byte("v"))
		require.NoError(t, err)
	}

	keys, err = KeysWithPrefix(ctx, kv, "orders")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"m-1", "m-2"}, keys)
}
