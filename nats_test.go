package cluster

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/cluster/internal/logger"
	clustertest "github.com/arloliu/cluster/testing"
)

func natsTestConfig(memberID string) Config {
	cfg := TestConfig()
	cfg.MemberID = memberID
	cfg.KVBuckets = KVBucketConfig{
		StableIDBucket:   "it-stableid",
		ElectionBucket:   "it-election",
		MembershipBucket: "it-membership",
	}

	return cfg
}

func TestNewNATSService_Validation(t *testing.T) {
	cfg := natsTestConfig("a")
	_, err := NewNATSService(&cfg, nil)
	require.ErrorIs(t, err, ErrNATSConnectionRequired)

	_, nc := clustertest.StartEmbeddedNATS(t)

	bad := natsTestConfig("a")
	bad.HeartbeatTTL = bad.HeartbeatInterval
	_, err = NewNATSService(&bad, nc)
	require.ErrorIs(t, err, ErrInvalidConfig)

	svc, err := NewNATSService(nil, nc)
	require.NoError(t, err)
	require.Equal(t, StateCreated, svc.State())
	require.Equal(t, DefaultConfig().KVBuckets.ElectionBucket, svc.Config().ElectionBucket)
}

func TestNewNATSService_OptionsOverrideConfig(t *testing.T) {
	_, nc := clustertest.StartEmbeddedNATS(t)

	cfg := natsTestConfig("a")
	cfg.Order = 5
	cfg.Attributes = map[string]any{"zone": "a"}

	svc, err := NewNATSService(&cfg, nc,
		WithOrder(1),
		WithAttributes(map[string]any{"zone": "b"}),
		WithLogger(logger.NewNop()),
	)
	require.NoError(t, err)
	require.Equal(t, 1, svc.Order())
	require.Equal(t, "b", svc.Attributes()["zone"])
	require.Equal(t, 5, cfg.Order, "caller config untouched")
}

// ownedBy counts partitions the service leads with an enabled view, -1 on error.
// Safe to call from an Eventually condition.
func ownedBy(ctx context.Context, s PreemptiveService) int {
	owned := 0
	for _, ns := range s.Namespaces() {
		v, err := s.PreemptiveView(ctx, ns)
		if err != nil {
			return -1
		}
		if v.LocalMember().IsLeader() && !v.IsDisabled() {
			owned++
		}
		_ = s.ReleaseView(ctx, v)
	}

	return owned
}

func TestRebalancingService_OverNATS(t *testing.T) {
	_, nc := clustertest.StartEmbeddedNATS(t)
	partitions := partitionNames(4)

	services := make([]*NATSService, 2)
	for i := range services {
		cfg := natsTestConfig(fmt.Sprintf("peer-%d", i))
		svc, err := NewNATSService(&cfg, nc, WithLogger(logger.NewNop()))
		require.NoError(t, err)

		r, err := NewRebalancingService(svc, 200*time.Millisecond, WithLogger(logger.NewNop()))
		require.NoError(t, err)
		require.NoError(t, r.Start(t.Context()))
		t.Cleanup(func() { _ = r.Stop(context.Background()) })

		for _, ns := range partitions {
			_, err := svc.PreemptiveView(t.Context(), ns)
			require.NoError(t, err)
		}
		services[i] = svc
	}

	require.Eventually(t, func() bool {
		return ownedBy(t.Context(), services[0]) == 2 && ownedBy(t.Context(), services[1]) == 2
	}, 15*time.Second, 100*time.Millisecond)
}
