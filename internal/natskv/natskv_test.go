package natskv

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/cluster/internal/logger"
	clustertest "github.com/arloliu/cluster/testing"
	"github.com/arloliu/cluster/types"
)

const (
	waitFor = 5 * time.Second
	tick    = 20 * time.Millisecond
)

func testConfig(memberID string) Config {
	return Config{
		MemberID:          memberID,
		MemberIDPrefix:    "member",
		MemberIDMin:       0,
		MemberIDMax:       9,
		MemberIDTTL:       2 * time.Second,
		HeartbeatInterval: 100 * time.Millisecond,
		HeartbeatTTL:      time.Second,
		LeaseTTL:          time.Second,
		OperationTimeout:  2 * time.Second,
		StableIDBucket:    "test-stableid",
		ElectionBucket:    "test-election",
		MembershipBucket:  "test-membership",
		Logger:            logger.NewNop(),
	}
}

func startService(t *testing.T, nc *nats.Conn, cfg Config) *Service {
	t.Helper()

	s, err := New(nc, cfg)
	require.NoError(t, err)
	require.NoError(t, s.Start(t.Context()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	return s
}

func preemptiveView(t *testing.T, s *Service, ns string) types.PreemptiveView {
	t.Helper()

	v, err := s.PreemptiveView(t.Context(), ns)
	require.NoError(t, err)

	return v
}

func memberIDs(v types.View) []string {
	return types.MemberIDs(v.Members())
}

func leaderID(v types.View) string {
	l, ok := v.Leader()
	if !ok {
		return ""
	}

	return l.ID
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, testConfig("a"))
	require.ErrorIs(t, err, types.ErrNATSConnectionRequired)

	_, nc := clustertest.StartEmbeddedNATS(t)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no identity", func(c *Config) { c.MemberID, c.MemberIDPrefix = "", "" }},
		{"empty pool", func(c *Config) { c.MemberID, c.MemberIDMin, c.MemberIDMax = "", 5, 4 }},
		{"ttl not above interval", func(c *Config) { c.HeartbeatTTL = c.HeartbeatInterval }},
		{"no lease ttl", func(c *Config) { c.LeaseTTL = 0 }},
		{"no election bucket", func(c *Config) { c.ElectionBucket = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("a")
			tt.mutate(&cfg)
			_, err := New(nc, cfg)
			require.ErrorIs(t, err, types.ErrInvalidConfig)
		})
	}
}

func TestService_SingleMemberLeads(t *testing.T) {
	_, nc := clustertest.StartEmbeddedNATS(t)
	s := startService(t, nc, testConfig("a"))
	v := preemptiveView(t, s, "orders")

	require.Eventually(t, func() bool {
		return v.LocalMember().IsLeader() && s.IsLeader("orders")
	}, waitFor, tick)
	require.Equal(t, []string{"a"}, memberIDs(v))
	require.NoError(t, v.(types.HealthReporter).Healthy())
	require.Equal(t, map[string]bool{"orders": true}, s.Leaderships())
}

func TestService_ViewStartRequiresService(t *testing.T) {
	_, nc := clustertest.StartEmbeddedNATS(t)
	s, err := New(nc, testConfig("a"))
	require.NoError(t, err)

	v, err := s.View(t.Context(), "orders")
	require.NoError(t, err)
	require.Equal(t, types.StateCreated, v.State())
	require.ErrorIs(t, v.(types.HealthReporter).Healthy(), types.ErrNotStarted)

	require.ErrorIs(t, s.StartView(t.Context(), "orders"), types.ErrNotStarted)
	require.NotEqual(t, types.StateStarted, v.State())

	// Starting the service starts the registered view.
	require.NoError(t, s.Start(t.Context()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	require.Equal(t, types.StateStarted, v.State())
	require.ErrorIs(t, s.Start(t.Context()), types.ErrAlreadyStarted)
}

func TestService_MembersAgreeOnOneLeader(t *testing.T) {
	_, nc := clustertest.StartEmbeddedNATS(t)

	services := make([]*Service, 3)
	views := make([]types.PreemptiveView, 3)
	for i := range services {
		services[i] = startService(t, nc, testConfig(fmt.Sprintf("m-%d", i)))
		views[i] = preemptiveView(t, services[i], "orders")
	}

	require.Eventually(t, func() bool {
		leader := leaderID(views[0])
		if leader == "" {
			return false
		}
		for _, v := range views {
			if leaderID(v) != leader || len(v.Members()) != 3 {
				return false
			}
		}

		return true
	}, waitFor, tick)

	leaders := 0
	for _, s := range services {
		if s.IsLeader("orders") {
			leaders++
		}
	}
	require.Equal(t, 1, leaders)
}

func TestView_DisableHandsLeadershipOver(t *testing.T) {
	_, nc := clustertest.StartEmbeddedNATS(t)
	a := startService(t, nc, testConfig("a"))
	va := preemptiveView(t, a, "orders")
	require.Eventually(t, func() bool { return va.LocalMember().IsLeader() }, waitFor, tick)

	b := startService(t, nc, testConfig("b"))
	vb := preemptiveView(t, b, "orders")
	require.Eventually(t, func() bool { return leaderID(vb) == "a" && len(vb.Members()) == 2 }, waitFor, tick)

	require.NoError(t, va.SetDisabled(t.Context(), true))
	require.True(t, va.IsDisabled())

	require.Eventually(t, func() bool {
		return vb.LocalMember().IsLeader() && leaderID(va) == "b"
	}, waitFor, tick)
	require.Equal(t, []string{"a", "b"}, memberIDs(va), "disabled view stays a member")

	// Re-enabling does not preempt the current leader.
	require.NoError(t, va.SetDisabled(t.Context(), false))
	require.Never(t, func() bool { return va.LocalMember().IsLeader() }, 500*time.Millisecond, tick)
}

func TestView_AllDisabledMeansNoLeader(t *testing.T) {
	_, nc := clustertest.StartEmbeddedNATS(t)
	a := startService(t, nc, testConfig("a"))
	va := preemptiveView(t, a, "orders")
	require.Eventually(t, func() bool { return va.LocalMember().IsLeader() }, waitFor, tick)

	rec := clustertest.NewRecorder()
	va.AddEventListener(rec)

	require.NoError(t, va.SetDisabled(t.Context(), true))
	require.Eventually(t, func() bool { return rec.Last() == "leader:" }, waitFor, tick)
	_, ok := va.Leader()
	require.False(t, ok)
}

func TestView_StopHandsLeadershipOver(t *testing.T) {
	_, nc := clustertest.StartEmbeddedNATS(t)
	a := startService(t, nc, testConfig("a"))
	va := preemptiveView(t, a, "orders")
	require.Eventually(t, func() bool { return va.LocalMember().IsLeader() }, waitFor, tick)

	b := startService(t, nc, testConfig("b"))
	vb := preemptiveView(t, b, "orders")
	rec := clustertest.NewRecorder()
	vb.AddEventListener(rec)
	require.Eventually(t, func() bool { return rec.Contains("+a") && rec.Contains("+b") }, waitFor, tick)

	require.NoError(t, a.StopView(t.Context(), "orders"))
	require.Empty(t, va.Members())

	require.Eventually(t, func() bool {
		return rec.Contains("-a") && rec.Contains("leader:b")
	}, waitFor, tick)
	require.Equal(t, []string{"b"}, memberIDs(vb))

	// Restart rejoins as follower.
	require.NoError(t, a.StartView(t.Context(), "orders"))
	require.Eventually(t, func() bool {
		return leaderID(va) == "b" && len(va.Members()) == 2
	}, waitFor, tick)
}

func TestView_CatchUpOnRegistration(t *testing.T) {
	_, nc := clustertest.StartEmbeddedNATS(t)
	a := startService(t, nc, testConfig("a"))
	va := preemptiveView(t, a, "orders")
	require.Eventually(t, func() bool { return va.LocalMember().IsLeader() }, waitFor, tick)

	rec := clustertest.NewRecorder()
	va.AddEventListener(rec)
	require.Equal(t, []string{"leader:a", "+a"}, rec.Events())
}

func TestView_NamespaceNeedingHash(t *testing.T) {
	_, nc := clustertest.StartEmbeddedNATS(t)
	a := startService(t, nc, testConfig("host.example:7"))
	b := startService(t, nc, testConfig("b"))

	va := preemptiveView(t, a, "orders.eu west")
	vb := preemptiveView(t, b, "orders.eu west")
	other := preemptiveView(t, b, "orders.eu east")

	require.Eventually(t, func() bool {
		return len(vb.Members()) == 2 && leaderID(vb) == leaderID(va) && leaderID(va) != ""
	}, waitFor, tick)
	require.Contains(t, memberIDs(vb), "host.example:7")

	require.Eventually(t, func() bool { return other.LocalMember().IsLeader() }, waitFor, tick)
	require.Equal(t, []string{"b"}, memberIDs(other))
}

func TestService_ClaimsStableIDs(t *testing.T) {
	_, nc := clustertest.StartEmbeddedNATS(t)

	a := startService(t, nc, testConfig(""))
	b := startService(t, nc, testConfig(""))
	require.Equal(t, "member-0", a.ID())
	require.Equal(t, "member-1", b.ID())

	require.NoError(t, a.Stop(t.Context()))

	c := startService(t, nc, testConfig(""))
	require.Equal(t, "member-0", c.ID(), "released ID is reused")
}

func TestService_PoolExhausted(t *testing.T) {
	_, nc := clustertest.StartEmbeddedNATS(t)

	cfg := testConfig("")
	cfg.MemberIDMax = 0
	startService(t, nc, cfg)

	s, err := New(nc, cfg)
	require.NoError(t, err)
	require.ErrorIs(t, s.Start(t.Context()), types.ErrIDClaimFailed)
}

func TestView_UnhealthyWithoutServer(t *testing.T) {
	ns, nc := clustertest.StartEmbeddedNATS(t)

	cfg := testConfig("a")
	cfg.OperationTimeout = 200 * time.Millisecond
	s := startService(t, nc, cfg)
	v := preemptiveView(t, s, "orders")
	hr := v.(types.HealthReporter)
	require.Eventually(t, func() bool { return hr.Healthy() == nil }, waitFor, tick)

	ns.Shutdown()
	require.Eventually(t, func() bool { return hr.Healthy() != nil }, waitFor, tick)
}
