package zookeeper

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/cluster/internal/logger"
	clustertest "github.com/arloliu/cluster/testing"
	"github.com/arloliu/cluster/types"
)

const (
	waitFor = 5 * time.Second
	tick    = 10 * time.Millisecond
)

func testConfig(memberID string) Config {
	return Config{
		MemberID:     memberID,
		RootPath:     "/cluster",
		PollInterval: 50 * time.Millisecond,
		Logger:       logger.NewNop(),
	}
}

func startService(t *testing.T, conn Conn, memberID string) *Service {
	t.Helper()

	s, err := New(conn, testConfig(memberID))
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

func leaderID(v types.View) string {
	l, ok := v.Leader()
	if !ok {
		return ""
	}

	return l.ID
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, testConfig("a"))
	require.ErrorIs(t, err, types.ErrZooKeeperConnectionRequired)

	conn := clustertest.NewZKServer().Connect()
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no member", func(c *Config) { c.MemberID = "" }},
		{"relative root", func(c *Config) { c.RootPath = "cluster" }},
		{"trailing slash", func(c *Config) { c.RootPath = "/cluster/" }},
		{"no poll interval", func(c *Config) { c.PollInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("a")
			tt.mutate(&cfg)
			_, err := New(conn, cfg)
			require.ErrorIs(t, err, types.ErrInvalidConfig)
		})
	}
}

func TestService_SingleMemberLeads(t *testing.T) {
	srv := clustertest.NewZKServer()
	s := startService(t, srv.Connect(), "a")
	v := preemptiveView(t, s, "orders")

	require.Eventually(t, func() bool {
		return v.LocalMember().IsLeader() && s.IsLeader("orders")
	}, waitFor, tick)
	require.Equal(t, []string{"a"}, types.MemberIDs(v.Members()))
	require.NoError(t, v.(types.HealthReporter).Healthy())
	require.Contains(t, srv.Paths(), "/cluster/orders/members/a")
}

func TestService_ViewStartRequiresService(t *testing.T) {
	s, err := New(clustertest.NewZKServer().Connect(), testConfig("a"))
	require.NoError(t, err)

	v, err := s.View(t.Context(), "orders")
	require.NoError(t, err)
	require.ErrorIs(t, s.StartView(t.Context(), "orders"), types.ErrNotStarted)

	require.NoError(t, s.Start(t.Context()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	require.Equal(t, types.StateStarted, v.State())
	require.ErrorIs(t, s.Start(t.Context()), types.ErrAlreadyStarted)
}

func TestService_FirstCandidateLeads(t *testing.T) {
	srv := clustertest.NewZKServer()

	views := make([]types.PreemptiveView, 3)
	for i := range views {
		s := startService(t, srv.Connect(), fmt.Sprintf("m-%d", i))
		views[i] = preemptiveView(t, s, "orders")
	}

	for _, v := range views {
		require.Eventually(t, func() bool {
			return len(v.Members()) == 3 && leaderID(v) == "m-0"
		}, waitFor, tick)
	}
}

func TestView_DisableHandsLeadershipOver(t *testing.T) {
	srv := clustertest.NewZKServer()
	va := preemptiveView(t, startService(t, srv.Connect(), "a"), "orders")
	require.Eventually(t, func() bool { return leaderID(va) == "a" }, waitFor, tick)
	vb := preemptiveView(t, startService(t, srv.Connect(), "b"), "orders")
	require.Eventually(t, func() bool { return leaderID(vb) == "a" }, waitFor, tick)

	require.NoError(t, va.SetDisabled(t.Context(), true))
	require.True(t, va.IsDisabled())
	require.Eventually(t, func() bool {
		return leaderID(va) == "b" && leaderID(vb) == "b"
	}, waitFor, tick)

	// Re-enabling queues behind the current leader.
	require.NoError(t, va.SetDisabled(t.Context(), false))
	require.Eventually(t, func() bool { return len(candidates(srv)) == 2 }, waitFor, tick)
	require.Never(t, func() bool { return leaderID(vb) != "b" }, 200*time.Millisecond, tick)
}

func TestView_AllDisabledMeansNoLeader(t *testing.T) {
	srv := clustertest.NewZKServer()
	va := preemptiveView(t, startService(t, srv.Connect(), "a"), "orders")
	rec := clustertest.NewRecorder()
	va.AddEventListener(rec)
	require.Eventually(t, func() bool { return leaderID(va) == "a" }, waitFor, tick)

	require.NoError(t, va.SetDisabled(t.Context(), true))
	require.Eventually(t, func() bool { return rec.Last() == "leader:" }, waitFor, tick)
	_, ok := va.Leader()
	require.False(t, ok)
	require.Equal(t, []string{"a"}, types.MemberIDs(va.Members()))
	require.Empty(t, candidates(srv))
}

func TestView_StopHandsLeadershipOver(t *testing.T) {
	srv := clustertest.NewZKServer()
	sa := startService(t, srv.Connect(), "a")
	va := preemptiveView(t, sa, "orders")
	require.Eventually(t, func() bool { return leaderID(va) == "a" }, waitFor, tick)

	vb := preemptiveView(t, startService(t, srv.Connect(), "b"), "orders")
	rec := clustertest.NewRecorder()
	vb.AddEventListener(rec)
	require.Eventually(t, func() bool { return len(vb.Members()) == 2 }, waitFor, tick)

	require.NoError(t, sa.StopView(t.Context(), "orders"))
	require.Empty(t, va.Members())

	require.Eventually(t, func() bool {
		return rec.Contains("-a") && leaderID(vb) == "b"
	}, waitFor, tick)
	require.NotContains(t, srv.Paths(), "/cluster/orders/members/a")
}

func TestView_SessionExpiryRestoresNodes(t *testing.T) {
	srv := clustertest.NewZKServer()
	conn := srv.Connect()
	va := preemptiveView(t, startService(t, conn, "a"), "orders")
	vb := preemptiveView(t, startService(t, srv.Connect(), "b"), "orders")
	require.Eventually(t, func() bool { return leaderID(vb) == "a" && len(vb.Members()) == 2 }, waitFor, tick)

	conn.Expire()

	// a lost its candidacy with the session and re-enters behind b.
	require.Eventually(t, func() bool {
		return leaderID(vb) == "b" && leaderID(va) == "b" && len(va.Members()) == 2
	}, waitFor, tick)
	require.Contains(t, srv.Paths(), "/cluster/orders/members/a")
	require.Len(t, candidates(srv), 2)
}

func TestView_UnhealthyWhileDisconnected(t *testing.T) {
	srv := clustertest.NewZKServer()
	conn := srv.Connect()
	v := preemptiveView(t, startService(t, conn, "a"), "orders")
	hr := v.(types.HealthReporter)
	require.Eventually(t, func() bool { return hr.Healthy() == nil }, waitFor, tick)

	conn.SetDisconnected(true)
	require.ErrorIs(t, hr.Healthy(), types.ErrConnectivity)

	conn.SetDisconnected(false)
	require.Eventually(t, func() bool { return hr.Healthy() == nil }, waitFor, tick)
}

func TestView_CatchUpOnRegistration(t *testing.T) {
	srv := clustertest.NewZKServer()
	v := preemptiveView(t, startService(t, srv.Connect(), "a"), "orders")
	require.Eventually(t, func() bool { return leaderID(v) == "a" }, waitFor, tick)

	rec := clustertest.NewRecorder()
	v.AddEventListener(rec)
	require.Equal(t, []string{"leader:a", "+a"}, rec.Events())
}

func TestView_NamespaceNeedingEscape(t *testing.T) {
	srv := clustertest.NewZKServer()
	s := startService(t, srv.Connect(), "node/1")
	v := preemptiveView(t, s, "tenant/orders")

	require.Eventually(t, func() bool { return leaderID(v) == "node/1" }, waitFor, tick)
	require.Contains(t, srv.Paths(), "/cluster/tenant%2Forders/members/node%2F1")
}

// candidates lists the candidate nodes of "orders"; nil if it cannot be read.
func candidates(srv *clustertest.ZKServer) []string {
	names, _, err := srv.Connect().Children("/cluster/orders/candidates")
	if err != nil {
		return nil
	}

	return names
}

func TestClassify(t *testing.T) {
	require.NoError(t, Classify(nil))
	require.ErrorIs(t, Classify(zk.ErrNoServer), types.ErrConnectivity)
	require.ErrorIs(t, Classify(fmt.Errorf("read: %w", zk.ErrSessionExpired)), types.ErrConnectivity)
	require.NotErrorIs(t, Classify(zk.ErrNoNode), types.ErrConnectivity)
}

func TestCandidateNames(t *testing.T) {
	c, ok := parseCandidate("node-7-0000000012")
	require.True(t, ok)
	require.Equal(t, "node-7", c.member)
	require.EqualValues(t, 12, c.seq)

	_, ok = parseCandidate("0000000012")
	require.False(t, ok)
	_, ok = parseCandidate("x-00000000ab")
	require.False(t, ok)

	sorted := sortCandidates([]string{"b-0000000003", "junk", "a-0000000007", "c-0000000001"})
	require.Len(t, sorted, 3)
	require.Equal(t, []string{"c", "b", "a"}, []string{sorted[0].member, sorted[1].member, sorted[2].member})

	require.Equal(t, "%2E", nodeName("."))
	require.Equal(t, "%2E%2E", nodeName(".."))
	require.Equal(t, []string{"a", "b/c"}, memberIDs([]string{"b%2Fc", "a", "%zz"}))
}
