package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/arloliu/cluster/internal/logger"
	"github.com/arloliu/cluster/types"
	"github.com/stretchr/testify/require"
)

func newTestCluster(t *testing.T) *Cluster {
	t.Helper()

	c := NewCluster()
	t.Cleanup(c.Close)

	return c
}

func startService(t *testing.T, c *Cluster, id string) *Service {
	t.Helper()

	s, err := c.NewService(id, WithLogger(logger.NewNop()))
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

func leaderID(t *testing.T, v types.View) string {
	t.Helper()

	m, ok := v.Leader()
	if !ok {
		return ""
	}

	return m.ID
}

func memberIDs(v types.View) []string {
	return types.MemberIDs(v.Members())
}

// eventLog records events as short strings.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, s)
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *eventLog) listener() *types.ListenerFuncs {
	return &types.ListenerFuncs{
		OnLeadershipChanged: func(ev types.LeadershipChanged) {
			if ev.HasLeader {
				l.add("leader:" + ev.Leader.ID)
			} else {
				l.add("leader:-")
			}
		},
		OnMemberAdded:   func(ev types.MemberAdded) { l.add("+" + ev.Member.ID) },
		OnMemberRemoved: func(ev types.MemberRemoved) { l.add("-" + ev.Member.ID) },
	}
}

func TestCluster_NewServiceValidation(t *testing.T) {
	c := newTestCluster(t)

	_, err := c.NewService("")
	require.ErrorIs(t, err, types.ErrInvalidConfig)

	_, err = c.NewService("a", WithOrder(2), WithAttributes(map[string]any{"zone": "eu"}))
	require.NoError(t, err)

	_, err = c.NewService("a")
	require.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestService_Identity(t *testing.T) {
	c := newTestCluster(t)
	s, err := c.NewService("a", WithOrder(2), WithAttributes(map[string]any{"zone": "eu"}))
	require.NoError(t, err)

	require.Equal(t, "a", s.ID())
	require.Equal(t, 2, s.Order())
	require.Equal(t, "eu", s.Attributes()["zone"])
	require.Same(t, c, s.Cluster())
}

func TestView_FirstJoinedLeads(t *testing.T) {
	c := newTestCluster(t)
	a := startService(t, c, "a")
	b := startService(t, c, "b")

	va := preemptiveView(t, a, "orders")
	vb := preemptiveView(t, b, "orders")
	require.NoError(t, c.Sync(t.Context()))

	require.Equal(t, "a", leaderID(t, va))
	require.Equal(t, "a", leaderID(t, vb))
	require.True(t, va.LocalMember().IsLeader())
	require.True(t, va.LocalMember().IsLocal())
	require.False(t, vb.LocalMember().IsLeader())
	require.Equal(t, []string{"a", "b"}, memberIDs(va))
	require.Equal(t, []string{"a", "b"}, memberIDs(vb))

	require.True(t, a.IsLeader("orders"))
	require.False(t, b.IsLeader("orders"))
	require.Equal(t, map[string]bool{"orders": true}, a.Leaderships())

	id, ok := c.Leader("orders")
	require.True(t, ok)
	require.Equal(t, "a", id)
	require.Equal(t, []string{"a", "b"}, c.Members("orders"))
}

func TestView_DisableLeaderHandsOver(t *testing.T) {
	c := newTestCluster(t)
	a := startService(t, c, "a")
	b := startService(t, c, "b")
	va := preemptiveView(t, a, "orders")
	vb := preemptiveView(t, b, "orders")

	require.NoError(t, va.SetDisabled(t.Context(), true))
	require.True(t, va.IsDisabled())
	require.NoError(t, c.Sync(t.Context()))

	require.Equal(t, "b", leaderID(t, va))
	require.True(t, vb.LocalMember().IsLeader())
	require.Equal(t, []string{"a", "b"}, memberIDs(vb), "disabled view stays a member")

	// Re-enabling does not preempt the current leader.
	require.NoError(t, va.SetDisabled(t.Context(), false))
	require.NoError(t, c.Sync(t.Context()))
	require.Equal(t, "b", leaderID(t, va))
}

func TestView_AllDisabledNoLeader(t *testing.T) {
	c := newTestCluster(t)
	a := startService(t, c, "a")
	b := startService(t, c, "b")
	va := preemptiveView(t, a, "orders")
	vb := preemptiveView(t, b, "orders")

	require.NoError(t, vb.SetDisabled(t.Context(), true))
	require.NoError(t, va.SetDisabled(t.Context(), true))
	require.NoError(t, c.Sync(t.Context()))

	_, ok := va.Leader()
	require.False(t, ok)
	_, ok = c.Leader("orders")
	require.False(t, ok)

	require.NoError(t, vb.SetDisabled(t.Context(), false))
	require.NoError(t, c.Sync(t.Context()))
	require.Equal(t, "b", leaderID(t, va))
}

func TestView_DisabledBeforeJoinDoesNotContend(t *testing.T) {
	c := newTestCluster(t)
	a, err := c.NewService("a")
	require.NoError(t, err)
	b := startService(t, c, "b")

	va := preemptiveView(t, a, "orders")
	require.NoError(t, va.SetDisabled(t.Context(), true))
	require.NoError(t, a.Start(t.Context()))
	t.Cleanup(func() { _ = a.Stop(context.Background()) })

	vb := preemptiveView(t, b, "orders")
	require.NoError(t, c.Sync(t.Context()))

	require.Equal(t, "b", leaderID(t, vb))
	require.Equal(t, []string{"a", "b"}, memberIDs(vb))
}

func TestView_StopLeaderHandsOver(t *testing.T) {
	c := newTestCluster(t)
	a := startService(t, c, "a")
	b := startService(t, c, "b")
	va := preemptiveView(t, a, "orders")
	vb := preemptiveView(t, b, "orders")
	require.NoError(t, c.Sync(t.Context()))

	log := &eventLog{}
	vb.AddEventListener(log.listener())
	require.Equal(t, []string{"leader:a", "+a", "+b"}, log.snapshot())

	require.NoError(t, a.StopView(t.Context(), "orders"))
	require.NoError(t, c.Sync(t.Context()))

	require.Equal(t, []string{"leader:a", "+a", "+b", "-a", "leader:b"}, log.snapshot())
	require.Equal(t, []string{"b"}, memberIDs(vb))
	require.Empty(t, memberIDs(va), "stopped view snapshot is cleared")

	require.NoError(t, a.StartView(t.Context(), "orders"))
	require.NoError(t, c.Sync(t.Context()))
	require.Equal(t, []string{"b", "a"}, memberIDs(va))
	require.Equal(t, "b", leaderID(t, va))
}

func TestView_StopRetiresStateForListeners(t *testing.T) {
	c := newTestCluster(t)
	a := startService(t, c, "a")
	b := startService(t, c, "b")
	va := preemptiveView(t, a, "orders")
	_ = preemptiveView(t, b, "orders")
	require.NoError(t, c.Sync(t.Context()))

	log := &eventLog{}
	va.AddEventListener(log.listener())
	require.Equal(t, []string{"leader:a", "+a", "+b"}, log.snapshot())

	require.NoError(t, a.StopView(t.Context(), "orders"))
	require.NoError(t, c.Sync(t.Context()))
	require.Equal(t, []string{"leader:a", "+a", "+b", "-a", "-b", "leader:-"}, log.snapshot())
	require.False(t, va.LocalMember().IsLeader())

	// A listener added while stopped is told nothing until the view restarts.
	late := &eventLog{}
	va.AddEventListener(late.listener())
	require.Empty(t, late.snapshot())

	require.NoError(t, a.StartView(t.Context(), "orders"))
	require.NoError(t, c.Sync(t.Context()))
	require.Equal(t, []string{
		"leader:a", "+a", "+b", "-a", "-b", "leader:-",
		"+b", "+a", "leader:b",
	}, log.snapshot())
	require.Equal(t, []string{"+b", "+a", "leader:b"}, late.snapshot())
}

func TestView_ListenerMayCallBack(t *testing.T) {
	c := newTestCluster(t)
	a := startService(t, c, "a")
	b := startService(t, c, "b")
	va := preemptiveView(t, a, "orders")
	require.NoError(t, c.Sync(t.Context()))

	var seen [][]string
	done := make(chan struct{})
	va.AddEventListener(&types.ListenerFuncs{
		OnMemberAdded: func(ev types.MemberAdded) {
			seen = append(seen, memberIDs(ev.Source()))
			if ev.Member.ID == "b" {
				// Toggling from inside a callback must not deadlock.
				require.NoError(t, va.SetDisabled(context.Background(), true))
				close(done)
			}
		},
	})

	_ = preemptiveView(t, b, "orders")
	<-done
	require.NoError(t, c.Sync(t.Context()))

	require.Equal(t, [][]string{{"a"}, {"a", "b"}}, seen)
	require.Equal(t, "b", leaderID(t, va))
}

func TestView_EventOrderAcrossListeners(t *testing.T) {
	c := newTestCluster(t)
	a := startService(t, c, "a")
	va := preemptiveView(t, a, "orders")
	require.NoError(t, c.Sync(t.Context()))

	logs := []*eventLog{{}, {}, {}}
	for _, l := range logs {
		va.AddEventListener(l.listener())
	}

	for _, id := range []string{"b", "c", "d"} {
		s := startService(t, c, id)
		_ = preemptiveView(t, s, "orders")
	}
	require.NoError(t, va.SetDisabled(t.Context(), true))
	require.NoError(t, c.Sync(t.Context()))

	want := logs[0].snapshot()
	require.Contains(t, want, "leader:b")
	for _, l := range logs[1:] {
		require.Equal(t, want, l.snapshot())
	}
}

func TestCluster_SyncAfterClose(t *testing.T) {
	c := NewCluster()
	c.Close()
	c.Close()

	require.NoError(t, c.Sync(t.Context()))
}

func TestCluster_SyncHonorsContext(t *testing.T) {
	c := newTestCluster(t)

	block := make(chan struct{})
	c.dispatch.submit(func() { <-block })
	defer close(block)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.ErrorIs(t, c.Sync(ctx), context.Canceled)
}
