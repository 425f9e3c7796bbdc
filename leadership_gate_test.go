package cluster

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/cluster/internal/logger"
	"github.com/stretchr/testify/require"
)

// countingTask records how many runs started and how many are active.
type countingTask struct {
	started atomic.Int32
	active  atomic.Int32
}

func (c *countingTask) run(ctx context.Context) error {
	c.started.Add(1)
	c.active.Add(1)
	defer c.active.Add(-1)
	<-ctx.Done()

	return ctx.Err()
}

func TestLeadershipGate_FollowsLeadership(t *testing.T) {
	c, peers := newMemoryPeers(t, 2, []string{"scheduler"})

	views := make([]PreemptiveView, len(peers))
	tasks := make([]*countingTask, len(peers))
	gates := make([]*LeadershipGate, len(peers))
	for i, p := range peers {
		v, err := p.PreemptiveView(t.Context(), "scheduler")
		require.NoError(t, err)
		views[i] = v
		tasks[i] = &countingTask{}
		gates[i] = NewLeadershipGate(v, tasks[i].run, WithLogger(logger.NewNop()))
		require.NoError(t, gates[i].Start(context.Background()))
		t.Cleanup(func() { _ = gates[i].Stop(context.Background()) })
	}

	// peer-0 leads: catch-up on Start already launched its task.
	require.True(t, gates[0].Active())
	require.False(t, gates[1].Active())
	require.Eventually(t, func() bool { return tasks[0].active.Load() == 1 }, time.Second, 5*time.Millisecond)

	// Ceding leadership moves the task.
	require.NoError(t, views[0].SetDisabled(t.Context(), true))
	require.NoError(t, c.Sync(t.Context()))

	require.False(t, gates[0].Active())
	require.True(t, gates[1].Active())
	require.Eventually(t, func() bool {
		return tasks[0].active.Load() == 0 && tasks[1].active.Load() == 1
	}, time.Second, 5*time.Millisecond)

	// peer-1 cedes too: nobody enabled is left, so no task runs.
	require.NoError(t, views[1].SetDisabled(t.Context(), true))
	require.NoError(t, c.Sync(t.Context()))
	require.Eventually(t, func() bool { return tasks[1].active.Load() == 0 }, time.Second, 5*time.Millisecond)
	require.False(t, gates[0].Active())
	require.False(t, gates[1].Active())

	// Re-enabling peer-0 starts a second run.
	require.NoError(t, views[0].SetDisabled(t.Context(), false))
	require.NoError(t, c.Sync(t.Context()))
	require.Eventually(t, func() bool { return tasks[0].active.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, int32(2), tasks[0].started.Load())
}

func TestLeadershipGate_ViewStopCancelsTask(t *testing.T) {
	c, peers := newMemoryPeers(t, 2, []string{"scheduler"})

	tasks := make([]*countingTask, len(peers))
	gates := make([]*LeadershipGate, len(peers))
	for i, p := range peers {
		v, err := p.PreemptiveView(t.Context(), "scheduler")
		require.NoError(t, err)
		tasks[i] = &countingTask{}
		gates[i] = NewLeadershipGate(v, tasks[i].run, WithLogger(logger.NewNop()))
		require.NoError(t, gates[i].Start(context.Background()))
		t.Cleanup(func() { _ = gates[i].Stop(context.Background()) })
	}
	require.True(t, gates[0].Active())

	// Leaving the namespace ends the run even though the gate stays registered.
	require.NoError(t, peers[0].StopView(t.Context(), "scheduler"))
	require.NoError(t, c.Sync(t.Context()))

	require.False(t, gates[0].Active())
	require.True(t, gates[1].Active())
	require.Eventually(t, func() bool {
		return tasks[0].active.Load() == 0 && tasks[1].active.Load() == 1
	}, time.Second, 5*time.Millisecond)

	// Rejoining behind peer-1 does not start a second run.
	require.NoError(t, peers[0].StartView(t.Context(), "scheduler"))
	require.NoError(t, c.Sync(t.Context()))
	require.False(t, gates[0].Active())
	require.Equal(t, int32(1), tasks[0].started.Load())
}

func TestLeadershipGate_StopCancelsTask(t *testing.T) {
	_, peers := newMemoryPeers(t, 1, []string{"scheduler"})
	v, err := peers[0].PreemptiveView(t.Context(), "scheduler")
	require.NoError(t, err)

	task := &countingTask{}
	gate := NewLeadershipGate(v, task.run)
	require.NoError(t, gate.Start(context.Background()))
	require.ErrorIs(t, gate.Start(context.Background()), ErrAlreadyStarted)
	require.Eventually(t, func() bool { return task.active.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, gate.Stop(t.Context()))
	require.Zero(t, task.active.Load())
	require.False(t, gate.Active())
	require.ErrorIs(t, gate.Stop(t.Context()), ErrNotStarted)
}

func TestLeadershipGate_TaskReturnsEarly(t *testing.T) {
	c, peers := newMemoryPeers(t, 1, []string{"scheduler"})
	v, err := peers[0].PreemptiveView(t.Context(), "scheduler")
	require.NoError(t, err)

	var runs atomic.Int32
	gate := NewLeadershipGate(v, func(context.Context) error {
		runs.Add(1)
		return errors.New("one-shot failure")
	}, WithLogger(logger.NewNop()))
	require.NoError(t, gate.Start(context.Background()))
	t.Cleanup(func() { _ = gate.Stop(context.Background()) })

	require.Eventually(t, func() bool { return !gate.Active() }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Sync(t.Context()))
	require.Equal(t, int32(1), runs.Load(), "not restarted while leadership is unchanged")
}

func TestLeadershipGate_StopHonorsContext(t *testing.T) {
	_, peers := newMemoryPeers(t, 1, []string{"scheduler"})
	v, err := peers[0].PreemptiveView(t.Context(), "scheduler")
	require.NoError(t, err)

	release := make(chan struct{})
	entered := make(chan struct{})
	gate := NewLeadershipGate(v, func(context.Context) error {
		close(entered)
		<-release // ignores cancellation
		return nil
	}, WithLogger(logger.NewNop()))
	require.NoError(t, gate.Start(context.Background()))
	<-entered

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, gate.Stop(ctx), context.DeadlineExceeded)
	close(release)
}
