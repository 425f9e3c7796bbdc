package cluster

import (
	"context"
	"errors"
	"sync"

	"github.com/arloliu/cluster/internal/logger"
	"github.com/arloliu/cluster/types"
)

// LeadershipGate runs a task only while the local member leads a namespace.
//
// The task starts when the view reports the local member as leader and its
// context is canceled as soon as leadership moves elsewhere or the namespace
// loses its leader. A stopped view reports no leader, so stopping or releasing
// it also cancels the run, as does stopping the gate. A later re-election starts a new run,
// after the previous run has returned.
//
// Example:
//
//	gate := cluster.NewLeadershipGate(view, func(ctx context.Context) error {
//	    return runScheduler(ctx) // must return when ctx is canceled
//	})
//	gate.Start(ctx)
//	defer gate.Stop(context.Background())
type LeadershipGate struct {
	view   View
	task   func(ctx context.Context) error
	logger Logger

	mu      sync.Mutex
	parent  context.Context
	cancel  context.CancelFunc // cancels the current run, nil when idle
	done    chan struct{}      // closed when the latest run returned
	started bool
}

var _ types.LeadershipListener = (*LeadershipGate)(nil)

// NewLeadershipGate creates a gate for task on view. Only WithLogger is honored.
func NewLeadershipGate(view View, task func(ctx context.Context) error, opts ...Option) *LeadershipGate {
	o := applyOptions(opts)

	return &LeadershipGate{
		view:   view,
		task:   task,
		logger: logger.OrNop(o.logger),
	}
}

// Start registers the gate on its view. If the local member already leads, the
// task starts before Start returns. Runs derive their context from ctx.
func (g *LeadershipGate) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return ErrAlreadyStarted
	}
	g.started = true
	g.parent = ctx
	g.mu.Unlock()

	g.view.AddEventListener(g)

	return nil
}

// Stop unregisters the gate, cancels the current run and waits for it to
// return or for ctx to expire.
func (g *LeadershipGate) Stop(ctx context.Context) error {
	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return ErrNotStarted
	}
	g.started = false
	g.mu.Unlock()

	g.view.RemoveEventListener(g)

	g.mu.Lock()
	g.revokeLocked()
	done := g.done
	g.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active reports whether a run is in progress.
func (g *LeadershipGate) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.cancel != nil
}

// LeadershipChanged starts or cancels the task. It never blocks.
func (g *LeadershipGate) LeadershipChanged(ev types.LeadershipChanged) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.started {
		return
	}
	if ev.HasLeader && ev.Leader.IsLocal() {
		g.grantLocked()
		return
	}
	g.revokeLocked()
}

func (g *LeadershipGate) grantLocked() {
	if g.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(g.parent)
	prev := g.done
	done := make(chan struct{})
	g.cancel = cancel
	g.done = done

	ns := g.view.Namespace()
	g.logger.Info("leadership acquired, starting task", "namespace", ns)

	go func() {
		defer close(done)
		defer cancel()

		if prev != nil {
			<-prev
		}
		if runCtx.Err() != nil {
			return
		}

		err := g.task(runCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			g.logger.Warn("leader task failed", "namespace", ns, "error", err)
		}

		g.mu.Lock()
		// A task that returns on its own while still leading is not restarted
		// until leadership changes again.
		if g.done == done {
			g.cancel = nil
		}
		g.mu.Unlock()
	}()
}

func (g *LeadershipGate) revokeLocked() {
	if g.cancel == nil {
		return
	}

	g.cancel()
	g.cancel = nil
	g.logger.Info("leadership lost, task canceled", "namespace", g.view.Namespace())
}
