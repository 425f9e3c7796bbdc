package cluster

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/cluster/internal/hooks"
	"github.com/arloliu/cluster/internal/logger"
	"github.com/arloliu/cluster/internal/metrics"
	"github.com/arloliu/cluster/types"
)

// Rebalance outcomes reported to metrics and RebalanceResult.Skipped.
const (
	outcomeApplied           = "applied"
	skipNoPartitions         = "no_partitions"
	skipNoMembers            = "no_members"
	skipUnknownMembership    = "unknown_membership"
	skipCanceled             = "canceled"
	metricsOutcomeSkipPrefix = "skipped_"
)

// RebalancingService spreads leadership of many namespaces evenly across the
// members of a preemptive cluster service.
//
// Every member runs the same reconciliation from the same observed state: with
// k namespaces and n members, each member owns floor(k/n) namespaces of the
// first floor(k/n)*n (sorted by name) and at most one of the remaining k mod n.
// A member that owns too many disables the excess views, forcing the backend to
// elect someone else; a member that owns too few re-enables its views so it can
// win contested namespaces; a member at its quota disables the views it does not
// own so it stops contending for them.
//
// The service exposes the full Service surface by delegation. Namespaces are
// registered on the delegate through View or PreemptiveView as usual. Passes
// reference views through the delegate's AcquireView when it has one, so a
// namespace released mid-pass is skipped rather than joined again; a delegate
// that wraps its views must wrap AcquireView too.
type RebalancingService struct {
	types.PreemptiveService

	period  time.Duration
	logger  Logger
	metrics MetricsCollector
	hooks   Hooks

	mu     sync.Mutex // guards cancel and lifecycle transitions
	cancel context.CancelFunc
	state  atomic.Int32 // types.State

	passMu sync.Mutex // serializes reconciliation passes
}

var _ types.PreemptiveService = (*RebalancingService)(nil)

// NewRebalancingService wraps delegate with a periodic rebalancing loop.
//
// Parameters:
//   - delegate: Preemptive service whose views are rebalanced
//   - period: Delay between the end of a pass and the start of the next one
//   - opts: Optional logger, metrics and hooks
//
// Returns:
//   - *RebalancingService: Service in StateCreated
//   - error: ErrDelegateRequired or ErrInvalidPeriod
//
// Example:
//
//	svc, err := cluster.NewRebalancingService(natsSvc, 5*time.Second,
//	    cluster.WithLogger(logger),
//	)
//	for _, ns := range partitions {
//	    v, _ := svc.PreemptiveView(ctx, ns)
//	    v.AddEventListener(handler)
//	}
//	if err := svc.Start(ctx); err != nil {
//	    return err
//	}
func NewRebalancingService(delegate PreemptiveService, period time.Duration, opts ...Option) (*RebalancingService, error) {
	if delegate == nil {
		return nil, ErrDelegateRequired
	}
	if period <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPeriod, period)
	}

	o := applyOptions(opts)
	r := &RebalancingService{
		PreemptiveService: delegate,
		period:            period,
		logger:            logger.OrNop(o.logger),
		metrics:           metrics.OrNop(o.metrics),
		hooks:             hooks.Fill(o.hooks),
	}
	r.state.Store(int32(types.StateCreated))

	return r, nil
}

// Delegate returns the wrapped service.
func (r *RebalancingService) Delegate() PreemptiveService {
	return r.PreemptiveService
}

// Period returns the delay between passes.
func (r *RebalancingService) Period() time.Duration {
	return r.period
}

// State returns the lifecycle state of the rebalancer.
func (r *RebalancingService) State() State {
	return types.State(r.state.Load())
}

// Start starts the delegate and the rebalancing loop. The first pass runs one
// period after Start returns.
func (r *RebalancingService) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.State().CanTransitionTo(types.StateStarted) {
		return ErrAlreadyStarted
	}

	if err := r.PreemptiveService.Start(ctx); err != nil && !errors.Is(err, ErrAlreadyStarted) {
		return fmt.Errorf("failed to start delegate service: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.state.Store(int32(types.StateStarted))
	go r.run(loopCtx)

	r.logger.Info("rebalancer started", "member", r.ID(), "period", r.period)

	return nil
}

// Stop cancels the rebalancing loop and stops the delegate. An in-flight pass
// is abandoned, not awaited.
func (r *RebalancingService) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.State().CanTransitionTo(types.StateStopped) {
		return ErrNotStarted
	}

	r.cancel()
	r.cancel = nil
	r.state.Store(int32(types.StateStopped))

	if err := r.PreemptiveService.Stop(ctx); err != nil && !errors.Is(err, ErrNotStarted) {
		return fmt.Errorf("failed to stop delegate service: %w", err)
	}
	r.logger.Info("rebalancer stopped", "member", r.ID())

	return nil
}

// run schedules one pass per period. The timer is re-armed only after a pass
// completes, so passes never overlap.
func (r *RebalancingService) run(ctx context.Context) {
	timer := time.NewTimer(r.period)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if _, err := r.Reconcile(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn("rebalance pass failed", "member", r.ID(), "error", err)
		}
		timer.Reset(r.period)
	}
}

// viewState is one partition as seen at the start of a pass.
type viewState struct {
	namespace string
	view      types.PreemptiveView
	owned     bool
}

// Reconcile runs one rebalancing pass and reports what it did.
//
// Reconcile may be called directly, for example from tests or an admin endpoint;
// it is serialized with the background loop. Errors on individual partitions are
// logged, passed to Hooks.OnError and leave the partition untouched; the
// returned error is only non-nil when ctx is canceled during the pass.
func (r *RebalancingService) Reconcile(ctx context.Context) (RebalanceResult, error) {
	r.passMu.Lock()
	defer r.passMu.Unlock()

	start := time.Now()
	res, err := r.reconcile(ctx)

	outcome := outcomeApplied
	if res.Skipped != "" {
		outcome = metricsOutcomeSkipPrefix + res.Skipped
	}
	r.metrics.RecordRebalance(outcome, time.Since(start).Seconds())
	r.metrics.RecordClusterSize(res.Members, res.Partitions)

	if err == nil {
		if hookErr := r.hooks.OnRebalanced(ctx, res); hookErr != nil {
			r.logger.Warn("rebalance hook failed", "error", hookErr)
		}
	}

	return res, err
}

func (r *RebalancingService) reconcile(ctx context.Context) (RebalanceResult, error) {
	namespaces := slices.Sorted(slices.Values(r.Namespaces()))
	res := RebalanceResult{Partitions: len(namespaces)}
	if len(namespaces) == 0 {
		res.Skipped = skipNoPartitions
		r.logger.Debug("rebalance skipped: no partitions", "member", r.ID())

		return res, nil
	}

	states, err := r.acquire(ctx, namespaces)
	defer r.release(states)
	if err != nil {
		res.Skipped = skipUnknownMembership
		r.reportError(ctx, err)

		return res, nil
	}
	res.Partitions = len(states)
	if len(states) == 0 {
		res.Skipped = skipNoPartitions
		return res, nil
	}

	n, err := memberCount(states)
	if err != nil {
		res.Skipped = skipUnknownMembership
		r.logger.Warn("rebalance skipped: membership unknown", "member", r.ID(), "error", err)

		return res, nil
	}
	res.Members = n
	if n == 0 {
		res.Skipped = skipNoMembers
		r.logger.Debug("rebalance skipped: no members", "member", r.ID())

		return res, nil
	}

	for _, st := range states {
		if st.owned {
			res.Owned = append(res.Owned, st.namespace)
		}
	}
	r.metrics.RecordOwnedPartitions(len(res.Owned))

	k := len(states)
	quota := k / n
	mainSize := quota * n

	if err := r.rebalanceGroup(ctx, states[:mainSize], quota, &res); err != nil {
		res.Skipped = skipCanceled
		return res, err
	}
	if err := r.rebalanceGroup(ctx, states[mainSize:], 1, &res); err != nil {
		res.Skipped = skipCanceled
		return res, err
	}

	if res.Changed() {
		r.logger.Info("rebalanced partitions",
			"member", r.ID(),
			"members", n,
			"partitions", k,
			"owned", len(res.Owned),
			"enabled", res.Enabled,
			"disabled", res.Disabled,
		)
	}

	return res, nil
}

// viewAcquirer is implemented by services that can reference an existing view
// without creating it.
type viewAcquirer interface {
	AcquireView(namespace string) (types.View, bool)
}

// acquire takes a reference on the view of every namespace. Namespaces released
// since they were listed are left out. Views that are not running or report
// themselves unhealthy make membership unknown.
func (r *RebalancingService) acquire(ctx context.Context, namespaces []string) ([]viewState, error) {
	states := make([]viewState, 0, len(namespaces))
	for _, ns := range namespaces {
		v, ok, err := r.existingView(ctx, ns)
		if err != nil {
			return states, fmt.Errorf("partition %s: %w", ns, err)
		}
		if !ok {
			r.logger.Debug("partition released during pass", "namespace", ns, "member", r.ID())
			continue
		}
		states = append(states, viewState{namespace: ns, view: v})

		if v.State() != types.StateStarted {
			return states, fmt.Errorf("partition %s: view %w", ns, ErrNotStarted)
		}
		if hr, ok := v.(types.HealthReporter); ok {
			if err := hr.Healthy(); err != nil {
				return states, fmt.Errorf("partition %s: %w", ns, err)
			}
		}

		states[len(states)-1].owned = v.LocalMember().IsLeader() && !v.IsDisabled()
	}

	return states, nil
}

// existingView references the preemptive view of ns without registering a new
// one when the delegate supports it.
func (r *RebalancingService) existingView(ctx context.Context, ns string) (types.PreemptiveView, bool, error) {
	acq, ok := r.PreemptiveService.(viewAcquirer)
	if !ok {
		v, err := r.PreemptiveView(ctx, ns)
		return v, err == nil, err
	}

	v, ok := acq.AcquireView(ns)
	if !ok {
		return nil, false, nil
	}
	pv, ok := v.(types.PreemptiveView)
	if !ok {
		_ = r.ReleaseView(ctx, v)
		return nil, false, ErrNotPreemptive
	}

	return pv, true, nil
}

func (r *RebalancingService) release(states []viewState) {
	for _, st := range states {
		if err := r.ReleaseView(context.Background(), st.view); err != nil {
			r.logger.Warn("failed to release view", "namespace", st.namespace, "error", err)
		}
	}
}

// memberCount returns the number of distinct members, which must be identical
// across every partition.
func memberCount(states []viewState) (int, error) {
	var ref []string
	for i, st := range states {
		ids := types.MemberIDs(st.view.Members())
		slices.Sort(ids)
		ids = slices.Compact(ids)

		if i == 0 {
			ref = ids
			continue
		}
		if !slices.Equal(ref, ids) {
			return 0, fmt.Errorf("members of %s %v differ from %s %v",
				st.namespace, ids, states[0].namespace, ref)
		}
	}

	return len(ref), nil
}

// rebalanceGroup moves the local member's share of group towards quota.
func (r *RebalancingService) rebalanceGroup(ctx context.Context, group []viewState, quota int, res *RebalanceResult) error {
	if len(group) == 0 {
		return nil
	}

	owned := 0
	for _, st := range group {
		if st.owned {
			owned++
		}
	}

	switch {
	case owned < quota:
		// Contend for every partition of the group; the backend decides who wins.
		for _, st := range group {
			if err := ctx.Err(); err != nil {
				return err
			}
			if st.view.IsDisabled() {
				r.toggle(ctx, st, false, res)
			}
		}
	case owned > quota:
		// Cede the excess, starting from the end of the group.
		excess := owned - quota
		for i := len(group) - 1; i >= 0 && excess > 0; i-- {
			if err := ctx.Err(); err != nil {
				return err
			}
			if group[i].owned {
				r.toggle(ctx, group[i], true, res)
				excess--
			}
		}
	default:
		// At quota: stop contending for partitions owned by others.
		for _, st := range group {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !st.owned && !st.view.IsDisabled() {
				r.toggle(ctx, st, true, res)
			}
		}
	}

	return nil
}

func (r *RebalancingService) toggle(ctx context.Context, st viewState, disabled bool, res *RebalanceResult) {
	if err := st.view.SetDisabled(ctx, disabled); err != nil {
		r.reportError(ctx, fmt.Errorf("partition %s: set disabled=%t: %w", st.namespace, disabled, err))
		return
	}

	r.metrics.RecordPartitionToggle(disabled)
	if disabled {
		res.Disabled = append(res.Disabled, st.namespace)
	} else {
		res.Enabled = append(res.Enabled, st.namespace)
	}
	r.logger.Debug("partition toggled", "namespace", st.namespace, "disabled", disabled, "member", r.ID())
}

func (r *RebalancingService) reportError(ctx context.Context, err error) {
	r.logger.Warn("rebalance partition error", "member", r.ID(), "error", err)
	if hookErr := r.hooks.OnError(ctx, err); hookErr != nil {
		r.logger.Warn("rebalance error hook failed", "error", hookErr)
	}
}
