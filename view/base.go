package view

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/arloliu/cluster/internal/logger"
	"github.com/arloliu/cluster/internal/metrics"
	"github.com/arloliu/cluster/types"
)

// Option configures a Base.
type Option func(*Base)

// WithLogger sets the logger used to report listener failures.
func WithLogger(l types.Logger) Option {
	return func(b *Base) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithMetrics sets the collector for dispatch metrics.
func WithMetrics(m types.ViewMetrics) Option {
	return func(b *Base) {
		if m != nil {
			b.metrics = m
		}
	}
}

// registration is one entry of the listener list. The capability fields are
// resolved once at registration so dispatch never inspects listener types.
type registration struct {
	seq        uint64
	listener   types.EventListener
	leadership types.LeadershipListener
	membership types.MembershipListener
}

// Base implements listener management, event dispatch and lifecycle state for a view.
//
// It is safe for concurrent use. The zero value is not usable; create one with NewBase.
type Base struct {
	owner     types.View
	service   types.Service
	namespace string

	mu        sync.RWMutex
	listeners []registration
	seq       uint64 // last registration sequence
	stopSeq   uint64 // seq when the view last stopped

	state atomic.Int32 // types.State

	logger  types.Logger
	metrics types.ViewMetrics
}

// NewBase creates the shared part of a view.
//
// Parameters:
//   - owner: The concrete view embedding the Base; used as event source and as the
//     snapshot provider (Leader, Members) for catch-up delivery
//   - service: Service owning the view
//   - namespace: Namespace observed by the view
//   - opts: Optional logger and metrics
//
// Returns:
//   - *Base: Base in StateCreated
func NewBase(owner types.View, service types.Service, namespace string, opts ...Option) *Base {
	b := &Base{
		owner:     owner,
		service:   service,
		namespace: namespace,
		logger:    logger.NewNop(),
		metrics:   metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.state.Store(int32(types.StateCreated))

	return b
}

// Service returns the service owning the view.
func (b *Base) Service() types.Service {
	return b.service
}

// Namespace returns the namespace observed by the view.
func (b *Base) Namespace() string {
	return b.namespace
}

// State returns the lifecycle state.
func (b *Base) State() types.State {
	return types.State(b.state.Load())
}

// IsRunning reports whether the view is started.
func (b *Base) IsRunning() bool {
	return b.State() == types.StateStarted
}

// MarkStarted transitions the view to StateStarted.
//
// Returns:
//   - error: types.ErrAlreadyStarted if the view is already running
func (b *Base) MarkStarted() error {
	return b.transition(types.StateStarted)
}

// MarkStopped transitions the view to StateStopped.
//
// Returns:
//   - error: types.ErrNotStarted if the view is not running
func (b *Base) MarkStopped() error {
	return b.transition(types.StateStopped)
}

func (b *Base) transition(next types.State) error {
	// The write lock makes the transition atomic with respect to catch-up delivery.
	b.mu.Lock()
	defer b.mu.Unlock()

	cur := b.State()
	if !cur.CanTransitionTo(next) {
		if next == types.StateStarted {
			return fmt.Errorf("view %s: %w", b.namespace, types.ErrAlreadyStarted)
		}

		return fmt.Errorf("view %s: %w", b.namespace, types.ErrNotStarted)
	}
	b.state.Store(int32(next))
	if next == types.StateStopped {
		b.stopSeq = b.seq
	}

	return nil
}

// AddEventListener registers listener.
//
// A nil listener is ignored. If the view is running, the listener receives the
// current leader (if it is a LeadershipListener and a leader exists) and one
// MemberAdded per current member (if it is a MembershipListener) before this
// method returns, and before any later event.
func (b *Base) AddEventListener(listener types.EventListener) {
	if listener == nil {
		return
	}

	reg := registration{listener: listener}
	reg.leadership, _ = listener.(types.LeadershipListener)
	reg.membership, _ = listener.(types.MembershipListener)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	reg.seq = b.seq
	b.listeners = append(b.listeners, reg)

	if !b.IsRunning() {
		return
	}

	if reg.leadership != nil {
		if leader, ok := b.owner.Leader(); ok {
			b.deliver(reg, types.LeadershipChanged{View: b.owner, Leader: leader, HasLeader: true})
		}
	}
	if reg.membership != nil {
		for _, m := range b.owner.Members() {
			b.deliver(reg, types.MemberAdded{View: b.owner, Member: m})
		}
	}
}

// RemoveEventListener removes every registration of listener.
//
// Nil and unknown listeners are ignored, and so are values that cannot be
// compared, such as a struct holding a slice.
func (b *Base) RemoveEventListener(listener types.EventListener) {
	// Value.Comparable looks through interface fields, unlike Type.Comparable.
	if listener == nil || !reflect.ValueOf(listener).Comparable() {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	kept := make([]registration, 0, len(b.listeners))
	for _, reg := range b.listeners {
		if reg.listener != listener {
			kept = append(kept, reg)
		}
	}
	b.listeners = kept
}

// ListenerCount returns the number of registered listeners.
func (b *Base) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.listeners)
}

// Publish applies a backend state change and delivers the resulting events.
//
// mutate runs under the dispatch read lock and returns the events describing
// the change. Because registration takes the write lock, a listener added
// concurrently observes either the state before mutate followed by the events,
// or the state after mutate without them.
//
// mutate must synchronize its own state; concurrent Publish calls may run it
// in parallel.
func (b *Base) Publish(mutate func() []types.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ev := range mutate() {
		b.dispatchLocked(ev, b.seq)
	}
}

// Retire takes the state of a stopped view away from its listeners.
//
// mutate runs as in Publish, but only while the view is stopped, and its events
// reach only the listeners registered before the view stopped. A listener added
// afterwards got no catch-up and is told nothing.
func (b *Base) Retire(mutate func() []types.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.State() != types.StateStopped {
		return
	}
	for _, ev := range mutate() {
		b.dispatchLocked(ev, b.stopSeq)
	}
}

// FireLeadershipChanged delivers a LeadershipChanged event to leadership listeners.
//
// Parameters:
//   - leader: Current leader (ignored when hasLeader is false)
//   - hasLeader: false when the namespace has no leader
func (b *Base) FireLeadershipChanged(leader types.Member, hasLeader bool) {
	b.fire(b.LeadershipEvent(leader, hasLeader))
}

// FireMemberAdded delivers a MemberAdded event to membership listeners.
func (b *Base) FireMemberAdded(member types.Member) {
	b.fire(b.MemberAddedEvent(member))
}

// FireMemberRemoved delivers a MemberRemoved event to membership listeners.
func (b *Base) FireMemberRemoved(member types.Member) {
	b.fire(b.MemberRemovedEvent(member))
}

// LeadershipEvent builds a LeadershipChanged event sourced from this view.
func (b *Base) LeadershipEvent(leader types.Member, hasLeader bool) types.Event {
	if !hasLeader {
		leader = types.Member{}
	}

	return types.LeadershipChanged{View: b.owner, Leader: leader, HasLeader: hasLeader}
}

// MemberAddedEvent builds a MemberAdded event sourced from this view.
func (b *Base) MemberAddedEvent(member types.Member) types.Event {
	return types.MemberAdded{View: b.owner, Member: member}
}

// MemberRemovedEvent builds a MemberRemoved event sourced from this view.
func (b *Base) MemberRemovedEvent(member types.Member) types.Event {
	return types.MemberRemoved{View: b.owner, Member: member}
}

func (b *Base) fire(ev types.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	b.dispatchLocked(ev, b.seq)
}

// dispatchLocked delivers ev in registration order to every interested listener
// registered up to sequence last. Callers hold b.mu (read or write).
func (b *Base) dispatchLocked(ev types.Event, last uint64) {
	delivered := 0
	for _, reg := range b.listeners {
		if reg.seq > last {
			break
		}
		if b.deliver(reg, ev) {
			delivered++
		}
	}
	b.metrics.RecordEventDispatched(ev.Kind(), delivered)
}

// deliver invokes the callback of reg matching ev, isolating panics.
// It reports whether reg is interested in ev.
func (b *Base) deliver(reg registration, ev types.Event) (interested bool) {
	defer func() {
		if r := recover(); r != nil {
			b.metrics.RecordListenerPanic(ev.Kind())
			b.logger.Warn("cluster event listener panicked",
				"namespace", b.namespace,
				"event", ev.Kind().String(),
				"listener", fmt.Sprintf("%T", reg.listener),
				"panic", r,
			)
		}
	}()

	switch e := ev.(type) {
	case types.LeadershipChanged:
		if reg.leadership == nil {
			return false
		}
		interested = true
		reg.leadership.LeadershipChanged(e)
	case types.MemberAdded:
		if reg.membership == nil {
			return false
		}
		interested = true
		reg.membership.MemberAdded(e)
	case types.MemberRemoved:
		if reg.membership == nil {
			return false
		}
		interested = true
		reg.membership.MemberRemoved(e)
	}

	return interested
}
