package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/arloliu/cluster/internal/logger"
	"github.com/arloliu/cluster/types"
	"github.com/puzpuzpuz/xsync/v4"
)

// ViewFactory creates the backend view for namespace. The view must be in
// StateCreated; Base starts it when the service is running.
type ViewFactory func(namespace string) (types.View, error)

// entry is one registered view with its reference count. refs is guarded by Base.mu.
type entry struct {
	view types.View
	refs int
}

// Base manages the views of a cluster service.
//
// View lookups from IsLeader, Namespaces and Leaderships are lock-free; view
// creation, release and lifecycle changes are serialized.
type Base struct {
	id      atomic.Pointer[string]
	order   int
	attrs   map[string]any
	factory ViewFactory
	logger  types.Logger

	mu    sync.Mutex
	views *xsync.Map[string, *entry]
	state atomic.Int32 // types.State
}

// Config holds the identity of a service.
type Config struct {
	// ID is the local member ID.
	ID string

	// Order is the selection priority; lower wins.
	Order int

	// Attributes are arbitrary metadata used by selectors.
	Attributes map[string]any

	// Logger receives lifecycle and view errors. Defaults to a no-op logger.
	Logger types.Logger
}

// NewBase creates a service base.
//
// Parameters:
//   - cfg: Service identity
//   - factory: Creates views on demand
//
// Returns:
//   - *Base: Base in StateCreated
func NewBase(cfg Config, factory ViewFactory) *Base {
	b := &Base{
		order:   cfg.Order,
		attrs:   maps.Clone(cfg.Attributes),
		factory: factory,
		logger:  logger.OrNop(cfg.Logger),
		views:   xsync.NewMap[string, *entry](),
	}
	b.id.Store(&cfg.ID)
	b.state.Store(int32(types.StateCreated))

	return b
}

// ID returns the local member ID.
func (b *Base) ID() string {
	return *b.id.Load()
}

// SetID replaces the local member ID. Backends that claim their ID on start call
// it before starting any view.
func (b *Base) SetID(id string) {
	b.id.Store(&id)
}

// Order returns the selection priority.
func (b *Base) Order() int {
	return b.order
}

// Attributes returns a copy of the service attributes.
func (b *Base) Attributes() map[string]any {
	return maps.Clone(b.attrs)
}

// Logger returns the service logger.
func (b *Base) Logger() types.Logger {
	return b.logger
}

// State returns the lifecycle state.
func (b *Base) State() types.State {
	return types.State(b.state.Load())
}

// IsRunning reports whether the service is started.
func (b *Base) IsRunning() bool {
	return b.State() == types.StateStarted
}

// Start marks the service started and starts every registered view.
//
// View start failures are logged and returned joined; the service stays started
// and failed views can be restarted with StartView.
func (b *Base) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.State().CanTransitionTo(types.StateStarted) {
		return fmt.Errorf("service %s: %w", b.ID(), types.ErrAlreadyStarted)
	}
	b.state.Store(int32(types.StateStarted))

	var errs []error
	for _, ns := range b.sortedNamespaces() {
		e, ok := b.views.Load(ns)
		if !ok || e.view.State() == types.StateStarted {
			continue
		}
		if err := e.view.Start(ctx); err != nil {
			b.logger.Error("failed to start cluster view", "namespace", ns, "error", err)
			errs = append(errs, fmt.Errorf("start view %s: %w", ns, err))
		}
	}

	return errors.Join(errs...)
}

// Stop stops every registered view and marks the service stopped.
//
// Views stay registered so a later Start resumes them.
func (b *Base) Stop(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.State().CanTransitionTo(types.StateStopped) {
		return fmt.Errorf("service %s: %w", b.ID(), types.ErrNotStarted)
	}
	b.state.Store(int32(types.StateStopped))

	var errs []error
	for _, ns := range b.sortedNamespaces() {
		e, ok := b.views.Load(ns)
		if !ok || e.view.State() != types.StateStarted {
			continue
		}
		if err := e.view.Stop(ctx); err != nil {
			b.logger.Warn("failed to stop cluster view", "namespace", ns, "error", err)
			errs = append(errs, fmt.Errorf("stop view %s: %w", ns, err))
		}
	}

	return errors.Join(errs...)
}

// View returns the view for namespace, creating it on first use.
//
// Each call takes a reference that must be returned with ReleaseView. A view
// created while the service runs is started before it is returned.
func (b *Base) View(ctx context.Context, namespace string) (types.View, error) {
	if namespace == "" {
		return nil, types.ErrInvalidNamespace
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if e, ok := b.views.Load(namespace); ok {
		e.refs++
		return e.view, nil
	}

	v, err := b.factory(namespace)
	if err != nil {
		return nil, fmt.Errorf("create view %s: %w", namespace, err)
	}
	if b.IsRunning() {
		if err := v.Start(ctx); err != nil {
			return nil, fmt.Errorf("start view %s: %w", namespace, err)
		}
	}
	b.views.Store(namespace, &entry{view: v, refs: 1})
	b.logger.Debug("cluster view created", "namespace", namespace, "member", b.ID())

	return v, nil
}

// AcquireView takes a reference on the registered view for namespace, like
// View, but never creates one. It reports false when no view is registered.
func (b *Base) AcquireView(namespace string) (types.View, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.views.Load(namespace)
	if !ok {
		return nil, false
	}
	e.refs++

	return e.view, true
}

// PreemptiveView is View for backends whose views can be disabled.
func (b *Base) PreemptiveView(ctx context.Context, namespace string) (types.PreemptiveView, error) {
	v, err := b.View(ctx, namespace)
	if err != nil {
		return nil, err
	}

	pv, ok := v.(types.PreemptiveView)
	if !ok {
		_ = b.ReleaseView(ctx, v)
		return nil, fmt.Errorf("view %s: %w", namespace, types.ErrNotPreemptive)
	}

	return pv, nil
}

// ReleaseView returns a reference taken by View. The last release stops and
// unregisters the view.
func (b *Base) ReleaseView(ctx context.Context, v types.View) error {
	if v == nil {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ns := v.Namespace()
	e, ok := b.views.Load(ns)
	if !ok {
		return fmt.Errorf("release view %s: %w", ns, types.ErrViewNotFound)
	}
	if e.view != v {
		return fmt.Errorf("release view %s: %w", ns, types.ErrForeignView)
	}

	e.refs--
	if e.refs > 0 {
		return nil
	}

	b.views.Delete(ns)
	b.logger.Debug("cluster view released", "namespace", ns, "member", b.ID())
	if v.State() == types.StateStarted {
		if err := v.Stop(ctx); err != nil {
			return fmt.Errorf("stop view %s: %w", ns, err)
		}
	}

	return nil
}

// StartView starts the registered view for namespace.
func (b *Base) StartView(ctx context.Context, namespace string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.views.Load(namespace)
	if !ok {
		return fmt.Errorf("start view %s: %w", namespace, types.ErrViewNotFound)
	}
	if e.view.State() == types.StateStarted {
		return nil
	}

	return e.view.Start(ctx)
}

// StopView stops the registered view for namespace without unregistering it.
func (b *Base) StopView(ctx context.Context, namespace string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.views.Load(namespace)
	if !ok {
		return fmt.Errorf("stop view %s: %w", namespace, types.ErrViewNotFound)
	}
	if e.view.State() != types.StateStarted {
		return nil
	}

	return e.view.Stop(ctx)
}

// Lookup returns the registered view for namespace without taking a reference.
func (b *Base) Lookup(namespace string) (types.View, bool) {
	e, ok := b.views.Load(namespace)
	if !ok {
		return nil, false
	}

	return e.view, true
}

// IsLeader reports whether the local member leads namespace. Unknown namespaces
// report false.
func (b *Base) IsLeader(namespace string) bool {
	v, ok := b.Lookup(namespace)
	if !ok {
		return false
	}

	return v.LocalMember().IsLeader()
}

// Namespaces returns the sorted namespaces of the registered views.
func (b *Base) Namespaces() []string {
	return b.sortedNamespaces()
}

// Leaderships maps every registered namespace to whether the local member leads it.
func (b *Base) Leaderships() map[string]bool {
	out := make(map[string]bool, b.views.Size())
	b.views.Range(func(ns string, e *entry) bool {
		out[ns] = e.view.LocalMember().IsLeader()
		return true
	})

	return out
}

// Views returns the registered views sorted by namespace.
func (b *Base) Views() []types.View {
	namespaces := b.sortedNamespaces()
	out := make([]types.View, 0, len(namespaces))
	for _, ns := range namespaces {
		if e, ok := b.views.Load(ns); ok {
			out = append(out, e.view)
		}
	}

	return out
}

func (b *Base) sortedNamespaces() []string {
	namespaces := make([]string, 0, b.views.Size())
	b.views.Range(func(ns string, _ *entry) bool {
		namespaces = append(namespaces, ns)
		return true
	})
	slices.Sort(namespaces)

	return namespaces
}
