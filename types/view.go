package types

import "context"

// View is a live subscription to one namespace's membership and leadership state.
//
// A view is identified by its owning service and namespace. Snapshot accessors
// (Leader, LocalMember, Members) return the state as last observed from the
// backend; they never block on I/O.
//
// Listeners registered while the view is running synchronously receive the
// current state (leader and members) before any later event, so a listener
// never misses the baseline.
type View interface {
	// Service returns the cluster service owning this view.
	Service() Service

	// Namespace returns the namespace (partition) this view observes.
	Namespace() string

	// Leader returns the current leader, if any.
	Leader() (Member, bool)

	// LocalMember returns the member representing the current process.
	LocalMember() Member

	// Members returns every participant currently observed, including the local one.
	Members() []Member

	// AddEventListener registers a listener. Nil listeners are ignored.
	AddEventListener(listener EventListener)

	// RemoveEventListener removes every registration of listener. Nil or unknown
	// listeners are ignored.
	RemoveEventListener(listener EventListener)

	// Start begins observing the namespace.
	Start(ctx context.Context) error

	// Stop stops observing the namespace and relinquishes any leadership.
	Stop(ctx context.Context) error

	// State returns the lifecycle state of the view.
	State() State
}

// PreemptiveView is a view whose ownership can be voluntarily ceded.
//
// Disabling a view vetoes leadership for the local member: if it currently owns
// the namespace, the backend relinquishes it; otherwise the backend stops
// contending. A disabled view remains a member of the namespace.
type PreemptiveView interface {
	View

	// IsDisabled reports whether the local member is vetoed from leadership.
	IsDisabled() bool

	// SetDisabled changes the leadership veto.
	//
	// Parameters:
	//   - ctx: Context for backend operations triggered by the change
	//   - disabled: true to cede and stop contending, false to contend again
	//
	// Returns:
	//   - error: Backend error while relinquishing or re-contending
	SetDisabled(ctx context.Context, disabled bool) error
}

// HealthReporter is optionally implemented by views that can detect that their
// backend is unreachable.
//
// The rebalancer treats a view reporting a non-nil error as unknown state.
type HealthReporter interface {
	// Healthy returns nil if the view's state reflects the backend, or the last
	// error that prevented observing it.
	Healthy() error
}
