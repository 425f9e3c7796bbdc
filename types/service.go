package types

import "context"

// Service owns the views of a cluster backend, one per namespace.
//
// Views are created on demand by View and reference counted: each call to View
// must be paired with ReleaseView. A view is stopped and dropped when its last
// reference is released.
type Service interface {
	// ID returns the identifier of the local member in this service.
	ID() string

	// Order returns the selection priority; lower values are preferred.
	Order() int

	// Attributes returns metadata used by attribute based selection.
	Attributes() map[string]any

	// Start starts the service and every view created so far.
	Start(ctx context.Context) error

	// Stop stops every view and the service.
	Stop(ctx context.Context) error

	// State returns the lifecycle state of the service.
	State() State

	// View returns the view for namespace, creating it if needed. The view is
	// started if the service is running.
	View(ctx context.Context, namespace string) (View, error)

	// ReleaseView releases a reference obtained from View.
	ReleaseView(ctx context.Context, view View) error

	// StartView starts the view of namespace if it exists.
	StartView(ctx context.Context, namespace string) error

	// StopView stops the view of namespace if it exists, without releasing it.
	StopView(ctx context.Context, namespace string) error

	// IsLeader reports whether the local member leads namespace. It does not
	// create a view.
	IsLeader(namespace string) bool

	// Namespaces returns the namespaces with a live view.
	Namespaces() []string

	// Leaderships maps each namespace with a live view to the local leadership flag.
	Leaderships() map[string]bool
}

// PreemptiveService is a service whose views can be disabled to cede ownership.
type PreemptiveService interface {
	Service

	// PreemptiveView returns the preemptive view for namespace, creating it if needed.
	// The same reference counting rules as View apply.
	PreemptiveView(ctx context.Context, namespace string) (PreemptiveView, error)
}
