package memory

import (
	"context"
	"sync/atomic"

	"github.com/arloliu/cluster/types"
	"github.com/arloliu/cluster/view"
)

// View is the in-memory view of one namespace.
//
// Leader, LocalMember and Members return the state as of the last delivered
// event, so a listener always observes a snapshot consistent with the events it
// received.
type View struct {
	*view.Base

	svc      *Service
	cluster  *Cluster
	disabled atomic.Bool
	snap     view.Snapshot
}

var _ types.PreemptiveView = (*View)(nil)

func newView(svc *Service, namespace string) *View {
	v := &View{svc: svc, cluster: svc.cluster}
	v.Base = view.NewBase(v, svc, namespace,
		view.WithLogger(svc.Logger()),
		view.WithMetrics(svc.metrics),
	)

	return v
}

// Start joins the namespace.
func (v *View) Start(_ context.Context) error {
	if err := v.MarkStarted(); err != nil {
		return err
	}
	v.cluster.join(v)

	return nil
}

// Stop leaves the namespace. Leadership, if held, passes to the next enabled
// member. Listeners get the departure of every member and the loss of the
// leader, so a listener kept across a restart sees each member added once.
func (v *View) Stop(_ context.Context) error {
	if err := v.MarkStopped(); err != nil {
		return err
	}
	v.cluster.leave(v)

	return nil
}

// IsDisabled reports whether the view is excluded from leadership contention.
func (v *View) IsDisabled() bool {
	return v.disabled.Load()
}

// SetDisabled excludes the view from (or readmits it to) leadership contention.
// Disabling the leader hands leadership to the next enabled member. The change
// is visible through Leader and Members once the resulting events are delivered.
func (v *View) SetDisabled(_ context.Context, disabled bool) error {
	v.cluster.setDisabled(v, disabled)
	return nil
}

// Leader returns the current leader.
func (v *View) Leader() (types.Member, bool) {
	return v.snap.Leader(v.svc.ID())
}

// LocalMember returns the local member.
func (v *View) LocalMember() types.Member {
	return v.snap.Member(v.svc.ID(), v.svc.ID())
}

// Members returns the members in join order.
func (v *View) Members() []types.Member {
	return v.snap.Members(v.svc.ID())
}

// apply moves the snapshot to the given cluster state. Runs on the dispatcher goroutine.
func (v *View) apply(members []string, leader string) {
	v.snap.Update(v.Base, members, leader, v.svc.ID())
}

// retire tells the listeners that the view left its namespace. Runs on the
// dispatcher goroutine.
func (v *View) retire() {
	v.snap.Retire(v.Base, v.svc.ID())
}
