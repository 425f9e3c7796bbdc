package types

// EventListener is a value registered on a view to receive cluster events.
//
// A listener opts into event categories by implementing LeadershipListener,
// MembershipListener, or both. Values implementing neither are accepted and
// never notified.
//
// RemoveEventListener matches listeners with ==. Register pointers: a value
// that cannot be compared, such as a func or a struct holding a slice, is
// accepted but can never be removed.
type EventListener any

// LeadershipListener receives leadership changes.
type LeadershipListener interface {
	// LeadershipChanged is called with the current leader of the namespace.
	LeadershipChanged(ev LeadershipChanged)
}

// MembershipListener receives membership changes.
type MembershipListener interface {
	// MemberAdded is called when a participant joins the namespace.
	MemberAdded(ev MemberAdded)

	// MemberRemoved is called when a participant leaves the namespace.
	MemberRemoved(ev MemberRemoved)
}

// ListenerFuncs adapts plain functions to the listener interfaces.
//
// Always register a *ListenerFuncs so the registration can be removed later.
// Nil fields are skipped.
//
// Example:
//
//	l := &types.ListenerFuncs{
//	    OnLeadershipChanged: func(ev types.LeadershipChanged) {
//	        log.Printf("leader of %s is %s", ev.View.Namespace(), ev.Leader.ID)
//	    },
//	}
//	view.AddEventListener(l)
//	defer view.RemoveEventListener(l)
type ListenerFuncs struct {
	OnLeadershipChanged func(ev LeadershipChanged)
	OnMemberAdded       func(ev MemberAdded)
	OnMemberRemoved     func(ev MemberRemoved)
}

var (
	_ LeadershipListener = (*ListenerFuncs)(nil)
	_ MembershipListener = (*ListenerFuncs)(nil)
)

// LeadershipChanged implements LeadershipListener.
func (f *ListenerFuncs) LeadershipChanged(ev LeadershipChanged) {
	if f.OnLeadershipChanged != nil {
		f.OnLeadershipChanged(ev)
	}
}

// MemberAdded implements MembershipListener.
func (f *ListenerFuncs) MemberAdded(ev MemberAdded) {
	if f.OnMemberAdded != nil {
		f.OnMemberAdded(ev)
	}
}

// MemberRemoved implements MembershipListener.
func (f *ListenerFuncs) MemberRemoved(ev MemberRemoved) {
	if f.OnMemberRemoved != nil {
		f.OnMemberRemoved(ev)
	}
}
