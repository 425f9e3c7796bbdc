package types

// EventKind identifies the category of a cluster event.
type EventKind int

const (
	// EventLeadershipChanged is fired when the leader of a namespace changes or is lost.
	EventLeadershipChanged EventKind = iota

	// EventMemberAdded is fired when a participant joins a namespace.
	EventMemberAdded

	// EventMemberRemoved is fired when a participant leaves a namespace.
	EventMemberRemoved
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventLeadershipChanged:
		return "leadership_changed"
	case EventMemberAdded:
		return "member_added"
	case EventMemberRemoved:
		return "member_removed"
	default:
		return "unknown"
	}
}

// Event is a cluster event constructed by a view when backend state changes.
//
// The concrete types are LeadershipChanged, MemberAdded and MemberRemoved; the
// set is closed, so a type switch over them is exhaustive.
type Event interface {
	// Kind returns the event category.
	Kind() EventKind

	// Source returns the view that produced the event.
	Source() View

	isEvent()
}

// LeadershipChanged reports the current leader of the source view's namespace.
//
// HasLeader is false when the namespace has no leader; Leader is then the zero Member.
type LeadershipChanged struct {
	View      View
	Leader    Member
	HasLeader bool
}

// MemberAdded reports a participant joining the source view's namespace.
type MemberAdded struct {
	View   View
	Member Member
}

// MemberRemoved reports a participant leaving the source view's namespace.
type MemberRemoved struct {
	View   View
	Member Member
}

// Kind implements Event.
func (LeadershipChanged) Kind() EventKind { return EventLeadershipChanged }

// Source implements Event.
func (e LeadershipChanged) Source() View { return e.View }

func (LeadershipChanged) isEvent() {}

// Kind implements Event.
func (MemberAdded) Kind() EventKind { return EventMemberAdded }

// Source implements Event.
func (e MemberAdded) Source() View { return e.View }

func (MemberAdded) isEvent() {}

// Kind implements Event.
func (MemberRemoved) Kind() EventKind { return EventMemberRemoved }

// Source implements Event.
func (e MemberRemoved) Source() View { return e.View }

func (MemberRemoved) isEvent() {}
