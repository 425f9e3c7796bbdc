package types

// State represents the lifecycle state of a view or a cluster service.
//
// States follow a defined progression:
//
//	StateCreated → StateStarted → StateStopped
//
// A stopped view or service may be started again:
//
//	StateStopped → StateStarted
type State int32

const (
	// StateCreated is the initial state before Start is called.
	StateCreated State = iota

	// StateStarted indicates the view or service is running and delivering events.
	StateStarted

	// StateStopped indicates the view or service has been stopped.
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateStarted:
		return "Started"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// CanTransitionTo reports whether moving from s to next is a valid lifecycle transition.
func (s State) CanTransitionTo(next State) bool {
	switch next {
	case StateStarted:
		return s == StateCreated || s == StateStopped
	case StateStopped:
		return s == StateStarted
	default:
		return false
	}
}
