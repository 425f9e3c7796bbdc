package testing

import (
	"slices"
	"sync"

	"github.com/arloliu/cluster/types"
)

// Recorder is an event listener that records every event it receives as a
// compact string:
//
//	"leader:<id>"  leadership moved to <id>
//	"leader:"      the namespace has no leader
//	"+<id>"        member added
//	"-<id>"        member removed
//
// It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []string
}

var (
	_ types.LeadershipListener = (*Recorder)(nil)
	_ types.MembershipListener = (*Recorder)(nil)
)

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// LeadershipChanged records the event.
func (r *Recorder) LeadershipChanged(ev types.LeadershipChanged) {
	if ev.HasLeader {
		r.add("leader:" + ev.Leader.ID)
		return
	}
	r.add("leader:")
}

// MemberAdded records the event.
func (r *Recorder) MemberAdded(ev types.MemberAdded) {
	r.add("+" + ev.Member.ID)
}

// MemberRemoved records the event.
func (r *Recorder) MemberRemoved(ev types.MemberRemoved) {
	r.add("-" + ev.Member.ID)
}

// Events returns a copy of the recorded events in delivery order.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.events)
}

// Contains reports whether event was recorded.
func (r *Recorder) Contains(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Contains(r.events, event)
}

// Last returns the most recent event, empty if none.
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.events) == 0 {
		return ""
	}

	return r.events[len(r.events)-1]
}

// Reset forgets all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = nil
}

func (r *Recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}
