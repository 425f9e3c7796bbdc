package view

import (
	"slices"
	"sync"

	"github.com/arloliu/cluster/types"
)

// Snapshot is the membership of a namespace as last delivered to listeners.
//
// Backends that observe the whole cluster state at once (a full read, a
// broadcast) keep one Snapshot per view and call Update with every observation;
// Update turns the difference into events. The zero value is an empty snapshot.
type Snapshot struct {
	mu      sync.RWMutex
	members []string
	leader  string
}

// Update moves the snapshot to members and leader and delivers the difference
// through b: removals, then additions, then the leadership change. Members
// keep the given order. Updates reaching a view that is not running are dropped.
//
// Parameters:
//   - b: View base that dispatches the events
//   - members: Current member IDs
//   - leader: Current leader ID, empty when there is none
//   - localID: ID of the local member
func (s *Snapshot) Update(b *Base, members []string, leader, localID string) {
	b.Publish(func() []types.Event {
		if !b.IsRunning() {
			return nil
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		var events []types.Event
		for _, id := range s.members {
			if !slices.Contains(members, id) {
				events = append(events, b.MemberRemovedEvent(s.memberLocked(id, localID)))
			}
		}

		oldMembers := s.members
		oldLeader := s.leader
		s.members = slices.Clone(members)
		s.leader = leader

		for _, id := range members {
			if !slices.Contains(oldMembers, id) {
				events = append(events, b.MemberAddedEvent(s.memberLocked(id, localID)))
			}
		}
		if leader != oldLeader {
			events = append(events, b.LeadershipEvent(s.memberLocked(leader, localID), leader != ""))
		}

		return events
	})
}

// Retire empties the snapshot of a view that left its namespace. Listeners
// that saw the state get a MemberRemoved per member, then a LeadershipChanged
// without leader if there was one. A restarted view replays the state from
// scratch. Does nothing once the view runs again.
func (s *Snapshot) Retire(b *Base, localID string) {
	b.Retire(func() []types.Event {
		s.mu.Lock()
		defer s.mu.Unlock()

		events := make([]types.Event, 0, len(s.members)+1)
		for _, id := range s.members {
			events = append(events, b.MemberRemovedEvent(s.memberLocked(id, localID)))
		}
		if s.leader != "" {
			events = append(events, b.LeadershipEvent(types.Member{}, false))
		}
		s.members = nil
		s.leader = ""

		return events
	})
}

// Leader returns the leader, false when there is none.
func (s *Snapshot) Leader(localID string) (types.Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.leader == "" {
		return types.Member{}, false
	}

	return s.memberLocked(s.leader, localID), true
}

// LeaderID returns the leader ID, empty when there is none.
func (s *Snapshot) LeaderID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.leader
}

// Member returns the snapshot of member id.
func (s *Snapshot) Member(id, localID string) types.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.memberLocked(id, localID)
}

// Members returns all members in snapshot order.
func (s *Snapshot) Members(localID string) []types.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Member, 0, len(s.members))
	for _, id := range s.members {
		out = append(out, s.memberLocked(id, localID))
	}

	return out
}

// Contains reports whether id is a member.
func (s *Snapshot) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Contains(s.members, id)
}

func (s *Snapshot) memberLocked(id, localID string) types.Member {
	return types.NewMember(id, id != "" && id == s.leader, id != "" && id == localID)
}
