package types

import "fmt"

// Member is an immutable snapshot of a cluster participant.
//
// The Leader flag is relative to the view that returned the member: the same
// participant can lead one namespace and follow in another.
type Member struct {
	// ID uniquely identifies the participant across the cluster.
	ID string `json:"id"`

	// Leader is true if the participant led the namespace when the snapshot was taken.
	Leader bool `json:"leader"`

	// Local is true if the participant is the current process.
	Local bool `json:"local"`
}

// NewMember creates a member snapshot.
//
// Parameters:
//   - id: Participant identifier
//   - leader: Whether the participant leads the namespace
//   - local: Whether the participant is the current process
//
// Returns:
//   - Member: Immutable member snapshot
func NewMember(id string, leader, local bool) Member {
	return Member{ID: id, Leader: leader, Local: local}
}

// IsLeader reports whether the member led the namespace at observation time.
func (m Member) IsLeader() bool {
	return m.Leader
}

// IsLocal reports whether the member represents the current process.
func (m Member) IsLocal() bool {
	return m.Local
}

// String returns a compact human readable form, e.g. "node-1(leader,local)".
func (m Member) String() string {
	switch {
	case m.Leader && m.Local:
		return fmt.Sprintf("%s(leader,local)", m.ID)
	case m.Leader:
		return fmt.Sprintf("%s(leader)", m.ID)
	case m.Local:
		return fmt.Sprintf("%s(local)", m.ID)
	default:
		return m.ID
	}
}

// MemberIDs extracts the IDs of the given members, preserving order.
func MemberIDs(members []Member) []string {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}

	return ids
}
