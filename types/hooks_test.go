package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRebalanceResult_Changed(t *testing.T) {
	require.False(t, RebalanceResult{}.Changed())
	require.False(t, RebalanceResult{Owned: []string{"a"}}.Changed())
	require.True(t, RebalanceResult{Enabled: []string{"a"}}.Changed())
	require.True(t, RebalanceResult{Disabled: []string{"b"}}.Changed())
}

func TestMember_String(t *testing.T) {
	require.Equal(t, "n1", NewMember("n1", false, false).String())
	require.Equal(t, "n1(leader)", NewMember("n1", true, false).String())
	require.Equal(t, "n1(local)", NewMember("n1", false, true).String())
	require.Equal(t, "n1(leader,local)", NewMember("n1", true, true).String())
}

func TestMemberIDs(t *testing.T) {
	members := []Member{NewMember("b", false, false), NewMember("a", true, true)}
	require.Equal(t, []string{"b", "a"}, MemberIDs(members))
	require.Empty(t, MemberIDs(nil))
}

func TestEventKinds(t *testing.T) {
	require.Equal(t, EventLeadershipChanged, LeadershipChanged{}.Kind())
	require.Equal(t, EventMemberAdded, MemberAdded{}.Kind())
	require.Equal(t, EventMemberRemoved, MemberRemoved{}.Kind())
	require.Equal(t, "leadership_changed", EventLeadershipChanged.String())
	require.Equal(t, "member_added", EventMemberAdded.String())
	require.Equal(t, "member_removed", EventMemberRemoved.String())
	require.Equal(t, "unknown", EventKind(42).String())
}

func TestListenerFuncs_NilFieldsAreSkipped(t *testing.T) {
	var got []string
	l := &ListenerFuncs{
		OnMemberAdded: func(ev MemberAdded) { got = append(got, "added:"+ev.Member.ID) },
	}

	require.NotPanics(t, func() {
		l.LeadershipChanged(LeadershipChanged{})
		l.MemberAdded(MemberAdded{Member: NewMember("n1", false, false)})
		l.MemberRemoved(MemberRemoved{})
	})
	require.Equal(t, []string{"added:n1"}, got)
}
