package cluster

import "github.com/arloliu/cluster/types"

// Re-export types from the types package.
//
// Internal packages depend on `types` rather than on the root package, which
// avoids import cycles while still offering `cluster.View`, `cluster.Member`,
// etc. to users.
type (
	State           = types.State
	Member          = types.Member
	Event           = types.Event
	EventKind       = types.EventKind
	RebalanceResult = types.RebalanceResult

	LeadershipChanged = types.LeadershipChanged
	MemberAdded       = types.MemberAdded
	MemberRemoved     = types.MemberRemoved
	ListenerFuncs     = types.ListenerFuncs
)

// Re-export interfaces from the types package for convenience.
type (
	View               = types.View
	PreemptiveView     = types.PreemptiveView
	Service            = types.Service
	PreemptiveService  = types.PreemptiveService
	EventListener      = types.EventListener
	LeadershipListener = types.LeadershipListener
	MembershipListener = types.MembershipListener
	HealthReporter     = types.HealthReporter
	MetricsCollector   = types.MetricsCollector
	Logger             = types.Logger
	Hooks              = types.Hooks
)

// Re-export State constants from the types package.
const (
	StateCreated = types.StateCreated
	StateStarted = types.StateStarted
	StateStopped = types.StateStopped
)

// Re-export EventKind constants from the types package.
const (
	EventLeadershipChanged = types.EventLeadershipChanged
	EventMemberAdded       = types.EventMemberAdded
	EventMemberRemoved     = types.EventMemberRemoved
)
