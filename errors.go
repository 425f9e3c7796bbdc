package cluster

import "github.com/arloliu/cluster/types"

// Sentinel errors re-exported from the types package.
var (
	ErrInvalidConfig               = types.ErrInvalidConfig
	ErrNATSConnectionRequired      = types.ErrNATSConnectionRequired
	ErrZooKeeperConnectionRequired = types.ErrZooKeeperConnectionRequired
	ErrAlreadyStarted              = types.ErrAlreadyStarted
	ErrNotStarted                  = types.ErrNotStarted
	ErrInvalidNamespace            = types.ErrInvalidNamespace
	ErrViewNotFound                = types.ErrViewNotFound
	ErrForeignView                 = types.ErrForeignView
	ErrNotPreemptive               = types.ErrNotPreemptive
	ErrConnectivity                = types.ErrConnectivity
	ErrIDClaimFailed               = types.ErrIDClaimFailed
	ErrDelegateRequired            = types.ErrDelegateRequired
	ErrInvalidPeriod               = types.ErrInvalidPeriod
	ErrNoServiceSelected           = types.ErrNoServiceSelected
)
