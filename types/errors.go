package types

import (
	"errors"
	"strings"
)

// Sentinel errors for the cluster library.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// All components should use these sentinel errors for known error conditions
// and wrap external errors with context using fmt.Errorf("%s: %w", msg, err).

// Service errors - Public API errors returned by cluster services.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNATSConnectionRequired is returned when NATS connection is nil.
	ErrNATSConnectionRequired = errors.New("NATS connection is required")

	// ErrZooKeeperConnectionRequired is returned when the ZooKeeper connection is nil.
	ErrZooKeeperConnectionRequired = errors.New("ZooKeeper connection is required")

	// ErrAlreadyStarted is returned when Start is called on a running service or view.
	ErrAlreadyStarted = errors.New("already started")

	// ErrNotStarted is returned when operations require a started service or view.
	ErrNotStarted = errors.New("not started")

	// ErrInvalidNamespace is returned when a namespace name is empty.
	ErrInvalidNamespace = errors.New("invalid namespace")

	// ErrViewNotFound is returned when no view exists for a namespace.
	ErrViewNotFound = errors.New("view not found")

	// ErrForeignView is returned when a view is released on a service that does not own it.
	ErrForeignView = errors.New("view not owned by this service")

	// ErrNotPreemptive is returned when a backend view does not support disabling.
	ErrNotPreemptive = errors.New("view is not preemptive")

	// ErrConnectivity indicates a backend connectivity issue.
	// Views report it through HealthReporter so callers can skip work that
	// relies on up-to-date state.
	ErrConnectivity = errors.New("connectivity issue")

	// ErrIDClaimFailed is returned when stable member ID claiming fails.
	ErrIDClaimFailed = errors.New("failed to claim stable member ID")
)

// Rebalancer errors.
var (
	// ErrDelegateRequired is returned when a rebalancer is built without a delegate service.
	ErrDelegateRequired = errors.New("delegate service is required")

	// ErrInvalidPeriod is returned when the rebalancing period is not positive.
	ErrInvalidPeriod = errors.New("rebalancing period must be positive")
)

// Selector errors.
var (
	// ErrNoServiceSelected is returned by mandatory lookups when no candidate was chosen.
	ErrNoServiceSelected = errors.New("no cluster service selected")
)

// Common errors - Shared errors used across multiple components.
var (
	// ErrNoKeysFound is returned when NATS KV returns no keys (expected condition).
	ErrNoKeysFound = errors.New("no keys found")
)

// IsNoKeysFoundError checks if an error indicates that no keys were found in NATS KV.
//
// This function handles NATS-specific "no keys found" errors which may come as:
//   - Direct error: "nats: no keys found"
//   - Wrapped error: "failed to list KV keys: nats: no keys found"
//
// Parameters:
//   - err: The error to check
//
// Returns:
//   - bool: true if the error indicates no keys were found, false otherwise
func IsNoKeysFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoKeysFound) {
		return true
	}

	return strings.Contains(err.Error(), "no keys found")
}
