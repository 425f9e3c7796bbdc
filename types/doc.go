// Package types provides core type definitions and interfaces for the cluster library.
//
// This package contains shared types that are used across multiple packages in the
// library. By keeping these types in a separate package, we avoid import cycles
// between the root cluster package, the view/selector packages and the backends.
//
// Key types:
//   - Member: Immutable snapshot of a cluster participant
//   - Event: Leadership and membership event taxonomy
//   - View: Live, namespace-scoped subscription to membership/leadership state
//   - Service: Owner of views, one per namespace
//   - PreemptiveView / PreemptiveService: Views that can voluntarily cede ownership
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
