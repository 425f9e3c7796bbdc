// Package logger holds the loggers components fall back to: a no-op logger
// for production defaults and a testing.TB logger for tests.
package logger

import "github.com/arloliu/cluster/types"

// NopLogger discards every message. It is the default logger of services,
// views and rebalancers, so components log without nil checks.
//
// Example:
//
//	svc, _ := cluster.NewNATSService(&cfg, nc, cluster.WithLogger(logger.NewNop()))
type NopLogger struct{}

var _ types.Logger = (*NopLogger)(nil)

// NewNop returns a logger that discards everything.
func NewNop() *NopLogger {
	return &NopLogger{}
}

// OrNop returns l, or a NopLogger when l is nil.
func OrNop(l types.Logger) types.Logger {
	if l == nil {
		return NewNop()
	}

	return l
}

func (n *NopLogger) Debug(string, ...any) {}
func (n *NopLogger) Info(string, ...any)  {}
func (n *NopLogger) Warn(string, ...any)  {}
func (n *NopLogger) Error(string, ...any) {}
