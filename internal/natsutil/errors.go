// Package natsutil holds NATS helpers shared by the NATS KV backend.
package natsutil

import (
	"context"
	"errors"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/cluster/types"
)

var connectivityErrors = []error{
	types.ErrConnectivity,
	context.DeadlineExceeded,
	nats.ErrTimeout,
	nats.ErrNoServers,
	nats.ErrDisconnected,
	nats.ErrConnectionClosed,
	nats.ErrConnectionReconnecting,
	jetstream.ErrNoStreamResponse,
}

// IsConnectivityError reports whether err comes from an unreachable or slow
// server rather than from the request itself. An operation that ran out of
// its operation timeout counts as unreachable.
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range connectivityErrors {
		if errors.Is(err, target) {
			return true
		}
	}

	msg := err.Error()

	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "i/o timeout")
}

// Classify joins connectivity errors with types.ErrConnectivity so callers can
// test them with errors.Is. Other errors are returned unchanged.
func Classify(err error) error {
	if err == nil || errors.Is(err, types.ErrConnectivity) || !IsConnectivityError(err) {
		return err
	}

	return errors.Join(types.ErrConnectivity, err)
}
