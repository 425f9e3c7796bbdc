package natsutil

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/cluster/types"
)

func TestIsConnectivityError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout", nats.ErrTimeout, true},
		{"wrapped disconnect", fmt.Errorf("get: %w", nats.ErrDisconnected), true},
		{"no stream response", jetstream.ErrNoStreamResponse, true},
		{"refused", errors.New("dial tcp: connection refused"), true},
		{"sentinel", types.ErrConnectivity, true},
		{"operation timeout", fmt.Errorf("read: %w", context.DeadlineExceeded), true},
		{"canceled", context.Canceled, false},
		{"key not found", jetstream.ErrKeyNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsConnectivityError(tt.err))
		})
	}
}

func TestClassify(t *testing.T) {
	require.NoError(t, Classify(nil))

	err := Classify(fmt.Errorf("renew: %w", nats.ErrTimeout))
	require.ErrorIs(t, err, types.ErrConnectivity)
	require.ErrorIs(t, err, nats.ErrTimeout)

	plain := errors.New("boom")
	require.Same(t, plain, Classify(plain))
}

func TestKeyToken(t *testing.T) {
	require.Equal(t, "orders-7", KeyToken("orders-7"))
	require.Equal(t, "A_b=c", KeyToken("A_b=c"))

	for _, name := range []string{"", "a.b", "with space", "q*", ">", "café", "_hdeadbeef"} {
		tok := KeyToken(name)
		require.True(t, strings.HasPrefix(tok, "_h"), name)
		require.NotContains(t, tok, ".")
		require.Equal(t, tok, KeyToken(name), "stable")
	}

	require.NotEqual(t, KeyToken("a.b"), KeyToken("a.c"))
}

func TestJoinKey(t *testing.T) {
	require.Equal(t, "ns.member-1", JoinKey("ns", "member-1"))
	require.Equal(t, "ns", JoinKey("ns"))
	require.Empty(t, JoinKey())
}
