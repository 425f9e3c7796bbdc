package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/arloliu/cluster/types"
	"github.com/stretchr/testify/require"
)

func TestNewNop(t *testing.T) {
	hooks := NewNop()

	require.NotNil(t, hooks.OnRebalanced)
	require.NotNil(t, hooks.OnError)
}

func TestNopHooks_Callbacks(t *testing.T) {
	hooks := NewNop()
	ctx := context.Background()

	require.NoError(t, hooks.OnRebalanced(ctx, types.RebalanceResult{Members: 3, Partitions: 10}))
	require.NoError(t, hooks.OnRebalanced(ctx, types.RebalanceResult{}))
	require.NoError(t, hooks.OnError(ctx, errors.New("boom")))
	require.NoError(t, hooks.OnError(ctx, nil))
}

func TestFill(t *testing.T) {
	t.Run("nil hooks", func(t *testing.T) {
		h := Fill(nil)
		require.NotNil(t, h.OnRebalanced)
		require.NotNil(t, h.OnError)
	})

	t.Run("keeps custom callbacks", func(t *testing.T) {
		called := false
		h := Fill(&types.Hooks{
			OnRebalanced: func(context.Context, types.RebalanceResult) error {
				called = true
				return nil
			},
		})

		require.NotNil(t, h.OnError)
		require.NoError(t, h.OnRebalanced(context.Background(), types.RebalanceResult{}))
		require.True(t, called)
	})
}
