package hooks

import (
	"context"

	"github.com/arloliu/cluster/types"
)

// NopHooks implements Hooks with no-op callbacks.
//
// This is the default implementation used when no custom hooks are provided,
// eliminating the need for nil checks throughout the codebase.
type NopHooks struct{}

// Compile-time assertions that NopHooks implements hook callbacks.
var (
	_ func(context.Context, types.RebalanceResult) error = (*NopHooks)(nil).OnRebalanced
	_ func(context.Context, error) error                 = (*NopHooks)(nil).OnError
)

// NewNop creates a new no-op hooks implementation.
//
// Returns:
//   - types.Hooks: Hooks with no-op implementations
func NewNop() types.Hooks {
	h := &NopHooks{}
	return types.Hooks{
		OnRebalanced: h.OnRebalanced,
		OnError:      h.OnError,
	}
}

// Fill returns h with every nil callback replaced by its no-op implementation.
func Fill(h *types.Hooks) types.Hooks {
	nop := NewNop()
	if h == nil {
		return nop
	}

	out := *h
	if out.OnRebalanced == nil {
		out.OnRebalanced = nop.OnRebalanced
	}
	if out.OnError == nil {
		out.OnError = nop.OnError
	}

	return out
}

// OnRebalanced is a no-op implementation.
func (h *NopHooks) OnRebalanced(ctx context.Context, result types.RebalanceResult) error {
	return nil
}

// OnError is a no-op implementation.
func (h *NopHooks) OnError(ctx context.Context, err error) error {
	return nil
}
