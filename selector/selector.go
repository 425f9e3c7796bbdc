// Package selector chooses one cluster service out of several candidates.
//
// A process may be wired with more than one backend (for example an in-memory
// service in development and a NATS service in production). A Selector applies a
// disambiguation policy and returns at most one service. Ambiguity is never an
// error: the selector returns false and logs a warning, and the caller decides
// whether "no service" is acceptable (see Mandatory).
package selector

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"

	"github.com/arloliu/cluster/internal/logger"
	"github.com/arloliu/cluster/types"
)

// Selector picks at most one service from candidates.
//
// Implementations must not modify candidates and must be safe for concurrent use.
type Selector interface {
	Select(candidates []types.Service) (types.Service, bool)
}

// Func adapts a function to the Selector interface.
type Func func(candidates []types.Service) (types.Service, bool)

// Select calls f(candidates).
func (f Func) Select(candidates []types.Service) (types.Service, bool) {
	return f(candidates)
}

// Option configures a built-in selector.
type Option func(*options)

type options struct {
	logger types.Logger
}

// WithLogger sets the logger used to report ambiguous selections.
func WithLogger(l types.Logger) Option {
	return func(o *options) {
		o.logger = logger.OrNop(l)
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: logger.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// Default returns the selector used when none is configured: Single.
func Default(opts ...Option) Selector {
	return Single(opts...)
}

// Single selects the only candidate. With zero or several candidates nothing is
// selected; several candidates are reported as a warning.
func Single(opts ...Option) Selector {
	o := buildOptions(opts)

	return Func(func(candidates []types.Service) (types.Service, bool) {
		switch len(candidates) {
		case 0:
			return nil, false
		case 1:
			return candidates[0], true
		default:
			o.logger.Warn("multiple cluster services found, none selected",
				"candidates", serviceIDs(candidates))

			return nil, false
		}
	})
}

// First selects the first candidate in slice order.
func First() Selector {
	return Func(func(candidates []types.Service) (types.Service, bool) {
		if len(candidates) == 0 {
			return nil, false
		}

		return candidates[0], true
	})
}

// ByOrder selects the candidate with the lowest Order. Candidates sharing the
// lowest order are ambiguous: nothing is selected and a warning is logged.
func ByOrder(opts ...Option) Selector {
	o := buildOptions(opts)

	return Func(func(candidates []types.Service) (types.Service, bool) {
		if len(candidates) == 0 {
			return nil, false
		}

		lowest := slices.MinFunc(candidates, func(a, b types.Service) int {
			return cmp.Compare(a.Order(), b.Order())
		}).Order()

		var group []types.Service
		for _, c := range candidates {
			if c.Order() == lowest {
				group = append(group, c)
			}
		}
		if len(group) == 1 {
			return group[0], true
		}

		o.logger.Warn("multiple cluster services share the lowest order, none selected",
			"order", lowest,
			"candidates", serviceIDs(group))

		return nil, false
	})
}

// ByType selects the first candidate whose dynamic type is T.
//
// Example:
//
//	sel := selector.ByType[*memory.Service]()
func ByType[T types.Service]() Selector {
	return Func(func(candidates []types.Service) (types.Service, bool) {
		for _, c := range candidates {
			if _, ok := c.(T); ok {
				return c, true
			}
		}

		return nil, false
	})
}

// ByAttribute selects the first candidate whose attribute key equals value.
// Values are compared with reflect.DeepEqual.
func ByAttribute(key string, value any) Selector {
	return Func(func(candidates []types.Service) (types.Service, bool) {
		for _, c := range candidates {
			attrs := c.Attributes()
			if attrs == nil {
				continue
			}
			if v, ok := attrs[key]; ok && reflect.DeepEqual(v, value) {
				return c, true
			}
		}

		return nil, false
	})
}

// Lookup applies sel (Default when nil) to candidates.
func Lookup(candidates []types.Service, sel Selector) (types.Service, bool) {
	if sel == nil {
		sel = Default()
	}

	return sel.Select(candidates)
}

// Mandatory is Lookup for callers that cannot proceed without a service.
//
// Returns:
//   - types.Service: The selected service
//   - error: types.ErrNoServiceSelected when nothing was selected
func Mandatory(candidates []types.Service, sel Selector) (types.Service, error) {
	svc, ok := Lookup(candidates, sel)
	if !ok {
		return nil, fmt.Errorf("%d candidates: %w", len(candidates), types.ErrNoServiceSelected)
	}

	return svc, nil
}

func serviceIDs(services []types.Service) []string {
	ids := make([]string, 0, len(services))
	for _, s := range services {
		ids = append(ids, s.ID())
	}

	return ids
}
