package election

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/cluster/internal/metrics"
	"github.com/arloliu/cluster/types"
)

// Common errors for lease operations.
var (
	ErrNotHeld        = errors.New("lease not held")
	ErrLeadershipLost = errors.New("leadership was lost")
)

// Lease is the local member's claim on one namespace's lease key.
//
// All fields are protected by mu for thread-safe concurrent access.
type Lease struct {
	kv       jetstream.KeyValue
	key      string
	memberID string
	metrics  types.BackendMetrics

	mu       sync.RWMutex
	held     bool
	revision uint64
}

// NewLease creates a lease handle for key on behalf of memberID.
//
// Parameters:
//   - kv: Election bucket; its TTL is the lease duration
//   - key: Lease key of the namespace
//   - memberID: Local member ID stored in the lease value
//
// Returns:
//   - *Lease: Handle that does not hold the lease yet
func NewLease(kv jetstream.KeyValue, key, memberID string) *Lease {
	return &Lease{
		kv:       kv,
		key:      key,
		memberID: memberID,
		metrics:  metrics.NewNop(),
	}
}

// SetMetrics sets the collector that receives KV operation latencies.
func (l *Lease) SetMetrics(m types.BackendMetrics) {
	if m == nil {
		return
	}
	l.metrics = m
}

// Key returns the lease key.
func (l *Lease) Key() string {
	return l.key
}

// Held reports whether the local member holds the lease as of the last operation.
func (l *Lease) Held() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.held
}

// Acquire takes the lease if it is vacant, or renews it if already held.
//
// Returns:
//   - bool: true if the lease is held after the call
//   - error: KV error; a lease held by another member is not an error
func (l *Lease) Acquire(ctx context.Context) (bool, error) {
	if l.Held() {
		err := l.Renew(ctx)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, ErrLeadershipLost) {
			return true, err
		}
	}

	var revision uint64
	err := metrics.Timed(l.metrics, "create", func() error {
		var err error
		revision, err = l.kv.Create(ctx, l.key, l.value())
		return err
	})
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return false, nil
		}

		return false, fmt.Errorf("failed to create lease key %s: %w", l.key, err)
	}

	l.set(true, revision)

	return true, nil
}

// Renew extends the held lease.
//
// Uses Update with the held revision; if another member took the lease over
// after it expired, the update fails and the lease is marked lost.
//
// Returns:
//   - error: ErrNotHeld, ErrLeadershipLost (wrapping the KV error), or a
//     transient KV error that leaves the lease marked held
func (l *Lease) Renew(ctx context.Context) error {
	l.mu.RLock()
	held, revision := l.held, l.revision
	l.mu.RUnlock()

	if !held {
		return ErrNotHeld
	}

	var next uint64
	err := metrics.Timed(l.metrics, "update", func() error {
		var err error
		next, err = l.kv.Update(ctx, l.key, l.value(), revision)
		return err
	})
	if err != nil {
		if isRevisionMismatch(err) {
			l.set(false, 0)
			return fmt.Errorf("%w: %w", ErrLeadershipLost, err)
		}

		return fmt.Errorf("failed to renew lease %s: %w", l.key, err)
	}

	l.set(true, next)

	return nil
}

// Release gives the lease up so another member can take it immediately.
// Releasing a lease that is not held is a no-op.
func (l *Lease) Release(ctx context.Context) error {
	l.mu.RLock()
	held, revision := l.held, l.revision
	l.mu.RUnlock()

	if !held {
		return nil
	}

	err := metrics.Timed(l.metrics, "delete", func() error {
		return l.kv.Delete(ctx, l.key, jetstream.LastRevision(revision))
	})
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) && !isRevisionMismatch(err) {
		return fmt.Errorf("failed to delete lease key %s: %w", l.key, err)
	}

	l.set(false, 0)

	return nil
}

// Forget drops local ownership without touching the store. Used after the
// lease was observed to belong to someone else.
func (l *Lease) Forget() {
	l.set(false, 0)
}

// Holder reads the lease key and returns the holding member ID.
//
// Returns:
//   - string: Holder member ID
//   - bool: false when the lease is vacant
//   - error: KV error
func Holder(ctx context.Context, kv jetstream.KeyValue, key string) (string, bool, error) {
	entry, err := kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("failed to get lease key %s: %w", key, err)
	}

	id, ok := ParseValue(entry.Value())
	if !ok {
		return "", false, nil
	}

	return id, true, nil
}

// ParseValue extracts the member ID from a lease value.
func ParseValue(value []byte) (string, bool) {
	s := string(value)
	i := strings.LastIndexByte(s, ':')
	if i <= 0 {
		return "", false
	}
	if _, err := strconv.ParseInt(s[i+1:], 10, 64); err != nil {
		return "", false
	}

	return s[:i], true
}

func (l *Lease) value() []byte {
	return fmt.Appendf(nil, "%s:%d", l.memberID, time.Now().Unix())
}

func (l *Lease) set(held bool, revision uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.held = held
	l.revision = revision
}

// isRevisionMismatch reports whether err comes from a revision-guarded write
// that lost against another writer or an expired key.
func isRevisionMismatch(err error) bool {
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}

	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence {
		return true
	}

	return strings.Contains(err.Error(), "wrong last sequence")
}
