// Package stableid claims stable member IDs from a bounded pool in NATS KV.
//
// A member that restarts within the claim TTL usually gets a different ID,
// while one that restarts after it can reclaim the lowest free ID again, which
// keeps IDs (and so leader preference and logs) stable across rolling updates.
package stableid

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/cluster/internal/logger"
	"github.com/arloliu/cluster/types"
)

// Common errors returned by the claimer.
var (
	ErrNoAvailableID = errors.New("no available member ID in pool")
	ErrNotClaimed    = errors.New("member ID not claimed")
	ErrAlreadyClosed = errors.New("claimer already closed")
)

// renewTimeout bounds one background renewal.
const renewTimeout = 5 * time.Second

// Claimer handles stable member ID claiming and renewal.
//
// It uses NATS KV Create for atomic claiming; claims expire with the bucket TTL
// unless renewed. Members search the pool from the lowest ID upwards.
type Claimer struct {
	kv     jetstream.KeyValue
	prefix string
	minID  int
	maxID  int
	ttl    time.Duration
	logger types.Logger

	mu       sync.Mutex
	memberID string
	closed   bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewClaimer creates a new stable ID claimer.
//
// Parameters:
//   - kv: NATS KV bucket for stable IDs, with TTL equal to ttl
//   - prefix: Member ID prefix (e.g., "member")
//   - minID: Minimum ID number (inclusive)
//   - maxID: Maximum ID number (inclusive)
//   - ttl: TTL for ID claims
//   - logger: Logger for debug output; nil discards
//
// Returns:
//   - *Claimer: New claimer instance
//
// Example:
//
//	claimer := stableid.NewClaimer(kv, "member", 0, 99, 30*time.Second, logger)
//	memberID, err := claimer.Claim(ctx)
func NewClaimer(kv jetstream.KeyValue, prefix string, minID, maxID int, ttl time.Duration, l types.Logger) *Claimer {
	return &Claimer{
		kv:     kv,
		prefix: prefix,
		minID:  minID,
		maxID:  maxID,
		ttl:    ttl,
		logger: logger.OrNop(l),
	}
}

// Claim claims the lowest free member ID of the pool.
//
// Returns:
//   - string: Claimed member ID (e.g., "member-5")
//   - error: ErrNoAvailableID if the pool is exhausted, context or NATS error
func (c *Claimer) Claim(ctx context.Context) (string, error) {
	c.logger.Debug("stable ID claim starting", "prefix", c.prefix, "min", c.minID, "max", c.maxID, "ttl", c.ttl)

	for id := c.minID; id <= c.maxID; id++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		memberID := fmt.Sprintf("%s-%d", c.prefix, id)
		value := time.Now().Format(time.RFC3339)

		revision, err := c.kv.Create(ctx, memberID, []byte(value))
		if err == nil {
			c.mu.Lock()
			c.memberID = memberID
			c.mu.Unlock()
			c.logger.Info("stable ID claimed", "member_id", memberID, "revision", revision, "attempts", id-c.minID+1)

			return memberID, nil
		}

		if !errors.Is(err, jetstream.ErrKeyExists) {
			c.logger.Error("stable ID claim failed", "member_id", memberID, "error", err)
			return "", fmt.Errorf("failed to claim ID %s: %w", memberID, err)
		}
	}

	c.logger.Error("no available stable IDs in pool", "prefix", c.prefix, "pool_size", c.maxID-c.minID+1)

	return "", ErrNoAvailableID
}

// StartRenewal keeps the claim alive by rewriting it every ttl/3 until Release
// or Close.
//
// Returns:
//   - error: ErrNotClaimed before a successful Claim, ErrAlreadyClosed after Close
func (c *Claimer) StartRenewal() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrAlreadyClosed
	}
	if c.memberID == "" {
		return ErrNotClaimed
	}
	if c.stopCh != nil {
		return nil
	}

	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	go c.renewalLoop(c.memberID, c.stopCh, c.doneCh)

	return nil
}

func (c *Claimer) renewalLoop(memberID string, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(max(c.ttl/3, 10*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), renewTimeout)
			_, err := c.kv.Put(ctx, memberID, []byte(time.Now().Format(time.RFC3339)))
			cancel()
			if err != nil {
				c.logger.Warn("stable ID renewal failed", "member_id", memberID, "error", err)
			}
		}
	}
}

// Release stops renewal and deletes the claim so the ID is free for reuse.
//
// Returns:
//   - error: ErrNotClaimed if nothing is claimed, or the delete error
func (c *Claimer) Release(ctx context.Context) error {
	memberID, err := c.stop()
	if err != nil {
		return err
	}

	if err := c.kv.Delete(ctx, memberID); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete ID %s: %w", memberID, err)
	}

	c.mu.Lock()
	c.memberID = ""
	c.mu.Unlock()

	return nil
}

// Close stops renewal without deleting the claim; the ID stays reserved until
// its TTL expires.
func (c *Claimer) Close() {
	_, _ = c.stop()

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// MemberID returns the currently claimed member ID, empty if none.
func (c *Claimer) MemberID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.memberID
}

func (c *Claimer) stop() (string, error) {
	c.mu.Lock()
	memberID := c.memberID
	stopCh, doneCh := c.stopCh, c.doneCh
	c.stopCh, c.doneCh = nil, nil
	c.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-doneCh
	}
	if memberID == "" {
		return "", ErrNotClaimed
	}

	return memberID, nil
}
