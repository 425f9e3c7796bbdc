package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/cluster/internal/logger"
	"github.com/arloliu/cluster/internal/metrics"
	"github.com/arloliu/cluster/internal/natsutil"
	"github.com/arloliu/cluster/types"
)

// Common errors for heartbeat operations.
var (
	ErrNotStarted     = errors.New("publisher not started")
	ErrAlreadyStarted = errors.New("publisher already started")
	ErrNoMemberID     = errors.New("member ID not set")
)

// publishTimeout bounds one background heartbeat write.
const publishTimeout = 5 * time.Second

// Publisher keeps the local member's heartbeat key alive.
//
// A Publisher can be started again after Stop.
type Publisher struct {
	kv       jetstream.KeyValue
	prefix   string
	memberID string
	interval time.Duration
	metrics  types.BackendMetrics
	logger   types.Logger

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a heartbeat publisher.
//
// Parameters:
//   - kv: Membership bucket, with a TTL of ~3x interval
//   - prefix: Namespace key the member key is nested under
//   - memberID: Local member ID
//   - interval: Heartbeat interval (typically 2s)
//
// Returns:
//   - *Publisher: Stopped publisher
func New(kv jetstream.KeyValue, prefix, memberID string, interval time.Duration) *Publisher {
	return &Publisher{
		kv:       kv,
		prefix:   prefix,
		memberID: memberID,
		interval: interval,
		metrics:  metrics.NewNop(),
		logger:   logger.NewNop(),
	}
}

// SetMetrics sets the metrics collector for heartbeat events.
func (p *Publisher) SetMetrics(m types.BackendMetrics) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if m != nil {
		p.metrics = m
	}
}

// SetLogger sets the logger for failed background heartbeats.
func (p *Publisher) SetLogger(l types.Logger) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger = logger.OrNop(l)
}

// Key returns the heartbeat key of the local member.
func (p *Publisher) Key() string {
	return natsutil.JoinKey(p.prefix, natsutil.KeyToken(p.memberID))
}

// MemberID returns the local member ID.
func (p *Publisher) MemberID() string {
	return p.memberID
}

// IsStarted returns whether the publisher is currently running.
func (p *Publisher) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.started
}

// Start publishes the first heartbeat synchronously, then keeps publishing
// every interval until Stop.
//
// Returns:
//   - error: ErrAlreadyStarted, ErrNoMemberID, or the first publish error
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}
	if p.memberID == "" {
		return ErrNoMemberID
	}

	if err := p.publish(ctx); err != nil {
		p.recordLocked(false)
		return fmt.Errorf("failed to publish initial heartbeat: %w", err)
	}
	p.recordLocked(true)

	p.started = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	go p.publishLoop(p.stopCh, p.doneCh)

	return nil
}

// Stop stops publishing and deletes the heartbeat key so peers observe the
// departure without waiting for the TTL.
//
// Returns:
//   - error: ErrNotStarted if not running, or the delete error
func (p *Publisher) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return ErrNotStarted
	}
	p.started = false
	close(p.stopCh)
	done := p.doneCh
	p.mu.Unlock()

	<-done

	err := metrics.Timed(p.metrics, "delete", func() error {
		return p.kv.Delete(ctx, p.Key())
	})
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("stopped but failed to delete heartbeat: %w", err)
	}

	return nil
}

func (p *Publisher) publishLoop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			err := p.publish(ctx)
			cancel()

			p.mu.Lock()
			p.recordLocked(err == nil)
			log := p.logger
			p.mu.Unlock()

			if err != nil {
				log.Warn("heartbeat publish failed", "key", p.Key(), "error", err)
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context) error {
	return metrics.Timed(p.metrics, "put", func() error {
		if _, err := p.kv.Put(ctx, p.Key(), []byte(p.memberID)); err != nil {
			return fmt.Errorf("failed to publish heartbeat for %s: %w", p.memberID, err)
		}

		return nil
	})
}

func (p *Publisher) recordLocked(success bool) {
	p.metrics.RecordHeartbeat(p.memberID, success)
}
