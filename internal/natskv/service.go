package natskv

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/cluster/internal/kvutil"
	"github.com/arloliu/cluster/internal/logger"
	"github.com/arloliu/cluster/internal/metrics"
	"github.com/arloliu/cluster/internal/natsutil"
	"github.com/arloliu/cluster/internal/service"
	"github.com/arloliu/cluster/internal/stableid"
	"github.com/arloliu/cluster/types"
)

// Service is a preemptive cluster service backed by NATS JetStream KV.
type Service struct {
	*service.Base

	nc      *nats.Conn
	cfg     Config
	metrics types.MetricsCollector

	mu         sync.RWMutex
	election   jetstream.KeyValue
	membership jetstream.KeyValue
	claimer    *stableid.Claimer
}

var _ types.PreemptiveService = (*Service)(nil)

// New creates a NATS KV service. Nothing is contacted before Start.
//
// Parameters:
//   - nc: Connected NATS client
//   - cfg: Service configuration with defaults applied
//
// Returns:
//   - *Service: Service in StateCreated
//   - error: ErrNATSConnectionRequired or ErrInvalidConfig
func New(nc *nats.Conn, cfg Config) (*Service, error) {
	if nc == nil {
		return nil, types.ErrNATSConnectionRequired
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := &Service{
		nc:      nc,
		cfg:     cfg,
		metrics: metrics.OrNop(cfg.Metrics),
	}
	s.Base = service.NewBase(service.Config{
		ID:         cfg.MemberID,
		Order:      cfg.Order,
		Attributes: cfg.Attributes,
		Logger:     logger.OrNop(cfg.Logger),
	}, func(namespace string) (types.View, error) {
		return newView(s, namespace), nil
	})

	return s, nil
}

// Start opens the buckets, claims a member ID if none is configured, and
// starts every registered view.
func (s *Service) Start(ctx context.Context) error {
	if !s.State().CanTransitionTo(types.StateStarted) {
		return fmt.Errorf("service %s: %w", s.ID(), types.ErrAlreadyStarted)
	}
	if err := s.open(ctx); err != nil {
		return err
	}

	return s.Base.Start(ctx)
}

// Stop stops every view and releases a claimed member ID.
func (s *Service) Stop(ctx context.Context) error {
	err := s.Base.Stop(ctx)

	s.mu.Lock()
	claimer := s.claimer
	s.claimer = nil
	s.mu.Unlock()

	if claimer != nil {
		opCtx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
		defer cancel()
		if relErr := claimer.Release(opCtx); relErr != nil {
			s.Logger().Warn("failed to release member ID", "member", claimer.MemberID(), "error", relErr)
		}
	}

	return err
}

// Config returns the service configuration.
func (s *Service) Config() Config {
	return s.cfg
}

func (s *Service) open(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	js, err := jetstream.New(s.nc)
	if err != nil {
		return natsutil.Classify(fmt.Errorf("jetstream: %w", err))
	}

	election, err := kvutil.EnsureKVBucketWithRetry(opCtx, js,
		kvutil.BucketConfig(s.cfg.ElectionBucket, "cluster leadership leases", s.cfg.LeaseTTL), kvutil.DefaultMaxRetries)
	if err != nil {
		return natsutil.Classify(err)
	}
	membership, err := kvutil.EnsureKVBucketWithRetry(opCtx, js,
		kvutil.BucketConfig(s.cfg.MembershipBucket, "cluster membership heartbeats", s.cfg.HeartbeatTTL), kvutil.DefaultMaxRetries)
	if err != nil {
		return natsutil.Classify(err)
	}

	var claimer *stableid.Claimer
	if s.cfg.MemberID == "" {
		ids, err := kvutil.EnsureKVBucketWithRetry(opCtx, js,
			kvutil.BucketConfig(s.cfg.StableIDBucket, "cluster member ID claims", s.cfg.MemberIDTTL), kvutil.DefaultMaxRetries)
		if err != nil {
			return natsutil.Classify(err)
		}

		claimer = stableid.NewClaimer(ids, s.cfg.MemberIDPrefix, s.cfg.MemberIDMin, s.cfg.MemberIDMax,
			s.cfg.MemberIDTTL, s.Logger())
		id, err := claimer.Claim(opCtx)
		if err != nil {
			return fmt.Errorf("%w: %w", types.ErrIDClaimFailed, natsutil.Classify(err))
		}
		if err := claimer.StartRenewal(); err != nil {
			return fmt.Errorf("%w: %w", types.ErrIDClaimFailed, err)
		}
		s.SetID(id)
	}

	s.mu.Lock()
	s.election = election
	s.membership = membership
	s.claimer = claimer
	s.mu.Unlock()

	s.Logger().Info("nats cluster service opened", "member", s.ID(),
		"election_bucket", s.cfg.ElectionBucket, "membership_bucket", s.cfg.MembershipBucket)

	return nil
}

// buckets returns the opened election and membership buckets.
func (s *Service) buckets() (election, membership jetstream.KeyValue, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.election == nil || s.membership == nil {
		return nil, nil, fmt.Errorf("service %s: %w", s.ID(), types.ErrNotStarted)
	}

	return s.election, s.membership, nil
}
