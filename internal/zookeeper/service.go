package zookeeper

import (
	"context"
	"fmt"

	"github.com/arloliu/cluster/internal/logger"
	"github.com/arloliu/cluster/internal/metrics"
	"github.com/arloliu/cluster/internal/service"
	"github.com/arloliu/cluster/types"
)

// Service is a preemptive cluster service backed by ZooKeeper.
//
// The connection belongs to the caller; Stop leaves it open.
type Service struct {
	*service.Base

	conn    Conn
	cfg     Config
	metrics types.MetricsCollector
}

var _ types.PreemptiveService = (*Service)(nil)

// New creates a ZooKeeper service. Nothing is written before Start.
func New(conn Conn, cfg Config) (*Service, error) {
	if conn == nil {
		return nil, types.ErrZooKeeperConnectionRequired
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := &Service{
		conn:    conn,
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

// Start creates the root path and starts every registered view.
func (s *Service) Start(ctx context.Context) error {
	if !s.State().CanTransitionTo(types.StateStarted) {
		return fmt.Errorf("service %s: %w", s.ID(), types.ErrAlreadyStarted)
	}

	err := metrics.Timed(s.metrics, "create", func() error {
		return ensurePath(s.conn, s.cfg.RootPath)
	})
	if err != nil {
		return Classify(fmt.Errorf("create root %s: %w", s.cfg.RootPath, err))
	}

	s.Logger().Info("zookeeper cluster service opened", "member", s.ID(), "root", s.cfg.RootPath)

	return s.Base.Start(ctx)
}

// Config returns the service configuration.
func (s *Service) Config() Config {
	return s.cfg
}
