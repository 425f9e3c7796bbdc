package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/arloliu/cluster/internal/logger"
	"github.com/arloliu/cluster/types"
)

// namespaceState is the authoritative state of one namespace.
type namespaceState struct {
	members []*View // join order
	leader  *View
}

func (s *namespaceState) memberIDs() []string {
	ids := make([]string, 0, len(s.members))
	for _, m := range s.members {
		ids = append(ids, m.svc.ID())
	}

	return ids
}

func (s *namespaceState) leaderID() string {
	if s.leader == nil {
		return ""
	}

	return s.leader.svc.ID()
}

// Cluster is the shared coordination state of in-process services.
//
// The zero value is not usable; create one with NewCluster and release it with Close.
type Cluster struct {
	mu         sync.Mutex
	namespaces map[string]*namespaceState
	services   map[string]*Service

	dispatch *dispatcher
	logger   types.Logger
}

// ClusterOption configures a Cluster.
type ClusterOption func(*Cluster)

// WithClusterLogger sets the logger used for cluster-level diagnostics.
func WithClusterLogger(l types.Logger) ClusterOption {
	return func(c *Cluster) {
		c.logger = logger.OrNop(l)
	}
}

// NewCluster creates an empty cluster and starts its event dispatcher.
func NewCluster(opts ...ClusterOption) *Cluster {
	c := &Cluster{
		namespaces: make(map[string]*namespaceState),
		services:   make(map[string]*Service),
		dispatch:   newDispatcher(),
		logger:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewService creates a service identified by id.
//
// Parameters:
//   - id: Member ID, unique within the cluster
//   - opts: Order, attributes, logger and metrics
//
// Returns:
//   - *Service: Service in StateCreated
//   - error: types.ErrInvalidConfig when id is empty or already used
func (c *Cluster) NewService(id string, opts ...Option) (*Service, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: service id is required", types.ErrInvalidConfig)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.services[id]; ok {
		return nil, fmt.Errorf("%w: duplicate service id %q", types.ErrInvalidConfig, id)
	}

	s := newService(c, id, opts...)
	c.services[id] = s

	return s, nil
}

// Sync waits until every event caused by earlier state changes was delivered.
// It must not be called from a listener callback.
func (c *Cluster) Sync(ctx context.Context) error {
	return c.dispatch.barrier(ctx)
}

// Close delivers pending events and stops the dispatcher. Later state changes
// are applied but no longer delivered.
func (c *Cluster) Close() {
	c.dispatch.close()
}

// Leader returns the current leader of namespace.
func (c *Cluster) Leader(namespace string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.namespaces[namespace]
	if !ok || st.leader == nil {
		return "", false
	}

	return st.leaderID(), true
}

// Members returns the member IDs of namespace in join order.
func (c *Cluster) Members(namespace string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.namespaces[namespace]
	if !ok {
		return nil
	}

	return st.memberIDs()
}

// join adds v to its namespace and notifies every member.
func (c *Cluster) join(v *View) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.namespaceLocked(v.Namespace())
	if slices.Contains(st.members, v) {
		return
	}
	st.members = append(st.members, v)
	c.electLocked(v.Namespace(), st)
	c.broadcastLocked(st, st.members)
}

// leave removes v from its namespace, hands over leadership and notifies the
// remaining members. v's own listeners are told that its state is gone.
func (c *Cluster) leave(v *View) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.namespaceLocked(v.Namespace())
	idx := slices.Index(st.members, v)
	if idx < 0 {
		return
	}
	st.members = slices.Delete(st.members, idx, idx+1)
	if st.leader == v {
		st.leader = nil
	}
	c.electLocked(v.Namespace(), st)
	c.broadcastLocked(st, st.members)
	c.dispatch.submit(v.retire)
}

// setDisabled updates v's contention flag and re-runs the election.
func (c *Cluster) setDisabled(v *View, disabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v.disabled.Swap(disabled) == disabled {
		return
	}

	st := c.namespaceLocked(v.Namespace())
	if !slices.Contains(st.members, v) {
		return
	}
	if disabled && st.leader == v {
		st.leader = nil
	}
	c.electLocked(v.Namespace(), st)
	c.broadcastLocked(st, st.members)
}

func (c *Cluster) namespaceLocked(namespace string) *namespaceState {
	st, ok := c.namespaces[namespace]
	if !ok {
		st = &namespaceState{}
		c.namespaces[namespace] = st
	}

	return st
}

// electLocked fills a vacant leadership with the first enabled member in join order.
func (c *Cluster) electLocked(namespace string, st *namespaceState) {
	if st.leader != nil {
		return
	}
	for _, m := range st.members {
		if !m.disabled.Load() {
			st.leader = m
			break
		}
	}
	if st.leader == nil {
		return
	}

	leader := st.leaderID()
	c.logger.Debug("memory cluster election", "namespace", namespace, "leader", leader)
	for _, m := range st.members {
		m.svc.metrics.RecordLeadershipChange(namespace, leader)
	}
}

// broadcastLocked queues the current state of st for every view in targets.
func (c *Cluster) broadcastLocked(st *namespaceState, targets []*View) {
	members := st.memberIDs()
	leader := st.leaderID()
	for _, v := range targets {
		c.dispatch.submit(func() { v.apply(members, leader) })
	}
}
