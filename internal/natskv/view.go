package natskv

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/cluster/internal/election"
	"github.com/arloliu/cluster/internal/heartbeat"
	"github.com/arloliu/cluster/internal/kvutil"
	"github.com/arloliu/cluster/internal/metrics"
	"github.com/arloliu/cluster/internal/natsutil"
	"github.com/arloliu/cluster/types"
	"github.com/arloliu/cluster/view"
)

var errNotSynced = errors.New("membership not observed yet")

// View is the NATS KV view of one namespace.
type View struct {
	*view.Base

	svc      *Service
	nsKey    string
	disabled atomic.Bool
	snap     view.Snapshot

	// leaseMu serializes lease operations between the loop and SetDisabled.
	leaseMu sync.Mutex
	lease   *election.Lease

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	kick   chan struct{}
	pub    *heartbeat.Publisher

	healthMu sync.RWMutex
	health   error

	// knownKeys is the membership key set of the last read; loop goroutine only.
	knownKeys map[string]struct{}
}

var (
	_ types.PreemptiveView = (*View)(nil)
	_ types.HealthReporter = (*View)(nil)
)

func newView(svc *Service, namespace string) *View {
	v := &View{
		svc:   svc,
		nsKey: natsutil.KeyToken(namespace),
	}
	v.Base = view.NewBase(v, svc, namespace,
		view.WithLogger(svc.Logger()),
		view.WithMetrics(svc.metrics),
	)

	return v
}

// Start publishes the local heartbeat and starts the background loop. The
// first membership read and lease attempt happen on the loop; Healthy reports
// an error until the read succeeded.
func (v *View) Start(ctx context.Context) error {
	if err := v.MarkStarted(); err != nil {
		return err
	}
	if err := v.start(ctx); err != nil {
		_ = v.MarkStopped()
		return err
	}

	return nil
}

func (v *View) start(ctx context.Context) error {
	electionKV, membershipKV, err := v.svc.buckets()
	if err != nil {
		return err
	}

	cfg := v.svc.cfg
	id := v.svc.ID()

	opCtx, cancel := context.WithTimeout(ctx, cfg.OperationTimeout)
	defer cancel()

	pub := heartbeat.New(membershipKV, v.nsKey, id, cfg.HeartbeatInterval)
	pub.SetLogger(v.svc.Logger())
	pub.SetMetrics(v.svc.metrics)
	if err := pub.Start(opCtx); err != nil {
		return natsutil.Classify(fmt.Errorf("view %s: %w", v.Namespace(), err))
	}

	runCtx, stop := context.WithCancel(context.Background())
	memberWatch, err := membershipKV.Watch(runCtx, v.nsKey+".*", jetstream.UpdatesOnly())
	if err != nil {
		stop()
		_ = pub.Stop(opCtx)
		return natsutil.Classify(fmt.Errorf("watch membership of %s: %w", v.Namespace(), err))
	}
	leaseWatch, err := electionKV.Watch(runCtx, v.nsKey, jetstream.UpdatesOnly())
	if err != nil {
		stop()
		_ = memberWatch.Stop()
		_ = pub.Stop(opCtx)
		return natsutil.Classify(fmt.Errorf("watch lease of %s: %w", v.Namespace(), err))
	}

	lease := election.NewLease(electionKV, v.nsKey, id)
	lease.SetMetrics(v.svc.metrics)

	v.leaseMu.Lock()
	v.lease = lease
	v.leaseMu.Unlock()

	v.setHealth(errNotSynced)

	done := make(chan struct{})
	kick := make(chan struct{}, 1)
	v.runMu.Lock()
	v.cancel, v.done, v.kick, v.pub = stop, done, kick, pub
	v.runMu.Unlock()

	go v.run(runCtx, electionKV, membershipKV, memberWatch, leaseWatch, kick, done)

	v.svc.Logger().Debug("nats cluster view started", "namespace", v.Namespace(), "member", id)

	return nil
}

// Stop releases the lease if held, deletes the heartbeat and stops the loop.
// Listeners are told that every member left and the leader is gone.
func (v *View) Stop(ctx context.Context) error {
	if err := v.MarkStopped(); err != nil {
		return err
	}

	v.runMu.Lock()
	stop, done, pub := v.cancel, v.done, v.pub
	v.cancel, v.done, v.kick, v.pub = nil, nil, nil, nil
	v.runMu.Unlock()

	if stop != nil {
		stop()
		<-done
	}

	opCtx, cancel := context.WithTimeout(ctx, v.svc.cfg.OperationTimeout)
	defer cancel()

	var errs []error
	v.leaseMu.Lock()
	if v.lease != nil {
		if err := v.lease.Release(opCtx); err != nil {
			errs = append(errs, err)
		}
	}
	v.leaseMu.Unlock()

	if pub != nil {
		if err := pub.Stop(opCtx); err != nil {
			errs = append(errs, err)
		}
	}

	v.snap.Retire(v.Base, v.svc.ID())
	v.setHealth(errNotSynced)

	return errors.Join(errs...)
}

// IsDisabled reports whether the view is excluded from leadership contention.
func (v *View) IsDisabled() bool {
	return v.disabled.Load()
}

// SetDisabled excludes the view from (or readmits it to) leadership contention.
//
// Disabling releases a held lease before returning, so another member can take
// it right away. Re-enabling takes effect on the next lease attempt, which is
// triggered immediately.
func (v *View) SetDisabled(ctx context.Context, disabled bool) error {
	if v.disabled.Swap(disabled) == disabled || !v.IsRunning() {
		return nil
	}

	if disabled {
		opCtx, cancel := context.WithTimeout(ctx, v.svc.cfg.OperationTimeout)
		defer cancel()

		v.leaseMu.Lock()
		var err error
		if v.lease != nil {
			err = v.lease.Release(opCtx)
		}
		v.leaseMu.Unlock()

		if err != nil {
			v.poke()
			return natsutil.Classify(fmt.Errorf("view %s: %w", v.Namespace(), err))
		}
	}
	v.poke()

	return nil
}

// Leader returns the leader as of the last delivered event.
func (v *View) Leader() (types.Member, bool) {
	return v.snap.Leader(v.svc.ID())
}

// LocalMember returns the local member.
func (v *View) LocalMember() types.Member {
	return v.snap.Member(v.svc.ID(), v.svc.ID())
}

// Members returns the members sorted by ID.
func (v *View) Members() []types.Member {
	return v.snap.Members(v.svc.ID())
}

// Healthy reports why the delivered membership cannot be trusted, or nil.
func (v *View) Healthy() error {
	if !v.IsRunning() {
		return fmt.Errorf("view %s: %w", v.Namespace(), types.ErrNotStarted)
	}

	v.healthMu.RLock()
	defer v.healthMu.RUnlock()

	if v.health != nil {
		return fmt.Errorf("view %s: %w", v.Namespace(), v.health)
	}

	return nil
}

func (v *View) setHealth(err error) {
	v.healthMu.Lock()
	defer v.healthMu.Unlock()

	v.health = err
}

// poke wakes the loop for a lease attempt and a membership read.
func (v *View) poke() {
	v.runMu.Lock()
	kick := v.kick
	v.runMu.Unlock()

	if kick == nil {
		return
	}
	select {
	case kick <- struct{}{}:
	default:
	}
}

func (v *View) run(
	ctx context.Context,
	electionKV, membershipKV jetstream.KeyValue,
	memberWatch, leaseWatch jetstream.KeyWatcher,
	kick <-chan struct{},
	done chan<- struct{},
) {
	defer close(done)
	defer func() {
		_ = memberWatch.Stop()
		_ = leaseWatch.Stop()
	}()

	cfg := v.svc.cfg
	leaseTicker := time.NewTicker(max(cfg.LeaseTTL/3, 10*time.Millisecond))
	defer leaseTicker.Stop()
	pollTicker := time.NewTicker(max(cfg.HeartbeatTTL/2, 10*time.Millisecond))
	defer pollTicker.Stop()

	v.knownKeys = nil
	memberUpdates := memberWatch.Updates()
	leaseUpdates := leaseWatch.Updates()

	v.step(ctx, electionKV, membershipKV, true)

	for {
		select {
		case <-ctx.Done():
			return

		case <-leaseTicker.C:
			v.step(ctx, electionKV, membershipKV, true)

		case <-pollTicker.C:
			v.step(ctx, electionKV, membershipKV, false)

		case <-kick:
			v.step(ctx, electionKV, membershipKV, true)

		case entry, ok := <-memberUpdates:
			if !ok {
				memberUpdates = nil
				continue
			}
			if entry == nil {
				continue
			}
			// Renewals of known heartbeats change nothing.
			if _, known := v.knownKeys[entry.Key()]; known && entry.Operation() == jetstream.KeyValuePut {
				continue
			}
			v.step(ctx, electionKV, membershipKV, false)

		case entry, ok := <-leaseUpdates:
			if !ok {
				leaseUpdates = nil
				continue
			}
			if entry == nil {
				continue
			}
			if entry.Operation() != jetstream.KeyValuePut {
				// Vacated: contend right away.
				v.step(ctx, electionKV, membershipKV, true)
				continue
			}
			if id, ok := election.ParseValue(entry.Value()); ok && id == v.snap.LeaderID() {
				continue
			}
			v.step(ctx, electionKV, membershipKV, false)
		}
	}
}

// step optionally contends for the lease, then reads the namespace and
// delivers the difference.
func (v *View) step(ctx context.Context, electionKV, membershipKV jetstream.KeyValue, contend bool) {
	opCtx, cancel := context.WithTimeout(ctx, v.svc.cfg.OperationTimeout)
	defer cancel()

	if contend {
		v.contend(opCtx)
	}
	if ctx.Err() != nil {
		return
	}

	members, keys, leader, err := v.read(opCtx, electionKV, membershipKV)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		v.setHealth(natsutil.Classify(err))
		v.svc.Logger().Warn("failed to read cluster namespace", "namespace", v.Namespace(), "error", err)

		return
	}
	v.setHealth(nil)
	v.knownKeys = keys

	id := v.svc.ID()
	if leader != v.snap.LeaderID() {
		v.svc.metrics.RecordLeadershipChange(v.Namespace(), leader)
	}
	if leader != id {
		v.leaseMu.Lock()
		if v.lease != nil && v.lease.Held() && leader != "" {
			v.lease.Forget()
		}
		v.leaseMu.Unlock()
	}

	v.snap.Update(v.Base, members, leader, id)
}

func (v *View) contend(ctx context.Context) {
	v.leaseMu.Lock()
	defer v.leaseMu.Unlock()

	if v.lease == nil {
		return
	}

	if v.disabled.Load() {
		if err := v.lease.Release(ctx); err != nil {
			v.svc.Logger().Warn("failed to release lease", "namespace", v.Namespace(), "error", err)
		}

		return
	}

	acquired, err := v.lease.Acquire(ctx)
	if err != nil {
		v.svc.Logger().Warn("lease attempt failed", "namespace", v.Namespace(), "error", err)
		return
	}
	if acquired {
		v.svc.Logger().Debug("lease held", "namespace", v.Namespace(), "member", v.svc.ID())
	}
}

// read returns the sorted member IDs, their keys and the lease holder.
func (v *View) read(
	ctx context.Context,
	electionKV, membershipKV jetstream.KeyValue,
) (members []string, keys map[string]struct{}, leader string, err error) {
	m := v.svc.metrics

	var suffixes []string
	err = metrics.Timed(m, "list", func() error {
		var err error
		suffixes, err = kvutil.KeysWithPrefix(ctx, membershipKV, v.nsKey)
		return err
	})
	if err != nil {
		return nil, nil, "", err
	}

	keys = make(map[string]struct{}, len(suffixes))
	members = make([]string, 0, len(suffixes))
	for _, suffix := range suffixes {
		key := natsutil.JoinKey(v.nsKey, suffix)

		var entry jetstream.KeyValueEntry
		err := metrics.Timed(m, "get", func() error {
			var err error
			entry, err = membershipKV.Get(ctx, key)
			return err
		})
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, "", fmt.Errorf("get heartbeat %s: %w", key, err)
		}

		keys[key] = struct{}{}
		members = append(members, string(entry.Value()))
	}
	slices.Sort(members)
	members = slices.Compact(members)

	err = metrics.Timed(m, "get", func() error {
		var err error
		leader, _, err = election.Holder(ctx, electionKV, v.nsKey)
		return err
	})
	if err != nil {
		return nil, nil, "", err
	}

	return members, keys, leader, nil
}
