package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-zookeeper/zk"

	"github.com/arloliu/cluster/internal/metrics"
	"github.com/arloliu/cluster/types"
	"github.com/arloliu/cluster/view"
)

var errNotSynced = errors.New("membership not observed yet")

// View is the ZooKeeper view of one namespace.
type View struct {
	*view.Base

	svc      *Service
	nsPath   string
	disabled atomic.Bool
	snap     view.Snapshot

	// nodeMu serializes writes of the local member and candidate nodes.
	nodeMu    sync.Mutex
	member    string
	candidate string

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	kick   chan struct{}

	healthMu sync.RWMutex
	health   error
}

var (
	_ types.PreemptiveView = (*View)(nil)
	_ types.HealthReporter = (*View)(nil)
)

func newView(svc *Service, namespace string) *View {
	v := &View{
		svc:    svc,
		nsPath: path.Join(svc.cfg.RootPath, nodeName(namespace)),
	}
	v.Base = view.NewBase(v, svc, namespace,
		view.WithLogger(svc.Logger()),
		view.WithMetrics(svc.metrics),
	)

	return v
}

func (v *View) membersPath() string    { return path.Join(v.nsPath, membersNode) }
func (v *View) candidatesPath() string { return path.Join(v.nsPath, candidatesNode) }

// Start registers the local member, enters the election unless the view is
// disabled, and starts the watch loop.
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
	if !v.svc.IsRunning() {
		return fmt.Errorf("view %s: %w", v.Namespace(), types.ErrNotStarted)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := v.ensureNamespace(); err != nil {
		return Classify(fmt.Errorf("view %s: %w", v.Namespace(), err))
	}

	v.nodeMu.Lock()
	err := v.register()
	if err == nil && !v.disabled.Load() {
		err = v.enter()
	}
	v.nodeMu.Unlock()
	if err != nil {
		v.leave()
		return Classify(fmt.Errorf("view %s: %w", v.Namespace(), err))
	}

	v.setHealth(errNotSynced)

	runCtx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	kick := make(chan struct{}, 1)
	v.runMu.Lock()
	v.cancel, v.done, v.kick = stop, done, kick
	v.runMu.Unlock()

	go v.run(runCtx, kick, done)

	v.svc.Logger().Debug("zookeeper cluster view started", "namespace", v.Namespace(), "member", v.svc.ID())

	return nil
}

// Stop leaves the election, removes the member node and stops the loop. The
// listeners are told that every member left and the leader is gone.
func (v *View) Stop(_ context.Context) error {
	if err := v.MarkStopped(); err != nil {
		return err
	}

	v.runMu.Lock()
	stop, done := v.cancel, v.done
	v.cancel, v.done, v.kick = nil, nil, nil
	v.runMu.Unlock()

	if stop != nil {
		stop()
		<-done
	}

	err := v.leave()

	v.snap.Retire(v.Base, v.svc.ID())
	v.setHealth(errNotSynced)

	return Classify(err)
}

// IsDisabled reports whether the view is excluded from the election.
func (v *View) IsDisabled() bool {
	return v.disabled.Load()
}

// SetDisabled excludes the view from (or readmits it to) the election.
//
// Disabling deletes the candidate node before returning; if it led, the next
// candidate takes over as soon as the watches fire. Re-enabling queues a new
// candidate node behind the existing ones, so it never preempts a leader.
func (v *View) SetDisabled(_ context.Context, disabled bool) error {
	if v.disabled.Swap(disabled) == disabled || !v.IsRunning() {
		return nil
	}

	var err error
	if disabled {
		v.nodeMu.Lock()
		err = v.withdraw()
		v.nodeMu.Unlock()
	}
	v.poke()

	if err != nil {
		return Classify(fmt.Errorf("view %s: %w", v.Namespace(), err))
	}

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
	if !connected(v.svc.conn) {
		return fmt.Errorf("view %s: %w: no zookeeper session", v.Namespace(), types.ErrConnectivity)
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

func (v *View) ensureNamespace() error {
	return metrics.Timed(v.svc.metrics, "create", func() error {
		if err := ensurePath(v.svc.conn, v.membersPath()); err != nil {
			return err
		}
		return ensurePath(v.svc.conn, v.candidatesPath())
	})
}

// register creates the ephemeral member node. Caller holds nodeMu.
func (v *View) register() error {
	p := path.Join(v.membersPath(), nodeName(v.svc.ID()))

	err := metrics.Timed(v.svc.metrics, "create", func() error {
		_, err := v.svc.conn.Create(p, []byte(v.svc.ID()), zk.FlagEphemeral, zk.WorldACL(zk.PermAll))
		return err
	})
	// A node left by an expired session of this member goes away on its own;
	// the watch on the members node brings us back here.
	if err != nil && !errors.Is(err, zk.ErrNodeExists) {
		return fmt.Errorf("register member: %w", err)
	}
	v.member = p

	return nil
}

// enter creates the ephemeral sequential candidate node. Caller holds nodeMu.
func (v *View) enter() error {
	var created string
	err := metrics.Timed(v.svc.metrics, "create", func() error {
		var err error
		created, err = v.svc.conn.Create(candidatePrefix(v.nsPath, v.svc.ID()), []byte(v.svc.ID()),
			zk.FlagEphemeral|zk.FlagSequence, zk.WorldACL(zk.PermAll))
		return err
	})
	if err != nil {
		return fmt.Errorf("enter election: %w", err)
	}
	v.candidate = created

	return nil
}

// withdraw deletes the candidate node. Caller holds nodeMu.
func (v *View) withdraw() error {
	if v.candidate == "" {
		return nil
	}

	err := v.delete(v.candidate)
	if err != nil {
		return fmt.Errorf("leave election: %w", err)
	}
	v.candidate = ""

	return nil
}

// leave deletes the candidate and member nodes.
func (v *View) leave() error {
	v.nodeMu.Lock()
	defer v.nodeMu.Unlock()

	errs := []error{v.withdraw()}
	if v.member != "" {
		if err := v.delete(v.member); err != nil {
			errs = append(errs, fmt.Errorf("deregister member: %w", err))
		} else {
			v.member = ""
		}
	}

	return errors.Join(errs...)
}

func (v *View) delete(p string) error {
	err := metrics.Timed(v.svc.metrics, "delete", func() error {
		return v.svc.conn.Delete(p, -1)
	})
	if errors.Is(err, zk.ErrNoNode) {
		return nil
	}

	return err
}

// watches holds the armed child watches of the loop. A nil channel means the
// next read arms a new watch.
type watches struct {
	members    <-chan zk.Event
	candidates <-chan zk.Event
}

func (v *View) run(ctx context.Context, kick <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(v.svc.cfg.PollInterval)
	defer ticker.Stop()

	var w watches
	for {
		v.step(&w)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-kick:
		case ev := <-w.members:
			w.members = nil
			v.logWatch(ev)
		case ev := <-w.candidates:
			w.candidates = nil
			v.logWatch(ev)
		}
	}
}

func (v *View) logWatch(ev zk.Event) {
	if ev.Type == zk.EventNotWatching {
		v.svc.Logger().Debug("zookeeper watch dropped", "namespace", v.Namespace(), "error", ev.Err)
	}
}

// step reads the namespace, restores local nodes a lost session took with it,
// and delivers the difference.
func (v *View) step(w *watches) {
	memberNames, candidateNames, err := v.read(w)
	if errors.Is(err, zk.ErrNoNode) {
		// Namespace removed underneath us.
		if err = v.ensureNamespace(); err == nil {
			memberNames, candidateNames, err = v.read(w)
		}
	}
	if err == nil {
		var repaired bool
		if repaired, err = v.repair(memberNames, candidateNames); err == nil && repaired {
			memberNames, candidateNames, err = v.read(w)
		}
	}
	if err != nil {
		v.setHealth(Classify(err))
		v.svc.Logger().Warn("failed to read cluster namespace", "namespace", v.Namespace(), "error", err)

		return
	}
	v.setHealth(nil)

	leader := ""
	if cands := sortCandidates(candidateNames); len(cands) > 0 {
		leader = cands[0].member
	}
	if leader != v.snap.LeaderID() {
		v.svc.metrics.RecordLeadershipChange(v.Namespace(), leader)
	}

	v.snap.Update(v.Base, memberIDs(memberNames), leader, v.svc.ID())
}

func (v *View) read(w *watches) (memberNames, candidateNames []string, err error) {
	err = metrics.Timed(v.svc.metrics, "list", func() error {
		var err error
		if memberNames, err = children(v.svc.conn, v.membersPath(), &w.members); err != nil {
			return err
		}
		candidateNames, err = children(v.svc.conn, v.candidatesPath(), &w.candidates)
		return err
	})

	return memberNames, candidateNames, err
}

// children lists p, arming a watch when none is pending.
func children(conn Conn, p string, watch *<-chan zk.Event) ([]string, error) {
	if *watch != nil {
		names, _, err := conn.Children(p)
		return names, err
	}

	names, _, ch, err := conn.ChildrenW(p)
	if err != nil {
		return nil, err
	}
	*watch = ch

	return names, nil
}

// repair recreates the member and candidate nodes of this view when they are
// missing from the read, which happens after a session expiry. It reports
// whether anything was written.
func (v *View) repair(memberNames, candidateNames []string) (bool, error) {
	v.nodeMu.Lock()
	defer v.nodeMu.Unlock()

	repaired := false
	if !slices.Contains(memberNames, nodeName(v.svc.ID())) {
		if err := v.register(); err != nil {
			return false, err
		}
		repaired = true
	}

	if v.disabled.Load() {
		// A failed withdraw in SetDisabled is retried here.
		if v.candidate != "" {
			if err := v.withdraw(); err != nil {
				return repaired, err
			}
			repaired = true
		}

		return repaired, nil
	}

	if v.candidate == "" || !slices.Contains(candidateNames, path.Base(v.candidate)) {
		if v.candidate != "" {
			v.svc.Logger().Info("candidate node lost, re-entering election",
				"namespace", v.Namespace(), "member", v.svc.ID())
		}
		if err := v.enter(); err != nil {
			return repaired, err
		}
		repaired = true
	}

	return repaired, nil
}
