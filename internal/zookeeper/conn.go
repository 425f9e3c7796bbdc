package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-zookeeper/zk"

	"github.com/arloliu/cluster/internal/logger"
	"github.com/arloliu/cluster/types"
)

// Conn is the part of *zk.Conn the backend uses.
type Conn interface {
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	Children(path string) ([]string, *zk.Stat, error)
	ChildrenW(path string) ([]string, *zk.Stat, <-chan zk.Event, error)
	Get(path string) ([]byte, *zk.Stat, error)
	Exists(path string) (bool, *zk.Stat, error)
	Delete(path string, version int32) error
	State() zk.State
	Close()
}

var _ Conn = (*zk.Conn)(nil)

// Dial connects to the ensemble and waits until a session is established.
//
// Session events after that are logged at debug level until the connection
// is closed.
//
// Parameters:
//   - ctx: Bounds the wait for the session
//   - servers: Ensemble addresses
//   - sessionTimeout: Requested session timeout
//   - log: Logger for client and session messages; nil discards them
//
// Returns:
//   - *zk.Conn: Connection holding a session
//   - error: Wrapping types.ErrConnectivity when no session was established
func Dial(ctx context.Context, servers []string, sessionTimeout time.Duration, log types.Logger) (*zk.Conn, error) {
	if len(servers) == 0 {
		return nil, fmt.Errorf("%w: no zookeeper servers", types.ErrInvalidConfig)
	}
	log = logger.OrNop(log)

	conn, events, err := zk.Connect(servers, sessionTimeout, zk.WithLogger(printfLogger{log: log}))
	if err != nil {
		return nil, Classify(fmt.Errorf("connect zookeeper: %w", err))
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close()
			return nil, errors.Join(types.ErrConnectivity, fmt.Errorf("wait for zookeeper session: %w", ctx.Err()))

		case ev, ok := <-events:
			if !ok {
				return nil, fmt.Errorf("%w: zookeeper event channel closed", types.ErrConnectivity)
			}
			if ev.State == zk.StateHasSession {
				go watchSession(events, log)
				return conn, nil
			}
			if ev.State == zk.StateAuthFailed {
				conn.Close()
				return nil, fmt.Errorf("%w: zookeeper authentication failed", types.ErrConnectivity)
			}
		}
	}
}

func watchSession(events <-chan zk.Event, log types.Logger) {
	for ev := range events {
		if ev.Type == zk.EventSession {
			log.Debug("zookeeper session state", "state", ev.State.String(), "server", ev.Server)
		}
	}
}

// printfLogger routes client library messages to a types.Logger.
type printfLogger struct {
	log types.Logger
}

func (l printfLogger) Printf(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

// Classify marks errors caused by a lost connection or session with
// types.ErrConnectivity.
func Classify(err error) error {
	if err == nil || errors.Is(err, types.ErrConnectivity) {
		return err
	}

	switch {
	case errors.Is(err, zk.ErrNoServer),
		errors.Is(err, zk.ErrConnectionClosed),
		errors.Is(err, zk.ErrSessionExpired),
		errors.Is(err, zk.ErrSessionMoved),
		errors.Is(err, zk.ErrClosing):
		return errors.Join(types.ErrConnectivity, err)
	}

	return err
}

// connected reports whether the connection currently holds a session.
func connected(conn Conn) bool {
	switch conn.State() {
	case zk.StateConnected, zk.StateHasSession:
		return true
	default:
		return false
	}
}
