package testing

import (
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/go-zookeeper/zk"
)

// ZKServer is an in-memory stand-in for a ZooKeeper ensemble.
//
// It keeps a znode tree with persistent, ephemeral and sequential nodes and
// one-shot child watches, which is the subset the cluster backend relies on.
// Every ZKConn opened on it is a separate session.
type ZKServer struct {
	mu       sync.Mutex
	nodes    map[string]*zkNode
	watches  map[string][]chan zk.Event
	sessions int64
}

type zkNode struct {
	data     []byte
	owner    int64
	cversion int32
}

// NewZKServer returns a server holding only the root node.
func NewZKServer() *ZKServer {
	return &ZKServer{
		nodes:   map[string]*zkNode{"/": {}},
		watches: make(map[string][]chan zk.Event),
	}
}

// Connect opens a new session.
func (s *ZKServer) Connect() *ZKConn {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions++

	return &ZKConn{srv: s, session: s.sessions}
}

// Paths returns every node path, sorted.
func (s *ZKServer) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make([]string, 0, len(s.nodes))
	for p := range s.nodes {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	return paths
}

func (s *ZKServer) childrenLocked(p string) []string {
	prefix := p + "/"
	if p == "/" {
		prefix = "/"
	}

	var names []string
	for np := range s.nodes {
		if np == "/" || !strings.HasPrefix(np, prefix) {
			continue
		}
		if rest := np[len(prefix):]; !strings.Contains(rest, "/") {
			names = append(names, rest)
		}
	}
	slices.Sort(names)

	return names
}

func (s *ZKServer) fireLocked(p string) {
	for _, ch := range s.watches[p] {
		ch <- zk.Event{Type: zk.EventNodeChildrenChanged, State: zk.StateHasSession, Path: p}
	}
	delete(s.watches, p)
}

func (s *ZKServer) deleteLocked(p string) {
	delete(s.nodes, p)
	parent := path.Dir(p)
	if n, ok := s.nodes[parent]; ok {
		n.cversion++
	}
	s.fireLocked(parent)
}

// dropSessionLocked removes the ephemeral nodes of a session.
func (s *ZKServer) dropSessionLocked(session int64) {
	for p, n := range s.nodes {
		if n.owner == session {
			s.deleteLocked(p)
		}
	}
}

// ZKConn is one session on a ZKServer. It has the method set of *zk.Conn used
// by the cluster backend.
type ZKConn struct {
	srv *ZKServer

	mu           sync.Mutex
	session      int64
	closed       bool
	disconnected bool
	pending      []chan zk.Event
}

func (c *ZKConn) check() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed:
		return zk.ErrConnectionClosed
	case c.disconnected:
		return zk.ErrNoServer
	}

	return nil
}

func (c *ZKConn) sessionID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.session
}

// Create creates a node. FlagSequence appends a ten digit counter taken from
// the parent; FlagEphemeral ties the node to this session.
func (c *ZKConn) Create(p string, data []byte, flags int32, _ []zk.ACL) (string, error) {
	if err := c.check(); err != nil {
		return "", err
	}
	session := c.sessionID()

	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.nodes[path.Dir(p)]
	if !ok {
		return "", zk.ErrNoNode
	}
	if flags&zk.FlagSequence != 0 {
		p = fmt.Sprintf("%s%010d", p, parent.cversion)
	}
	if _, exists := s.nodes[p]; exists {
		return "", zk.ErrNodeExists
	}

	n := &zkNode{data: slices.Clone(data)}
	if flags&zk.FlagEphemeral != 0 {
		n.owner = session
	}
	s.nodes[p] = n
	parent.cversion++
	s.fireLocked(path.Dir(p))

	return p, nil
}

// Children lists the child names of a node.
func (c *ZKConn) Children(p string) ([]string, *zk.Stat, error) {
	if err := c.check(); err != nil {
		return nil, nil, err
	}

	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[p]
	if !ok {
		return nil, nil, zk.ErrNoNode
	}
	children := s.childrenLocked(p)

	return children, &zk.Stat{Cversion: n.cversion, NumChildren: int32(len(children))}, nil //nolint:gosec
}

// ChildrenW lists the child names of a node and sets a one-shot watch on them.
func (c *ZKConn) ChildrenW(p string) ([]string, *zk.Stat, <-chan zk.Event, error) {
	children, stat, err := c.Children(p)
	if err != nil {
		return nil, nil, nil, err
	}

	ch := make(chan zk.Event, 1)
	c.srv.mu.Lock()
	c.srv.watches[p] = append(c.srv.watches[p], ch)
	c.srv.mu.Unlock()

	c.mu.Lock()
	c.pending = append(c.pending, ch)
	c.mu.Unlock()

	return children, stat, ch, nil
}

// Get returns the data of a node.
func (c *ZKConn) Get(p string) ([]byte, *zk.Stat, error) {
	if err := c.check(); err != nil {
		return nil, nil, err
	}

	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[p]
	if !ok {
		return nil, nil, zk.ErrNoNode
	}

	return slices.Clone(n.data), &zk.Stat{EphemeralOwner: n.owner, Cversion: n.cversion}, nil
}

// Exists reports whether a node exists.
func (c *ZKConn) Exists(p string) (bool, *zk.Stat, error) {
	if err := c.check(); err != nil {
		return false, nil, err
	}

	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[p]
	if !ok {
		return false, nil, nil
	}

	return true, &zk.Stat{EphemeralOwner: n.owner, Cversion: n.cversion}, nil
}

// Delete removes a childless node. Versions are not tracked.
func (c *ZKConn) Delete(p string, _ int32) error {
	if err := c.check(); err != nil {
		return err
	}

	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[p]; !ok {
		return zk.ErrNoNode
	}
	if len(s.childrenLocked(p)) > 0 {
		return zk.ErrNotEmpty
	}
	s.deleteLocked(p)

	return nil
}

// State reports StateHasSession while the session is usable.
func (c *ZKConn) State() zk.State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.disconnected {
		return zk.StateDisconnected
	}

	return zk.StateHasSession
}

// Close ends the session: its ephemeral nodes are removed and its pending
// watches receive EventNotWatching.
func (c *ZKConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	session := c.session
	c.mu.Unlock()

	c.srv.mu.Lock()
	c.srv.dropSessionLocked(session)
	c.srv.mu.Unlock()

	c.notWatching(zk.ErrClosing)
}

// Expire ends the session the way a server-side expiry does and continues on
// a new one. Ephemeral nodes of the old session are removed.
func (c *ZKConn) Expire() {
	c.srv.mu.Lock()
	c.srv.sessions++
	next := c.srv.sessions

	c.mu.Lock()
	old := c.session
	c.session = next
	c.mu.Unlock()

	c.srv.dropSessionLocked(old)
	c.srv.mu.Unlock()

	c.notWatching(zk.ErrSessionExpired)
}

// SetDisconnected makes every call fail with zk.ErrNoServer until reset.
func (c *ZKConn) SetDisconnected(disconnected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.disconnected = disconnected
}

// notWatching completes the pending watches of this session.
func (c *ZKConn) notWatching(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()

	for _, ch := range pending {
		found := false
		for p, chans := range c.srv.watches {
			if i := slices.Index(chans, ch); i >= 0 {
				c.srv.watches[p] = slices.Delete(chans, i, i+1)
				found = true
			}
		}
		if found {
			ch <- zk.Event{Type: zk.EventNotWatching, State: zk.StateDisconnected, Err: err}
		}
	}
}
