// Package view provides the building block shared by every cluster view implementation.
//
// Base owns the listener list of a view and delivers events to it. Backends embed
// a *Base in their concrete view type and report backend changes through Publish
// (or the Fire helpers), which keeps event delivery consistent with listener
// registration:
//
//   - Listeners are notified in registration order.
//   - A listener registered while the view is running synchronously receives the
//     current leader and members before any later event.
//   - Event delivery holds a read lock, registration holds the write lock, so many
//     events may be delivered concurrently but never interleaved with a change to
//     the listener list.
//   - A panicking listener is recovered and logged; later listeners still receive
//     the event.
//
// Listeners must not add or remove listeners on the same view from inside a
// callback; doing so deadlocks. Spawn a goroutine instead.
//
// # Usage
//
//	type myView struct {
//	    *view.Base
//	    mu      sync.Mutex
//	    leader  string
//	    members map[string]struct{}
//	}
//
//	func newMyView(svc types.Service, ns string) *myView {
//	    v := &myView{members: map[string]struct{}{}}
//	    v.Base = view.NewBase(v, svc, ns)
//	    return v
//	}
//
//	func (v *myView) onLeader(id string) {
//	    v.Publish(func() []types.Event {
//	        v.mu.Lock()
//	        defer v.mu.Unlock()
//	        v.leader = id
//	        return []types.Event{v.LeadershipEvent(v.leaderLocked())}
//	    })
//	}
package view
