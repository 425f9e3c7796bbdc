package memory

import (
	"context"
	"sync"
)

// dispatcher runs tasks one at a time in submission order on its own goroutine.
// The queue is unbounded so submitters never block.
type dispatcher struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	wake chan struct{}
	done chan struct{}
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go d.run()

	return d
}

// submit enqueues task. It reports false when the dispatcher is closed.
func (d *dispatcher) submit(task func()) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.queue = append(d.queue, task)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}

	return true
}

// barrier waits until every task submitted before the call has run.
func (d *dispatcher) barrier(ctx context.Context) error {
	reached := make(chan struct{})
	if !d.submit(func() { close(reached) }) {
		// Closed: run drains the queue before exiting.
		select {
		case <-d.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	select {
	case <-reached:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops accepting tasks and waits for queued tasks to finish.
func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	<-d.done
}

func (d *dispatcher) run() {
	defer close(d.done)

	for range d.wake {
		for {
			d.mu.Lock()
			if len(d.queue) == 0 {
				closed := d.closed
				d.mu.Unlock()
				if closed {
					return
				}

				break
			}
			task := d.queue[0]
			d.queue[0] = nil
			d.queue = d.queue[1:]
			d.mu.Unlock()

			task()
		}
	}
}
