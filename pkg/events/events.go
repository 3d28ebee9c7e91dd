package events

import (
	"container/list"
	"context"
	"sync"

	"github.com/cuemby/dtnd/pkg/bundle"
	"github.com/cuemby/dtnd/pkg/link"
	"github.com/cuemby/dtnd/pkg/router"
)

// Kind tags the event union the daemon's queue carries (spec §4.1).
type Kind string

const (
	BundleReceived       Kind = "bundle.received"
	BundleTransmitted    Kind = "bundle.transmitted"
	BundleExpired        Kind = "bundle.expired"
	BundleFree           Kind = "bundle.free"
	BundleForwardTimeout Kind = "bundle.forward_timeout"
	ContactUp            Kind = "contact.up"
	ContactDown          Kind = "contact.down"
	LinkCreated          Kind = "link.created"
	LinkDeleted          Kind = "link.deleted"
	LinkAvailable        Kind = "link.available"
	LinkUnavailable      Kind = "link.unavailable"
	LinkStateChange      Kind = "link.state_change_request"
	ReassemblyCompleted  Kind = "reassembly.completed"
	RegistrationAdded    Kind = "registration.added"
	RegistrationRemoved  Kind = "registration.removed"
	RegistrationExpired  Kind = "registration.expired"
	RouteAdd             Kind = "route.add"
	RouteDel             Kind = "route.del"
	Shutdown             Kind = "shutdown"
)

// Event is one occurrence on the daemon's queue. Only the fields relevant
// to Kind are populated; the rest are zero.
type Event struct {
	Kind     Kind
	Bundle   *bundle.Bundle
	LinkName string
	RegID    uint64
	Route    router.RouteEntry
	Reason   link.Reason
	ToState  link.State
}

// Queue is an unbounded single-consumer FIFO. Push never blocks; Pop blocks
// until an event is available, the queue is closed, or ctx is done.
type Queue struct {
	mu     sync.Mutex
	l      *list.List
	notify chan struct{}
	closed bool
}

// NewQueue creates an empty Queue.
func NewQueue() *Queue {
	return &Queue{
		l:      list.New(),
		notify: make(chan struct{}, 1),
	}
}

// Push appends e to the tail of the queue.
func (q *Queue) Push(e *Event) {
	q.mu.Lock()
	q.l.PushBack(e)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop removes and returns the head of the queue, blocking until one is
// available. ok is false if the queue was closed and drained, or ctx ended
// first.
func (q *Queue) Pop(ctx context.Context) (e *Event, ok bool) {
	for {
		q.mu.Lock()
		front := q.l.Front()
		if front != nil {
			q.l.Remove(front)
			q.mu.Unlock()
			return front.Value.(*Event), true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, false
		}

		select {
		case <-q.notify:
		case <-ctx.Done():
			return nil, false
		}
	}
}

// Close marks the queue closed. Pending events already pushed are still
// delivered by Pop; once drained, Pop returns ok=false. Safe to call more
// than once.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Len reports the number of events currently queued, for the daemon's
// queue-depth gauge.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.l.Len()
}
