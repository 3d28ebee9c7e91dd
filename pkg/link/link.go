package link

import (
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/dtnd/pkg/bundle"
	"github.com/cuemby/dtnd/pkg/dtnerr"
	"github.com/cuemby/dtnd/pkg/log"
	"github.com/rs/zerolog"
)

// State is a Link's position in the contact state machine (spec §4.3).
type State uint8

const (
	StateUnavailable State = iota
	StateAvailable
	StateOpening
	StateOpen
	StateBusy
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnavailable:
		return "UNAVAILABLE"
	case StateAvailable:
		return "AVAILABLE"
	case StateOpening:
		return "OPENING"
	case StateOpen:
		return "OPEN"
	case StateBusy:
		return "BUSY"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Reason is carried with a state transition event, explaining why it
// happened.
type Reason uint8

const (
	ReasonNoInfo Reason = iota
	ReasonUser
	ReasonBroken
	ReasonReconnect
	ReasonIdle
	ReasonTimeout
	ReasonShutdown
)

func (r Reason) String() string {
	switch r {
	case ReasonNoInfo:
		return "NO_INFO"
	case ReasonUser:
		return "USER"
	case ReasonBroken:
		return "BROKEN"
	case ReasonReconnect:
		return "RECONNECT"
	case ReasonIdle:
		return "IDLE"
	case ReasonTimeout:
		return "TIMEOUT"
	case ReasonShutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

// CLA is the convergence layer adapter a Link drives through its contact
// lifecycle. open_contact/close_contact are asynchronous: the CLA reports
// the outcome back via ContactUp/ContactDown.
type CLA interface {
	OpenContact(l *Link) error
	CloseContact(l *Link) error
	Send(l *Link, b *bundle.Bundle, wire []byte) error
}

// Params are the admin (operator-set) parameters of a link.
type Params struct {
	MTU              int
	RetryInterval    time.Duration
	MinRetryInterval time.Duration
	MaxRetryInterval time.Duration
	IdleClose        time.Duration
	QueueDepthLimit  int
	Reopen           bool
}

// DynamicParams are parameters the CLA itself reports once a contact is up
// (e.g. a negotiated keepalive interval), distinct from the admin Params a
// human configures.
type DynamicParams struct {
	KeepaliveInterval time.Duration
	AckPolicy         string
}

// Link is a named path to a next hop: next-hop address, a CLA reference, a
// queue of bundles awaiting send and an inflight list of bundles handed to
// the CLA but not yet acknowledged. A bundle is in exactly one of queue,
// inflight, or neither (spec §8 invariant 4) — every method that moves a
// bundle between them removes it from its prior home first.
type Link struct {
	name     string
	nextHop  string
	CLA      CLA
	Params   Params
	Dynamic  DynamicParams
	OnRouter func(Event)

	mu         sync.Mutex
	state      State
	queue      []*bundle.Bundle
	inflight   []*bundle.Bundle
	retryTimer *time.Timer
	retryDelay time.Duration
	ready      chan struct{}

	logger zerolog.Logger
}

// New creates a Link in state UNAVAILABLE.
func New(name, nextHop string, cla CLA, params Params) *Link {
	if params.QueueDepthLimit <= 0 {
		params.QueueDepthLimit = 50
	}
	return &Link{
		name:    name,
		nextHop: nextHop,
		CLA:     cla,
		Params:  params,
		state:   StateUnavailable,
		logger:  log.WithLinkName(name),
		ready:   make(chan struct{}, 1),
	}
}

// Ready returns the channel a send pump should wait on between Dequeue
// calls: it receives a pulse whenever a bundle is enqueued or the link
// reopens, so the pump never has to poll.
func (l *Link) Ready() <-chan struct{} { return l.ready }

func (l *Link) wake() {
	select {
	case l.ready <- struct{}{}:
	default:
	}
}

// Name implements bundle.LinkInfo.
func (l *Link) Name() string { return l.name }

// MTU implements bundle.LinkInfo.
func (l *Link) MTU() uint64 { return uint64(l.Params.MTU) }

// NextHop implements bundle.LinkInfo.
func (l *Link) NextHop() string { return l.nextHop }

// EventKind tags the notifications a Link emits toward its router/daemon.
type EventKind uint8

const (
	EventLinkOpened EventKind = iota
	EventLinkClosed
	EventLinkBusy
	EventLinkAvailable
	EventBundleTransmitFailed
)

// Event is the notification a Link hands to OnRouter on a state transition
// or inflight-drain outcome that the router needs to react to.
type Event struct {
	Kind   EventKind
	Link   *Link
	Bundle *bundle.Bundle
	Reason Reason
}

func (l *Link) notify(e Event) {
	if l.OnRouter != nil {
		l.OnRouter(e)
	}
}

// State returns the link's current state.
func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Link) setState(s State, reason Reason) {
	prev := l.state
	l.state = s
	l.logger.Debug().Str("from", prev.String()).Str("to", s.String()).Str("reason", reason.String()).Msg("link state transition")
}

// LinkAvailable handles the CLA announcing the next hop is reachable:
// UNAVAILABLE -> AVAILABLE.
func (l *Link) LinkAvailable() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateUnavailable {
		return fmt.Errorf("link %s: LinkAvailable invalid from %s", l.name, l.state)
	}
	l.setState(StateAvailable, ReasonNoInfo)
	return nil
}

// OpenRequest asks the CLA to open a contact: AVAILABLE -> OPENING.
func (l *Link) OpenRequest() error {
	l.mu.Lock()
	if l.state != StateAvailable {
		l.mu.Unlock()
		return fmt.Errorf("link %s: OpenRequest invalid from %s", l.name, l.state)
	}
	l.setState(StateOpening, ReasonNoInfo)
	l.mu.Unlock()

	if err := l.CLA.OpenContact(l); err != nil {
		l.mu.Lock()
		l.setState(StateAvailable, ReasonBroken)
		l.mu.Unlock()
		return dtnerr.Fatal(fmt.Sprintf("link %s: open contact", l.name), err)
	}
	return nil
}

// ContactUp reports the CLA finished opening the contact: OPENING -> OPEN.
// The router is notified and the queue begins draining; retry backoff
// resets to the configured minimum.
func (l *Link) ContactUp() error {
	l.mu.Lock()
	if l.state != StateOpening {
		l.mu.Unlock()
		return fmt.Errorf("link %s: ContactUp invalid from %s", l.name, l.state)
	}
	l.setState(StateOpen, ReasonNoInfo)
	l.retryDelay = l.Params.MinRetryInterval
	l.mu.Unlock()

	l.notify(Event{Kind: EventLinkOpened, Link: l})
	l.wake()
	return nil
}

// ContactDown reports the CLA's contact broke: OPEN/BUSY -> AVAILABLE. Every
// inflight bundle is drained back to the forwarding log as transmit-failed
// and handed to the router so it can reroute; if Params.Reopen is set, a
// reopen is scheduled with doubling backoff.
func (l *Link) ContactDown(reason Reason) error {
	l.mu.Lock()
	if l.state != StateOpen && l.state != StateBusy {
		l.mu.Unlock()
		return fmt.Errorf("link %s: ContactDown invalid from %s", l.name, l.state)
	}
	l.setState(StateAvailable, reason)
	drained := l.inflight
	l.inflight = nil
	l.mu.Unlock()

	for _, b := range drained {
		b.AppendForwardLog(bundle.ForwardLogEntry{LinkName: l.name, State: bundle.ForwardTransmitFailed})
		l.notify(Event{Kind: EventBundleTransmitFailed, Link: l, Bundle: b, Reason: reason})
		b.Release()
	}

	if l.Params.Reopen {
		l.scheduleReopen()
	}
	return nil
}

// scheduleReopen arms a one-shot timer that reissues OpenRequest after the
// current backoff delay, then doubles the delay up to MaxRetryInterval.
// Call sites hold no lock when the timer fires, so OpenRequest re-acquires
// it normally.
func (l *Link) scheduleReopen() {
	if l.retryDelay <= 0 {
		l.retryDelay = l.Params.RetryInterval
	}
	delay := l.retryDelay
	next := delay * 2
	if l.Params.MaxRetryInterval > 0 && next > l.Params.MaxRetryInterval {
		next = l.Params.MaxRetryInterval
	}
	l.retryDelay = next

	if l.retryTimer != nil {
		l.retryTimer.Stop()
	}
	l.retryTimer = time.AfterFunc(delay, func() {
		if err := l.OpenRequest(); err != nil {
			l.logger.Warn().Err(err).Msg("scheduled reopen failed")
		}
	})
}

// LinkStateChangeRequest handles an operator-driven transition: BUSY->OPEN
// (resume) or any state -> UNAVAILABLE (contact closed).
func (l *Link) LinkStateChangeRequest(to State, reason Reason) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case to == StateOpen && l.state == StateBusy:
		l.setState(StateOpen, reason)
		l.wake()
		return nil
	case to == StateUnavailable:
		l.setState(StateUnavailable, reason)
		if l.retryTimer != nil {
			l.retryTimer.Stop()
		}
		return nil
	default:
		return fmt.Errorf("link %s: LinkStateChangeRequest(%s) invalid from %s", l.name, to, l.state)
	}
}

// ShutdownRequest is terminal: any state -> CLOSED.
func (l *Link) ShutdownRequest() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setState(StateClosed, ReasonShutdown)
	if l.retryTimer != nil {
		l.retryTimer.Stop()
	}
	return nil
}

// Enqueue adds b to the link's send queue, retaining a reference. It
// transitions OPEN -> BUSY once the queue depth reaches Params.QueueDepthLimit.
func (l *Link) Enqueue(b *bundle.Bundle) {
	l.mu.Lock()
	l.queue = append(l.queue, b.Retain())
	depth := len(l.queue)
	becameBusy := false
	if l.state == StateOpen && depth >= l.Params.QueueDepthLimit {
		l.setState(StateBusy, ReasonNoInfo)
		becameBusy = true
	}
	l.mu.Unlock()

	if becameBusy {
		l.notify(Event{Kind: EventLinkBusy, Link: l})
	}
	l.wake()
}

// Dequeue pops the head of the queue and moves it to the inflight set,
// handing it to the CLA to send. It is a no-op, returning nil, if the link
// is not OPEN/BUSY or the queue is empty.
func (l *Link) Dequeue() *bundle.Bundle {
	l.mu.Lock()
	if (l.state != StateOpen && l.state != StateBusy) || len(l.queue) == 0 {
		l.mu.Unlock()
		return nil
	}
	b := l.queue[0]
	l.queue = l.queue[1:]
	l.inflight = append(l.inflight, b)
	l.mu.Unlock()
	return b
}

// Ack removes b from the inflight set once the CLA confirms delivery,
// recording the forward log entry and releasing the link's reference.
func (l *Link) Ack(b *bundle.Bundle, delivered bool) {
	l.mu.Lock()
	for i, x := range l.inflight {
		if x == b {
			l.inflight = append(l.inflight[:i], l.inflight[i+1:]...)
			break
		}
	}
	l.mu.Unlock()

	state := bundle.ForwardTransmitted
	if delivered {
		state = bundle.ForwardDelivered
	}
	b.AppendForwardLog(bundle.ForwardLogEntry{LinkName: l.name, State: state})
	b.Release()
}

// QueueLen and InflightLen report current occupancy, chiefly for metrics
// gauges and tests.
func (l *Link) QueueLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Link) InflightLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.inflight)
}
