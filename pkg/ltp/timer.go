package ltp

import (
	"container/heap"
	"sync"
	"time"
)

// TimerKind distinguishes which callback a fired timer should invoke.
type TimerKind uint8

const (
	TimerInactivity TimerKind = iota
	TimerRetransmit
	TimerAggregation
	TimerRSRetransmit
	TimerCSRetransmit
)

// TimerEvent is what the Clock actor hands to its callback on fire.
type TimerEvent struct {
	Kind         TimerKind
	SessionKey   string
	SegmentKey   string
	CheckpointID uint64
}

type timerItem struct {
	at    time.Time
	event TimerEvent
	key   string // SessionKey+Kind+SegmentKey, for cancellation
	index int
}

type timerHeap []*timerItem

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x interface{}) {
	it := x.(*timerItem)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// Clock is the single timer-processing actor (spec §4.6.6): every LTP
// timer (inactivity, retransmit, aggregation, RS/CS retransmit) is
// scheduled here instead of as a standalone time.Timer, so cancellation
// and firing are serialized through one goroutine. A timer that fires
// after its session was torn down reaches a callback that finds no
// session under its key and does nothing.
type Clock struct {
	mu       sync.Mutex
	h        timerHeap
	byKey    map[string]*timerItem
	wake     chan struct{}
	stopCh   chan struct{}
	callback func(TimerEvent)
}

// NewClock creates a Clock that invokes cb for every fired timer. Run
// must be called to start processing.
func NewClock(cb func(TimerEvent)) *Clock {
	return &Clock{
		byKey:    make(map[string]*timerItem),
		wake:     make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		callback: cb,
	}
}

func timerKey(sessionKey string, kind TimerKind, segmentKey string) string {
	return sessionKey + "|" + segmentKey + "|" + string(rune('0'+kind))
}

// Schedule arms (or re-arms) a timer identified by (sessionKey, kind,
// segmentKey), replacing any existing one with the same key.
func (c *Clock) Schedule(after time.Duration, ev TimerEvent) {
	key := timerKey(ev.SessionKey, ev.Kind, ev.SegmentKey)
	c.mu.Lock()
	if old, ok := c.byKey[key]; ok {
		c.removeLocked(old)
	}
	it := &timerItem{at: time.Now().Add(after), event: ev, key: key}
	heap.Push(&c.h, it)
	c.byKey[key] = it
	c.mu.Unlock()
	c.poke()
}

// Cancel removes a scheduled timer if present; best-effort, race-tolerant
// with a concurrent fire per spec §5.
func (c *Clock) Cancel(sessionKey string, kind TimerKind, segmentKey string) {
	key := timerKey(sessionKey, kind, segmentKey)
	c.mu.Lock()
	if it, ok := c.byKey[key]; ok {
		c.removeLocked(it)
	}
	c.mu.Unlock()
}

func (c *Clock) removeLocked(it *timerItem) {
	heap.Remove(&c.h, it.index)
	delete(c.byKey, it.key)
}

func (c *Clock) poke() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Run processes timers until Stop is called. Meant to run in its own
// goroutine.
func (c *Clock) Run() {
	for {
		c.mu.Lock()
		var wait time.Duration
		if len(c.h) == 0 {
			wait = time.Hour
		} else {
			wait = time.Until(c.h[0].at)
			if wait < 0 {
				wait = 0
			}
		}
		c.mu.Unlock()

		select {
		case <-c.stopCh:
			return
		case <-c.wake:
			continue
		case <-time.After(wait):
		}

		c.mu.Lock()
		now := time.Now()
		var fired []TimerEvent
		for len(c.h) > 0 && !c.h[0].at.After(now) {
			it := heap.Pop(&c.h).(*timerItem)
			delete(c.byKey, it.key)
			fired = append(fired, it.event)
		}
		c.mu.Unlock()

		for _, ev := range fired {
			c.callback(ev)
		}
	}
}

// Stop halts the actor. Safe to call once.
func (c *Clock) Stop() { close(c.stopCh) }
