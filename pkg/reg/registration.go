package reg

import (
	"fmt"
	"sync"

	"github.com/cuemby/dtnd/pkg/bundle"
	"github.com/cuemby/dtnd/pkg/eid"
)

// MaxReservedRegID is the upper bound of the reserved regid range (admin,
// ping) that is never persisted — these bindings are recreated fresh at
// every daemon startup.
const MaxReservedRegID = 10

// FailureAction governs what happens when a bundle matches a registration
// that has no application attached to drain its queue.
type FailureAction uint8

const (
	// FailureDefer stores the bundle on the registration's own queue for
	// later delivery once an application binds.
	FailureDefer FailureAction = iota
	// FailureAbort drops the bundle. No failure report is sent back to the
	// bundle's source.
	FailureAbort
	// FailureExec names an external script (Script) for the bundle. The
	// daemon logs the decision; nothing in this module runs the script.
	FailureExec
)

// Registration is an application-level binding between an endpoint pattern
// and a local delivery queue.
type Registration struct {
	RegID         uint64
	Endpoint      eid.EID // may contain wildcard segments, matched via eid.Match
	FailureAction FailureAction
	Script        string // external command, only meaningful when FailureAction == FailureExec

	mu    sync.Mutex
	queue []*bundle.Bundle
	bound bool
}

func (r *Registration) IsPersisted() bool { return r.RegID > MaxReservedRegID }

// Bind marks the registration as having an attached application (§9 Open
// Question #2: one binding per registration, not a poll-vector of many).
func (r *Registration) Bind() {
	r.mu.Lock()
	r.bound = true
	r.mu.Unlock()
}

// Unbind clears the attached application, reverting to queueing per
// FailureAction.
func (r *Registration) Unbind() {
	r.mu.Lock()
	r.bound = false
	r.mu.Unlock()
}

func (r *Registration) IsBound() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bound
}

// Enqueue appends a bundle to the registration's deferred-delivery queue.
func (r *Registration) Enqueue(b *bundle.Bundle) {
	r.mu.Lock()
	r.queue = append(r.queue, b.Retain())
	r.mu.Unlock()
}

// Dequeue pops the oldest queued bundle, or nil if the queue is empty.
func (r *Registration) Dequeue() *bundle.Bundle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return nil
	}
	b := r.queue[0]
	r.queue = r.queue[1:]
	return b
}

// QueueLen reports how many bundles are waiting for delivery.
func (r *Registration) QueueLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Persister is the durable side of the table; pkg/store's RegistrationStore
// satisfies it. Registrations with RegID <= MaxReservedRegID never reach
// it.
type Persister interface {
	Add(reg *Registration) error
	Del(regID uint64) error
	Update(reg *Registration) error
}

// Table is the flat, mutex-protected registration list. A failed persist
// during Add/Remove rolls back the in-memory change — the spec
// treats storage failure on these paths as fatal for the operation, not
// for the daemon.
type Table struct {
	mu     sync.RWMutex
	byID   map[uint64]*Registration
	store  Persister
	nextID uint64
}

// NewTable creates an empty table backed by store. store may be nil for
// tests that only exercise in-memory matching.
func NewTable(store Persister) *Table {
	return &Table{
		byID:   make(map[uint64]*Registration),
		store:  store,
		nextID: MaxReservedRegID + 1,
	}
}

// Add inserts reg, assigning a fresh RegID if it is zero. Persistence
// failure for a RegID above MaxReservedRegID rolls the insert back.
func (t *Table) Add(reg *Registration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if reg.RegID == 0 {
		reg.RegID = t.nextID
		t.nextID++
	}
	if _, exists := t.byID[reg.RegID]; exists {
		return fmt.Errorf("reg: regid %d already registered", reg.RegID)
	}
	t.byID[reg.RegID] = reg

	if reg.IsPersisted() && t.store != nil {
		if err := t.store.Add(reg); err != nil {
			delete(t.byID, reg.RegID)
			return fmt.Errorf("reg: persist add: %w", err)
		}
	}
	return nil
}

// Remove deletes the registration with the given id.
func (t *Table) Remove(regID uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	reg, ok := t.byID[regID]
	if !ok {
		return fmt.Errorf("reg: regid %d not found", regID)
	}
	delete(t.byID, regID)

	if reg.IsPersisted() && t.store != nil {
		if err := t.store.Del(regID); err != nil {
			t.byID[regID] = reg
			return fmt.Errorf("reg: persist del: %w", err)
		}
	}
	return nil
}

// Get returns the registration with the given id.
func (t *Table) Get(regID uint64) (*Registration, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	reg, ok := t.byID[regID]
	return reg, ok
}

// GetMatching returns every registration whose endpoint pattern matches
// demux, copying pointers out under the lock before the caller acts on
// them (spec §5's long-traversal rule).
func (t *Table) GetMatching(demux eid.EID) []*Registration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []*Registration
	for _, reg := range t.byID {
		if eid.Match(reg.Endpoint, demux) {
			out = append(out, reg)
		}
	}
	return out
}

// All returns every registration, pointers copied out under the lock.
func (t *Table) All() []*Registration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Registration, 0, len(t.byID))
	for _, reg := range t.byID {
		out = append(out, reg)
	}
	return out
}
