package link

import (
	"fmt"
	"sync"

	"github.com/cuemby/dtnd/pkg/log"
	"github.com/rs/zerolog"
)

// ContactManager owns the set of links configured on a node, keyed by name.
// It is the single point daemon/router code goes through to look up a link
// or fan an event out to every link (e.g. on shutdown).
type ContactManager struct {
	mu     sync.RWMutex
	links  map[string]*Link
	logger zerolog.Logger
}

// NewContactManager creates an empty ContactManager.
func NewContactManager() *ContactManager {
	return &ContactManager{
		links:  make(map[string]*Link),
		logger: log.WithComponent("link.manager"),
	}
}

// Add registers a new link. It returns an error if the name is already in
// use.
func (m *ContactManager) Add(l *Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.links[l.Name()]; exists {
		return fmt.Errorf("link.manager: link %q already exists", l.Name())
	}
	m.links[l.Name()] = l
	return nil
}

// Remove issues a ShutdownRequest to the named link and drops it from the
// table.
func (m *ContactManager) Remove(name string) error {
	m.mu.Lock()
	l, ok := m.links[name]
	if ok {
		delete(m.links, name)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("link.manager: link %q not found", name)
	}
	return l.ShutdownRequest()
}

// Get looks up a link by name.
func (m *ContactManager) Get(name string) (*Link, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.links[name]
	return l, ok
}

// All returns a snapshot of every registered link.
func (m *ContactManager) All() []*Link {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Link, 0, len(m.links))
	for _, l := range m.links {
		out = append(out, l)
	}
	return out
}

// Shutdown issues ShutdownRequest to every link, collecting errors from any
// that fail rather than stopping at the first.
func (m *ContactManager) Shutdown() error {
	var firstErr error
	for _, l := range m.All() {
		if err := l.ShutdownRequest(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
