package router

import (
	"fmt"
	"sync"

	"github.com/cuemby/dtnd/pkg/bundle"
	"github.com/cuemby/dtnd/pkg/eid"
)

// FloodRouter implements epidemic routing: every bundle not addressed to
// this node is enqueued to every known link except the one it arrived on.
// Links register themselves via AddLink/RemoveLink (there is no route
// table — the whole point of flooding is to not need one).
type FloodRouter struct {
	local eid.EID

	mu      sync.RWMutex
	links   map[string]struct{}
	pending map[uint64]*bundle.Bundle
	seen    map[string]struct{}
}

// NewFloodRouter creates a FloodRouter for the given local singleton EID.
func NewFloodRouter(local eid.EID) *FloodRouter {
	return &FloodRouter{
		local:   local,
		links:   make(map[string]struct{}),
		pending: make(map[uint64]*bundle.Bundle),
		seen:    make(map[string]struct{}),
	}
}

// AddLink registers a link as a flood target.
func (r *FloodRouter) AddLink(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links[name] = struct{}{}
}

// RemoveLink unregisters a link.
func (r *FloodRouter) RemoveLink(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.links, name)
}

func bundleFingerprint(b *bundle.Bundle) string {
	return fmt.Sprintf("%s|%d.%d", b.Primary.Source, b.Primary.Creation.Seconds, b.Primary.Creation.Seq)
}

// HandleEvent implements Router. A bundle is flooded exactly once: the
// fingerprint of (source, creation timestamp) dedupes re-received copies
// the way the reference epidemic implementation tracks already-forwarded
// bundle ids, so a node never re-floods a bundle it has already flooded.
func (r *FloodRouter) HandleEvent(e Event) []Action {
	switch e.Kind {
	case EventBundleReceived:
		return r.handleReceived(e.Bundle, e.LinkName)
	case EventBundleTransmitted, EventBundleExpired:
		r.mu.Lock()
		delete(r.pending, e.Bundle.LocalID)
		r.mu.Unlock()
		return nil
	default:
		return nil
	}
}

func (r *FloodRouter) handleReceived(b *bundle.Bundle, arrivedOn string) []Action {
	fp := bundleFingerprint(b)

	r.mu.Lock()
	if _, already := r.seen[fp]; already {
		r.mu.Unlock()
		return nil
	}
	r.seen[fp] = struct{}{}
	r.pending[b.LocalID] = b

	var targets []string
	for name := range r.links {
		if name == arrivedOn {
			continue
		}
		targets = append(targets, name)
	}
	r.mu.Unlock()

	actions := make([]Action, 0, len(targets))
	for _, name := range targets {
		actions = append(actions, Action{Kind: ActionEnqueueBundle, Bundle: b, LinkName: name})
	}
	return actions
}

// PendingBundles implements Router.
func (r *FloodRouter) PendingBundles() []*bundle.Bundle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*bundle.Bundle, 0, len(r.pending))
	for _, b := range r.pending {
		out = append(out, b)
	}
	return out
}

// RouteTable implements Router; flooding has no route table, so this is
// always empty.
func (r *FloodRouter) RouteTable() []RouteEntry { return nil }

// LocalEID implements Router.
func (r *FloodRouter) LocalEID() eid.EID { return r.local }
