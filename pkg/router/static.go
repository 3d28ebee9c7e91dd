package router

import (
	"sync"

	"github.com/cuemby/dtnd/pkg/bundle"
	"github.com/cuemby/dtnd/pkg/eid"
)

// StaticRouter consults an operator-maintained route table. On
// BundleReceived it enqueues the bundle to every matching link under
// FORWARD_COPY, or to the first matching link only under FORWARD_UNIQUE.
// Bundles stay in the pending table (spec §4.5: "accepted but not yet
// delivered/acked") until a BundleTransmitted or BundleExpired event
// removes them.
type StaticRouter struct {
	local eid.EID

	mu      sync.RWMutex
	routes  []RouteEntry
	pending map[uint64]*bundle.Bundle
}

// NewStaticRouter creates a StaticRouter for the given local singleton EID.
func NewStaticRouter(local eid.EID) *StaticRouter {
	return &StaticRouter{
		local:   local,
		pending: make(map[uint64]*bundle.Bundle),
	}
}

// AddRoute appends a route table entry.
func (r *StaticRouter) AddRoute(e RouteEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, e)
}

// DelRoute removes every route entry whose pattern and link name both match.
func (r *StaticRouter) DelRoute(pattern eid.EID, linkName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.routes[:0]
	for _, e := range r.routes {
		if e.Pattern == pattern && e.LinkName == linkName {
			continue
		}
		kept = append(kept, e)
	}
	r.routes = kept
}

func (r *StaticRouter) matches(dest eid.EID) []RouteEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []RouteEntry
	for _, e := range r.routes {
		if eid.Match(e.Pattern, dest) {
			out = append(out, e)
		}
	}
	return out
}

// HandleEvent implements Router.
func (r *StaticRouter) HandleEvent(e Event) []Action {
	switch e.Kind {
	case EventBundleReceived:
		return r.handleReceived(e.Bundle)
	case EventBundleTransmitted, EventBundleExpired:
		r.mu.Lock()
		delete(r.pending, e.Bundle.LocalID)
		r.mu.Unlock()
		return nil
	case EventRouteAdd:
		r.AddRoute(e.Route)
		return nil
	case EventRouteDel:
		r.DelRoute(e.Route.Pattern, e.Route.LinkName)
		return nil
	default:
		return nil
	}
}

func (r *StaticRouter) handleReceived(b *bundle.Bundle) []Action {
	r.mu.Lock()
	r.pending[b.LocalID] = b
	r.mu.Unlock()

	matches := r.matches(b.Primary.Destination)
	if len(matches) == 0 {
		return nil
	}

	var actions []Action
	for _, m := range matches {
		actions = append(actions, Action{Kind: ActionEnqueueBundle, Bundle: b, LinkName: m.LinkName})
		if m.ForwardMode == ForwardUnique {
			break
		}
	}
	return actions
}

// PendingBundles implements Router.
func (r *StaticRouter) PendingBundles() []*bundle.Bundle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*bundle.Bundle, 0, len(r.pending))
	for _, b := range r.pending {
		out = append(out, b)
	}
	return out
}

// RouteTable implements Router.
func (r *StaticRouter) RouteTable() []RouteEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RouteEntry, len(r.routes))
	copy(out, r.routes)
	return out
}

// LocalEID implements Router.
func (r *StaticRouter) LocalEID() eid.EID { return r.local }
