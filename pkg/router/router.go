package router

import (
	"github.com/cuemby/dtnd/pkg/bundle"
	"github.com/cuemby/dtnd/pkg/eid"
)

// EventKind tags the event union a Router reacts to. It mirrors the subset
// of daemon events (spec §4.1) that actually drive routing decisions; the
// daemon carries a richer event set of its own and narrows to this one when
// calling a Router.
type EventKind uint8

const (
	EventBundleReceived EventKind = iota
	EventBundleExpired
	EventBundleTransmitted
	EventBundleForwardTimeout
	EventContactUp
	EventContactDown
	EventRouteAdd
	EventRouteDel
)

// Event is one routing-relevant occurrence handed to Router.HandleEvent.
type Event struct {
	Kind     EventKind
	Bundle   *bundle.Bundle
	LinkName string
	Route    RouteEntry
}

// ActionKind tags the forwarding decisions a Router emits.
type ActionKind uint8

const (
	ActionEnqueueBundle ActionKind = iota
	ActionDeleteBundle
)

// Action is one forwarding decision a Router returns from HandleEvent, for
// the daemon to execute (typically: hand Bundle to the named Link's queue).
type Action struct {
	Kind     ActionKind
	Bundle   *bundle.Bundle
	LinkName string
}

// ForwardMode governs whether a route table entry matching multiple links
// sends a copy to each (FORWARD_COPY) or picks exactly one (FORWARD_UNIQUE).
type ForwardMode uint8

const (
	ForwardCopy ForwardMode = iota
	ForwardUnique
)

// RouteEntry binds a destination pattern to a next-hop link.
type RouteEntry struct {
	Pattern     eid.EID
	LinkName    string
	ForwardMode ForwardMode
}

// Router is the pluggable routing strategy (spec §4.5): it reacts to events
// with forwarding actions and exposes enough introspection (pending
// bundles, route table, local EID) for admin tooling to report on it.
type Router interface {
	HandleEvent(e Event) []Action
	PendingBundles() []*bundle.Bundle
	RouteTable() []RouteEntry
	LocalEID() eid.EID
}
