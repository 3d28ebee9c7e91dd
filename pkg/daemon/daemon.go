package daemon

import (
	"context"
	"fmt"

	"github.com/cuemby/dtnd/pkg/bundle"
	"github.com/cuemby/dtnd/pkg/dtnerr"
	"github.com/cuemby/dtnd/pkg/eid"
	"github.com/cuemby/dtnd/pkg/events"
	"github.com/cuemby/dtnd/pkg/link"
	"github.com/cuemby/dtnd/pkg/log"
	"github.com/cuemby/dtnd/pkg/metrics"
	"github.com/cuemby/dtnd/pkg/reg"
	"github.com/cuemby/dtnd/pkg/router"
	"github.com/rs/zerolog"
)

// BundlePersister is the subset of pkg/store.BundleStore the daemon needs.
// Satisfied by *store.BundleStore; nil is a valid in-memory-only daemon for
// tests.
type BundlePersister interface {
	Add(b *bundle.Bundle) error
	Del(localID uint64) error
}

// Daemon is the bundle forwarding engine: one events.Queue consumer that
// delivers locally-destined bundles to registrations and asks a Router
// where everything else should go.
type Daemon struct {
	Local    eid.EID
	Queue    *events.Queue
	Router   router.Router
	Links    *link.ContactManager
	Regs     *reg.Table
	Registry *bundle.Registry
	Codec    *bundle.Codec
	Store    BundlePersister

	Stats Stats

	logger zerolog.Logger
}

// New creates a Daemon. Store may be nil (no durable persistence).
func New(local eid.EID, q *events.Queue, rt router.Router, links *link.ContactManager, regs *reg.Table, registry *bundle.Registry, store BundlePersister) *Daemon {
	return &Daemon{
		Local:    local,
		Queue:    q,
		Router:   rt,
		Links:    links,
		Regs:     regs,
		Registry: registry,
		Codec:    bundle.NewCodec(registry),
		Store:    store,
		logger:   log.WithComponent("daemon"),
	}
}

// Run drains the event queue until ctx is done or the queue is closed. It
// is meant to run in its own goroutine as the daemon's single writer.
func (d *Daemon) Run(ctx context.Context) error {
	for {
		e, ok := d.Queue.Pop(ctx)
		metrics.EventQueueDepth.Set(float64(d.Queue.Len()))
		if !ok {
			return ctx.Err()
		}
		d.handle(e)
		if e.Kind == events.Shutdown {
			return nil
		}
	}
}

func (d *Daemon) handle(e *events.Event) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.EventProcessDuration, string(e.Kind))

	switch e.Kind {
	case events.BundleReceived:
		d.onBundleReceived(e.Bundle)
	case events.BundleTransmitted:
		d.Stats.incForwarded()
		metrics.BundlesForwarded.Inc()
		d.Router.HandleEvent(router.Event{Kind: router.EventBundleTransmitted, Bundle: e.Bundle})
	case events.BundleExpired:
		d.Stats.incExpired()
		metrics.BundlesExpired.Inc()
		d.Router.HandleEvent(router.Event{Kind: router.EventBundleExpired, Bundle: e.Bundle})
		d.forget(e.Bundle)
	case events.BundleFree:
		d.forget(e.Bundle)
	case events.BundleForwardTimeout:
		d.Router.HandleEvent(router.Event{Kind: router.EventBundleForwardTimeout, Bundle: e.Bundle, LinkName: e.LinkName})
	case events.ContactUp:
		d.Router.HandleEvent(router.Event{Kind: router.EventContactUp, LinkName: e.LinkName})
	case events.ContactDown:
		d.Router.HandleEvent(router.Event{Kind: router.EventContactDown, LinkName: e.LinkName})
	case events.RouteAdd:
		d.Router.HandleEvent(router.Event{Kind: router.EventRouteAdd, Route: e.Route})
	case events.RouteDel:
		d.Router.HandleEvent(router.Event{Kind: router.EventRouteDel, Route: e.Route})
	case events.LinkCreated, events.LinkDeleted, events.LinkAvailable, events.LinkUnavailable,
		events.LinkStateChange, events.ReassemblyCompleted,
		events.RegistrationAdded, events.RegistrationRemoved, events.RegistrationExpired:
		d.logger.Debug().Str("kind", string(e.Kind)).Msg("event observed, no daemon-side action")
	case events.Shutdown:
		d.logger.Info().Msg("daemon shutting down")
	}
}

// onBundleReceived is the single entry point for a bundle newly accepted
// from a CLA or the application API: persist it, deliver it if a local
// registration matches its destination, otherwise hand it to the router.
func (d *Daemon) onBundleReceived(b *bundle.Bundle) {
	d.Stats.incReceived()
	metrics.BundlesReceived.Inc()

	b.OnFree = func(b *bundle.Bundle) {
		d.Queue.Push(&events.Event{Kind: events.BundleFree, Bundle: b})
	}

	if d.Store != nil {
		if err := d.Store.Add(b); err != nil {
			d.logger.Error().Err(err).Uint64("local_id", b.LocalID).Msg("failed to persist received bundle")
		}
	}

	matches := d.Regs.GetMatching(b.Primary.Destination)
	if len(matches) > 0 {
		d.deliverLocal(b, matches)
		b.Release()
		return
	}

	actions := d.Router.HandleEvent(router.Event{Kind: router.EventBundleReceived, Bundle: b})
	for _, a := range actions {
		if a.Kind != router.ActionEnqueueBundle {
			continue
		}
		l, ok := d.Links.Get(a.LinkName)
		if !ok {
			d.logger.Warn().Str("link", a.LinkName).Msg("router chose unknown link")
			continue
		}
		l.Enqueue(a.Bundle)
	}
	if len(actions) == 0 {
		d.Stats.incDropped()
		metrics.BundlesDropped.WithLabelValues("no_route").Inc()
	}
	b.Release()
}

// deliverLocal fans b out to every matching registration per its
// failure_action (spec §4.4): DEFER queues it for the bound application,
// ABORT drops it when no application is bound (and queues it otherwise),
// EXEC is logged as a policy decision — running the
// configured script is the admin layer's concern, not the daemon's.
func (d *Daemon) deliverLocal(b *bundle.Bundle, matches []*reg.Registration) {
	for _, r := range matches {
		switch r.FailureAction {
		case reg.FailureAbort:
			if !r.IsBound() {
				d.Stats.incDropped()
				metrics.BundlesDropped.WithLabelValues("registration_abort").Inc()
				continue
			}
			r.Enqueue(b)
		case reg.FailureExec:
			d.logger.Info().Str("endpoint", r.Endpoint.String()).Str("script", r.Script).Msg("registration failure_action=EXEC, deferring to admin layer")
			r.Enqueue(b)
		default: // FailureDefer
			r.Enqueue(b)
		}
		d.Stats.incDelivered()
		metrics.BundlesDelivered.Inc()
	}
}

// forget drops a bundle from durable storage once it is no longer
// reachable (expired, or its refcount hit zero).
func (d *Daemon) forget(b *bundle.Bundle) {
	if d.Store == nil {
		return
	}
	if err := d.Store.Del(b.LocalID); err != nil {
		d.logger.Error().Err(err).Uint64("local_id", b.LocalID).Msg("failed to delete bundle record")
	}
}

// PrepareXmit runs Prepare, then Generate, then Finalize (reverse block
// order) for every block type a link's outbound image needs, per spec
// §4.2's three-pass pipeline.
func (d *Daemon) PrepareXmit(b *bundle.Bundle, l *link.Link) (*bundle.XmitBlockList, error) {
	xb := b.XmitBlocksFor(l.Name())

	for _, blk := range b.AllBlocks() {
		proc := d.Registry.Lookup(blk.Type)
		if err := proc.Prepare(b, xb, l, l); err != nil {
			return nil, dtnerr.Protocol(fmt.Sprintf("prepare block %s for link %s", blk.Type, l.Name()), err)
		}
	}

	for i, blk := range xb.Blocks {
		proc := d.Registry.Lookup(blk.Type)
		if err := proc.Generate(b, xb, blk, l, i == len(xb.Blocks)-1); err != nil {
			return nil, fmt.Errorf("daemon: generate block %s for link %s: %w", blk.Type, l.Name(), err)
		}
	}

	for i := len(xb.Blocks) - 1; i >= 0; i-- {
		blk := xb.Blocks[i]
		proc := d.Registry.Lookup(blk.Type)
		if err := proc.Finalize(b, xb, blk, l); err != nil {
			return nil, fmt.Errorf("daemon: finalize block %s for link %s: %w", blk.Type, l.Name(), err)
		}
	}

	return xb, nil
}

// Transmit prepares b's outbound image for l, serializes it, and hands it
// to l's CLA. On success it acks the link's inflight entry and posts a
// BundleTransmitted event; the caller (typically a per-link send loop
// draining Dequeue) is expected to have already moved b from queue to
// inflight via l.Dequeue.
func (d *Daemon) Transmit(l *link.Link, b *bundle.Bundle) error {
	if _, err := d.PrepareXmit(b, l); err != nil {
		return err
	}
	wire, err := d.Codec.Produce(b, l.Name())
	if err != nil {
		return fmt.Errorf("daemon: produce wire image for link %s: %w", l.Name(), err)
	}
	if err := l.CLA.Send(l, b, wire); err != nil {
		return dtnerr.Transient(fmt.Sprintf("send on link %s", l.Name()), err)
	}
	l.Ack(b, false)
	b.DropXmitBlocksFor(l.Name())
	d.Queue.Push(&events.Event{Kind: events.BundleTransmitted, Bundle: b, LinkName: l.Name()})
	return nil
}
