package router

import (
	"testing"

	"github.com/cuemby/dtnd/pkg/bundle"
	"github.com/cuemby/dtnd/pkg/eid"
	"github.com/stretchr/testify/require"
)

func testBundle(source string, seq uint64) *bundle.Bundle {
	p := bundle.PrimaryBlock{
		Destination: eid.MustParse("dtn://b/demux"),
		Source:      eid.MustParse(source),
		Creation:    bundle.Timestamp{Seconds: 100, Seq: seq},
		Lifetime:    3600,
	}
	return bundle.New(p, bundle.NewMemoryPayload([]byte("x")))
}

func TestStaticRouterForwardCopyToAllMatches(t *testing.T) {
	r := NewStaticRouter(eid.MustParse("dtn://a/node"))
	r.AddRoute(RouteEntry{Pattern: eid.MustParse("dtn://b/*"), LinkName: "l1", ForwardMode: ForwardCopy})
	r.AddRoute(RouteEntry{Pattern: eid.MustParse("dtn://b/*"), LinkName: "l2", ForwardMode: ForwardCopy})

	b := testBundle("dtn://a/demux", 1)
	actions := r.HandleEvent(Event{Kind: EventBundleReceived, Bundle: b})
	require.Len(t, actions, 2)
	require.Len(t, r.PendingBundles(), 1)
}

func TestStaticRouterForwardUniquePicksFirst(t *testing.T) {
	r := NewStaticRouter(eid.MustParse("dtn://a/node"))
	r.AddRoute(RouteEntry{Pattern: eid.MustParse("dtn://b/*"), LinkName: "l1", ForwardMode: ForwardUnique})
	r.AddRoute(RouteEntry{Pattern: eid.MustParse("dtn://b/*"), LinkName: "l2", ForwardMode: ForwardUnique})

	b := testBundle("dtn://a/demux", 1)
	actions := r.HandleEvent(Event{Kind: EventBundleReceived, Bundle: b})
	require.Len(t, actions, 1)
	require.Equal(t, "l1", actions[0].LinkName)
}

func TestStaticRouterTransmittedClearsPending(t *testing.T) {
	r := NewStaticRouter(eid.MustParse("dtn://a/node"))
	b := testBundle("dtn://a/demux", 1)
	r.HandleEvent(Event{Kind: EventBundleReceived, Bundle: b})
	require.Len(t, r.PendingBundles(), 1)

	r.HandleEvent(Event{Kind: EventBundleTransmitted, Bundle: b})
	require.Empty(t, r.PendingBundles())
}

func TestStaticRouterNoMatchReturnsNoActions(t *testing.T) {
	r := NewStaticRouter(eid.MustParse("dtn://a/node"))
	b := testBundle("dtn://a/demux", 1)
	actions := r.HandleEvent(Event{Kind: EventBundleReceived, Bundle: b})
	require.Empty(t, actions)
}

func TestFloodRouterForwardsToEveryLinkButOrigin(t *testing.T) {
	r := NewFloodRouter(eid.MustParse("dtn://a/node"))
	r.AddLink("l1")
	r.AddLink("l2")
	r.AddLink("l3")

	b := testBundle("dtn://x/demux", 1)
	actions := r.HandleEvent(Event{Kind: EventBundleReceived, Bundle: b, LinkName: "l2"})
	require.Len(t, actions, 2)
	for _, a := range actions {
		require.NotEqual(t, "l2", a.LinkName)
	}
}

func TestFloodRouterDoesNotRefloodSameBundle(t *testing.T) {
	r := NewFloodRouter(eid.MustParse("dtn://a/node"))
	r.AddLink("l1")

	b := testBundle("dtn://x/demux", 1)
	first := r.HandleEvent(Event{Kind: EventBundleReceived, Bundle: b, LinkName: "l2"})
	require.Len(t, first, 1)

	second := r.HandleEvent(Event{Kind: EventBundleReceived, Bundle: b, LinkName: "l3"})
	require.Empty(t, second)
}

func TestFloodRouterRemoveLink(t *testing.T) {
	r := NewFloodRouter(eid.MustParse("dtn://a/node"))
	r.AddLink("l1")
	r.RemoveLink("l1")

	b := testBundle("dtn://x/demux", 1)
	actions := r.HandleEvent(Event{Kind: EventBundleReceived, Bundle: b})
	require.Empty(t, actions)
}
