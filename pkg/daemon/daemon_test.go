package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/dtnd/pkg/blockproc"
	"github.com/cuemby/dtnd/pkg/bundle"
	"github.com/cuemby/dtnd/pkg/eid"
	"github.com/cuemby/dtnd/pkg/events"
	"github.com/cuemby/dtnd/pkg/link"
	"github.com/cuemby/dtnd/pkg/reg"
	"github.com/cuemby/dtnd/pkg/router"
	"github.com/stretchr/testify/require"
)

type fakeCLA struct {
	sent [][]byte
}

func (f *fakeCLA) OpenContact(l *link.Link) error  { return nil }
func (f *fakeCLA) CloseContact(l *link.Link) error { return nil }
func (f *fakeCLA) Send(l *link.Link, b *bundle.Bundle, wire []byte) error {
	f.sent = append(f.sent, wire)
	return nil
}

func newTestRegistry() *bundle.Registry {
	r := bundle.NewRegistry()
	r.Register(blockproc.PayloadProcessor{})
	r.Register(blockproc.AgeProcessor{})
	return r
}

func testBundle(dest string) *bundle.Bundle {
	p := bundle.PrimaryBlock{
		Destination: eid.MustParse(dest),
		Source:      eid.MustParse("dtn://a/demux"),
		Creation:    bundle.Timestamp{Seconds: 1, Seq: 0},
		Lifetime:    3600,
	}
	b := bundle.New(p, bundle.NewMemoryPayload([]byte("hello")))
	b.APIBlocks = append(b.APIBlocks, &bundle.Block{
		Type:      bundle.BlockTypePayload,
		Data:      []byte("hello"),
		Processor: blockproc.PayloadProcessor{},
	})
	return b
}

func TestDaemonDeliversToLocalRegistration(t *testing.T) {
	local := eid.MustParse("dtn://node/node")
	q := events.NewQueue()
	rt := router.NewStaticRouter(local)
	links := link.NewContactManager()
	regs := reg.NewTable(nil)

	r := &reg.Registration{RegID: reg.MaxReservedRegID + 1, Endpoint: eid.MustParse("dtn://node/app"), FailureAction: reg.FailureDefer}
	require.NoError(t, regs.Add(r))

	d := New(local, q, rt, links, regs, newTestRegistry(), nil)

	b := testBundle("dtn://node/app")
	d.onBundleReceived(b)

	require.Equal(t, 1, r.QueueLen())
	require.Equal(t, uint64(1), d.Stats.Snapshot().Delivered)
}

func TestDaemonForwardsViaStaticRouter(t *testing.T) {
	local := eid.MustParse("dtn://node/node")
	q := events.NewQueue()
	rt := router.NewStaticRouter(local)
	rt.AddRoute(router.RouteEntry{Pattern: eid.MustParse("dtn://far/*"), LinkName: "l1", ForwardMode: router.ForwardCopy})

	links := link.NewContactManager()
	cla := &fakeCLA{}
	l := link.New("l1", "10.0.0.1:4556", cla, link.Params{QueueDepthLimit: 10})
	require.NoError(t, l.LinkAvailable())
	require.NoError(t, l.OpenRequest())
	require.NoError(t, l.ContactUp())
	require.NoError(t, links.Add(l))

	regs := reg.NewTable(nil)
	registry := newTestRegistry()
	d := New(local, q, rt, links, regs, registry, nil)

	b := testBundle("dtn://far/demux")
	d.onBundleReceived(b)
	require.Equal(t, 1, l.QueueLen())

	queued := l.Dequeue()
	require.NotNil(t, queued)
	require.NoError(t, d.Transmit(l, queued))
	require.Len(t, cla.sent, 1)
	require.Equal(t, 0, l.InflightLen())
}

func TestDaemonRunProcessesShutdown(t *testing.T) {
	local := eid.MustParse("dtn://node/node")
	q := events.NewQueue()
	rt := router.NewStaticRouter(local)
	links := link.NewContactManager()
	regs := reg.NewTable(nil)
	d := New(local, q, rt, links, regs, newTestRegistry(), nil)

	q.Push(&events.Event{Kind: events.Shutdown})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Run(ctx))
}

func TestDaemonDropsWithNoRouteOrRegistration(t *testing.T) {
	local := eid.MustParse("dtn://node/node")
	q := events.NewQueue()
	rt := router.NewStaticRouter(local)
	links := link.NewContactManager()
	regs := reg.NewTable(nil)
	d := New(local, q, rt, links, regs, newTestRegistry(), nil)

	b := testBundle("dtn://nowhere/demux")
	d.onBundleReceived(b)
	require.Equal(t, uint64(1), d.Stats.Snapshot().Dropped)
}
