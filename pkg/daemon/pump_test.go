package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/dtnd/pkg/eid"
	"github.com/cuemby/dtnd/pkg/events"
	"github.com/cuemby/dtnd/pkg/link"
	"github.com/cuemby/dtnd/pkg/reg"
	"github.com/cuemby/dtnd/pkg/router"
	"github.com/stretchr/testify/require"
)

func TestPumpLinkDrainsQueueAsBundlesArrive(t *testing.T) {
	local := eid.MustParse("dtn://node/node")
	q := events.NewQueue()
	rt := router.NewStaticRouter(local)
	links := link.NewContactManager()
	regs := reg.NewTable(nil)
	d := New(local, q, rt, links, regs, newTestRegistry(), nil)

	cla := &fakeCLA{}
	l := link.New("l1", "10.0.0.1:4556", cla, link.Params{QueueDepthLimit: 10})
	require.NoError(t, l.LinkAvailable())
	require.NoError(t, l.OpenRequest())
	require.NoError(t, l.ContactUp())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.PumpLink(ctx, l)

	l.Enqueue(testBundle("dtn://far/demux"))

	require.Eventually(t, func() bool {
		return len(cla.sent) == 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 0, l.QueueLen())
	require.Equal(t, 0, l.InflightLen())
}
