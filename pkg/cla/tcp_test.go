package cla

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/dtnd/pkg/blockproc"
	"github.com/cuemby/dtnd/pkg/bundle"
	"github.com/cuemby/dtnd/pkg/eid"
	"github.com/cuemby/dtnd/pkg/events"
	"github.com/cuemby/dtnd/pkg/link"
	"github.com/stretchr/testify/require"
)

func testRegistry() *bundle.Registry {
	r := bundle.NewRegistry()
	r.Register(blockproc.PayloadProcessor{})
	return r
}

func testBundle() *bundle.Bundle {
	p := bundle.PrimaryBlock{
		Destination: eid.MustParse("dtn://b/demux"),
		Source:      eid.MustParse("dtn://a/demux"),
		Creation:    bundle.Timestamp{Seconds: 1, Seq: 0},
		Lifetime:    3600,
	}
	return bundle.New(p, bundle.NewMemoryPayload([]byte("hello over tcp")))
}

func TestTCPCLARoundTrip(t *testing.T) {
	registry := testRegistry()
	codec := bundle.NewCodec(registry)

	serverQueue := events.NewQueue()
	server := NewTCPCLA("127.0.0.1:0", serverQueue, codec, link.NewContactManager())
	addr, err := server.Bind()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Listen(ctx)

	clientLinks := link.NewContactManager()
	clientQueue := events.NewQueue()
	client := NewTCPCLA("", clientQueue, codec, clientLinks)

	l := link.New("toserver", addr, client, link.Params{QueueDepthLimit: 10})
	require.NoError(t, l.LinkAvailable())
	require.NoError(t, l.OpenRequest())
	require.Equal(t, link.StateOpen, l.State())
	require.NoError(t, clientLinks.Add(l))

	b := testBundle()
	xb := b.XmitBlocksFor(l.Name())
	proc := registry.Lookup(bundle.BlockTypePayload)
	require.NoError(t, proc.Prepare(b, xb, l, l))
	for i, blk := range xb.Blocks {
		require.NoError(t, proc.Generate(b, xb, blk, l, i == len(xb.Blocks)-1))
	}
	wire, err := codec.Produce(b, l.Name())
	require.NoError(t, err)

	require.NoError(t, client.Send(l, b, wire))

	ctxWait, cancelWait := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelWait()
	e, ok := serverQueue.Pop(ctxWait)
	require.True(t, ok)
	require.Equal(t, events.BundleReceived, e.Kind)
	require.Equal(t, "dtn://a/demux", e.Bundle.Primary.Source.String())
	data, err := e.Bundle.Payload.ReadAll()
	require.NoError(t, err)
	require.Equal(t, "hello over tcp", string(data))
}
