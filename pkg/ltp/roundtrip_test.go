package ltp

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/dtnd/pkg/blockproc"
	"github.com/cuemby/dtnd/pkg/bundle"
	"github.com/cuemby/dtnd/pkg/eid"
	"github.com/cuemby/dtnd/pkg/link"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testRegistry() *bundle.Registry {
	r := bundle.NewRegistry()
	r.Register(blockproc.PayloadProcessor{})
	return r
}

func testBundle(payload string) *bundle.Bundle {
	p := bundle.PrimaryBlock{
		Destination: eid.MustParse("dtn://b/demux"),
		Source:      eid.MustParse("dtn://a/demux"),
		Creation:    bundle.Timestamp{Seconds: 1, Seq: 0},
		Lifetime:    3600,
	}
	return bundle.New(p, bundle.NewMemoryPayload([]byte(payload)))
}

func testWire(t *testing.T, registry *bundle.Registry, codec *bundle.Codec, l *link.Link, b *bundle.Bundle) []byte {
	t.Helper()
	xb := b.XmitBlocksFor(l.Name())
	proc := registry.Lookup(bundle.BlockTypePayload)
	require.NoError(t, proc.Prepare(b, xb, l, l))
	for i, blk := range xb.Blocks {
		require.NoError(t, proc.Generate(b, xb, blk, l, i == len(xb.Blocks)-1))
	}
	wire, err := codec.Produce(b, l.Name())
	require.NoError(t, err)
	return wire
}

// loopback wires a Sender and Receiver together in-process: segments the
// sender emits are decoded and dispatched straight into the receiver (and
// vice versa for RS/RA/CS), skipping an actual socket.
type loopback struct {
	t       *testing.T
	clock   *Clock
	sender  *Sender
	receiver *Receiver
	delivered [][]byte
	failed    [][]*bundle.Bundle
}

func newLoopback(t *testing.T, segmentSize, aggThreshold uint64, dropFirstOnce bool) *loopback {
	lb := &loopback{t: t}
	lb.clock = NewClock(func(ev TimerEvent) {
		switch ev.Kind {
		case TimerAggregation:
			require.NoError(t, lb.sender.FlushIdle(context.Background(), ev.SessionKey))
		case TimerRetransmit:
			require.NoError(t, lb.sender.OnRetransmitTimer(context.Background(), ev))
		case TimerInactivity:
			require.NoError(t, lb.receiver.OnInactivityTimer(ev))
		case TimerRSRetransmit:
			require.NoError(t, lb.receiver.OnRSRetransmitTimer(ev))
		}
	})
	go lb.clock.Run()
	t.Cleanup(lb.clock.Stop)

	dropped := false
	senderSend := func(segment []byte) error {
		ctrl, body := segment[0], segment[1:]
		switch ControlByteClass(ctrl) {
		case SegRedData, SegGreenData:
			if dropFirstOnce && !dropped {
				dropped = true
				return nil // simulate one lost segment
			}
			d, err := DecodeDataSegment(ctrl, body)
			if err != nil {
				return err
			}
			return lb.receiver.OnDataSegment(d)
		case SegCancelSender:
			cs, err := DecodeCancelSegment(ctrl, body)
			if err != nil {
				return err
			}
			return lb.receiver.OnCancelBySender(cs)
		case SegReportAck:
			ra, err := DecodeReportAckSegment(body)
			if err != nil {
				return err
			}
			lb.receiver.OnReportAck(ra)
			return nil
		case SegCancelAckRcv:
			cas, err := DecodeCancelAckSegment(ctrl, body)
			if err != nil {
				return err
			}
			lb.receiver.OnCancelAck(cas)
			return nil
		}
		return nil
	}
	receiverSend := func(segment []byte) error {
		ctrl, body := segment[0], segment[1:]
		switch ControlByteClass(ctrl) {
		case SegReport:
			rs, err := DecodeReportSegment(body)
			if err != nil {
				return err
			}
			return lb.sender.ProcessReport(context.Background(), rs)
		case SegCancelRcv:
			cs, err := DecodeCancelSegment(ctrl, body)
			if err != nil {
				return err
			}
			return lb.sender.ProcessCancelByReceiver(cs)
		case SegCancelAckSnd:
			cas, err := DecodeCancelAckSegment(ctrl, body)
			if err != nil {
				return err
			}
			lb.sender.ProcessCancelAck(cas)
			return nil
		}
		return nil
	}

	limiter := NewRateLimiter(1<<20, 1<<20, true)
	sndCfg := SenderConfig{
		EngineID:         1,
		Reliable:         true,
		SegmentSize:      segmentSize,
		AggSizeThreshold: aggThreshold,
		AggTimeThreshold: time.Hour,
		RetransInterval:  20 * time.Millisecond,
		MaxRetries:       5,
	}
	lb.sender = NewSender(sndCfg, lb.clock, limiter, senderSend, func(bundles []*bundle.Bundle) {
		lb.failed = append(lb.failed, bundles)
	}, zerolog.Nop())

	rcvCfg := ReceiverConfig{
		InactivityTimeout: time.Hour,
		RSRetransInterval: 20 * time.Millisecond,
		MaxRSRetries:      5,
	}
	lb.receiver = NewReceiver(rcvCfg, lb.clock, receiverSend, func(buf []byte) {
		lb.delivered = append(lb.delivered, append([]byte(nil), buf...))
	}, zerolog.Nop())

	return lb
}

func TestSenderReceiverDeliversFragmentedBundle(t *testing.T) {
	registry := testRegistry()
	codec := bundle.NewCodec(registry)
	l := link.New("peer", "127.0.0.1:0", nil, link.Params{})

	b := testBundle("a payload long enough to span several ten-byte segments")
	wire := testWire(t, registry, codec, l, b)

	lb := newLoopback(t, 10, 1, false)
	require.NoError(t, lb.sender.AddBundle(context.Background(), b, wire))

	require.Eventually(t, func() bool { return len(lb.delivered) == 1 }, time.Second, 5*time.Millisecond)
	got, n, err := codec.Consume(lb.delivered[0])
	require.NoError(t, err)
	require.Equal(t, len(lb.delivered[0]), n)
	data, err := got.Payload.ReadAll()
	require.NoError(t, err)
	require.Equal(t, "a payload long enough to span several ten-byte segments", string(data))
}

func TestSenderRetransmitsOnReportedGap(t *testing.T) {
	registry := testRegistry()
	codec := bundle.NewCodec(registry)
	l := link.New("peer", "127.0.0.1:0", nil, link.Params{})

	b := testBundle("a payload long enough to span several ten-byte segments too")
	wire := testWire(t, registry, codec, l, b)

	lb := newLoopback(t, 10, 1, true) // drop exactly one DS segment once
	require.NoError(t, lb.sender.AddBundle(context.Background(), b, wire))

	require.Eventually(t, func() bool { return len(lb.delivered) == 1 }, 2*time.Second, 5*time.Millisecond)
	got, _, err := codec.Consume(lb.delivered[0])
	require.NoError(t, err)
	data, err := got.Payload.ReadAll()
	require.NoError(t, err)
	require.Equal(t, "a payload long enough to span several ten-byte segments too", string(data))
}
