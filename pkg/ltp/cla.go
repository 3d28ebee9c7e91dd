package ltp

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/cuemby/dtnd/pkg/bundle"
	"github.com/cuemby/dtnd/pkg/dtnerr"
	"github.com/cuemby/dtnd/pkg/events"
	"github.com/cuemby/dtnd/pkg/link"
	"github.com/cuemby/dtnd/pkg/log"
	"github.com/rs/zerolog"
)

const maxDatagramSize = 65507

// Config bundles the sender/receiver/rate tuning an LTPCLA applies to
// every peer it opens a session with.
type Config struct {
	EngineID     uint64
	Sender       SenderConfig
	Receiver     ReceiverConfig
	BytesPerSec  int
	BurstBytes   int
	WaitTillSent bool
}

type peer struct {
	addr     *net.UDPAddr
	linkName string
	sender   *Sender
	receiver *Receiver
}

// LTPCLA is a convergence layer adapter over LTP-over-UDP (spec §4.6):
// unlike TCPCLA's bundle-at-a-time stream, it aggregates bundles into
// sessions and drives its own reliability layer beneath the link state
// machine. It satisfies link.CLA.
type LTPCLA struct {
	ListenAddr string
	Queue      *events.Queue
	Codec      *bundle.Codec
	Links      *link.ContactManager
	Cfg        Config

	mu       sync.Mutex
	conn     *net.UDPConn
	byLink   map[string]*peer
	byAddr   map[string]*peer
	clock    *Clock
	logger   zerolog.Logger
}

func NewLTPCLA(listenAddr string, q *events.Queue, codec *bundle.Codec, links *link.ContactManager, cfg Config) *LTPCLA {
	t := &LTPCLA{
		ListenAddr: listenAddr,
		Queue:      q,
		Codec:      codec,
		Links:      links,
		Cfg:        cfg,
		byLink:     make(map[string]*peer),
		byAddr:     make(map[string]*peer),
		logger:     log.WithComponent("cla.ltp"),
	}
	t.clock = NewClock(t.onTimer)
	return t
}

// Bind opens the UDP socket and returns its local address.
func (t *LTPCLA) Bind() (string, error) {
	addr, err := net.ResolveUDPAddr("udp", t.ListenAddr)
	if err != nil {
		return "", dtnerr.Fatal("cla/ltp: resolve listen addr", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return "", dtnerr.Fatal("cla/ltp: listen", err)
	}
	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	return conn.LocalAddr().String(), nil
}

// Listen binds (if needed), starts the timer actor, and reads inbound
// segments until ctx is done.
func (t *LTPCLA) Listen(ctx context.Context) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		if _, err := t.Bind(); err != nil {
			return err
		}
		t.mu.Lock()
		conn = t.conn
		t.mu.Unlock()
	}

	go t.clock.Run()
	go func() {
		<-ctx.Done()
		t.clock.Stop()
		conn.Close()
	}()

	buf := make([]byte, maxDatagramSize)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			t.logger.Warn().Err(err).Msg("udp read failed")
			continue
		}
		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		t.handleDatagram(ctx, from, datagram)
	}
}

// OpenContact registers peer state for l and reports contact up
// immediately; LTP has no handshake, the first segment establishes
// reachability in practice.
func (t *LTPCLA) OpenContact(l *link.Link) error {
	addr, err := net.ResolveUDPAddr("udp", l.NextHop())
	if err != nil {
		return dtnerr.Fatal(fmt.Sprintf("cla/ltp: resolve %s", l.NextHop()), err)
	}
	p := t.newPeer(addr, l.Name())
	t.mu.Lock()
	t.byLink[l.Name()] = p
	t.byAddr[addr.String()] = p
	t.mu.Unlock()
	return l.ContactUp()
}

// CloseContact drops peer state for l. Outstanding sessions are left
// to time out rather than explicitly cancelled, matching the CLA's
// no-handshake design.
func (t *LTPCLA) CloseContact(l *link.Link) error {
	t.mu.Lock()
	p, ok := t.byLink[l.Name()]
	delete(t.byLink, l.Name())
	if ok {
		delete(t.byAddr, p.addr.String())
	}
	t.mu.Unlock()
	return nil
}

// Send hands wire to l's sender for aggregation; it may return before
// any segment actually reaches the wire (spec §4.6.2 aggregation).
func (t *LTPCLA) Send(l *link.Link, b *bundle.Bundle, wire []byte) error {
	t.mu.Lock()
	p, ok := t.byLink[l.Name()]
	t.mu.Unlock()
	if !ok {
		return dtnerr.Fatal(fmt.Sprintf("cla/ltp: send on %s", l.Name()), fmt.Errorf("no open peer"))
	}
	if err := p.sender.AddBundle(context.Background(), b, wire); err != nil {
		t.logger.Warn().Err(err).Str("link", l.Name()).Msg("aggregate/send failed, declaring contact down")
		_ = l.ContactDown(link.ReasonBroken)
		return dtnerr.Transient(fmt.Sprintf("cla/ltp: send on %s", l.Name()), err)
	}
	return nil
}

func (t *LTPCLA) newPeer(addr *net.UDPAddr, linkName string) *peer {
	p := &peer{addr: addr, linkName: linkName}
	writeTo := func(data []byte) error {
		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()
		if conn == nil {
			return fmt.Errorf("cla/ltp: no socket bound")
		}
		_, err := conn.WriteToUDP(data, addr)
		return err
	}
	limiter := NewRateLimiter(t.Cfg.BytesPerSec, t.Cfg.BurstBytes, t.Cfg.WaitTillSent)
	onFail := func(bundles []*bundle.Bundle) {
		t.logger.Warn().Str("link", linkName).Int("bundles", len(bundles)).Msg("ltp session failed, bundles undelivered")
	}
	p.sender = NewSender(t.Cfg.Sender, t.clock, limiter, writeTo, onFail, t.logger)
	p.receiver = NewReceiver(t.Cfg.Receiver, t.clock, writeTo, func(sessionBuf []byte) {
		t.deliverSession(linkName, sessionBuf)
	}, t.logger)
	return p
}

func (t *LTPCLA) deliverSession(linkName string, buf []byte) {
	for len(buf) > 0 {
		b, n, err := t.Codec.Consume(buf)
		if err != nil {
			t.logger.Warn().Err(err).Str("link", linkName).Msg("session bundle decode failed")
			return
		}
		t.Queue.Push(&events.Event{Kind: events.BundleReceived, Bundle: b, LinkName: linkName})
		buf = buf[n:]
	}
}

// handleDatagram decodes one segment and dispatches it to the
// matching peer, creating one (inbound-only, unassociated with any
// configured link) if this is the first datagram heard from addr.
func (t *LTPCLA) handleDatagram(ctx context.Context, from *net.UDPAddr, datagram []byte) {
	if len(datagram) == 0 {
		return
	}
	ctrl := datagram[0]
	body := datagram[1:]

	t.mu.Lock()
	p, ok := t.byAddr[from.String()]
	if !ok {
		p = t.newPeer(from, "")
		t.byAddr[from.String()] = p
	}
	t.mu.Unlock()

	class := ControlByteClass(ctrl)
	var err error
	switch class {
	case SegRedData, SegGreenData:
		var d *DataSegment
		d, err = DecodeDataSegment(ctrl, body)
		if err == nil {
			err = p.receiver.OnDataSegment(d)
		}
	case SegReport:
		var rs *ReportSegment
		rs, err = DecodeReportSegment(body)
		if err == nil {
			err = p.sender.ProcessReport(ctx, rs)
		}
	case SegReportAck:
		var ra *ReportAckSegment
		ra, err = DecodeReportAckSegment(body)
		if err == nil {
			p.receiver.OnReportAck(ra)
		}
	case SegCancelSender:
		var cs *CancelSegment
		cs, err = DecodeCancelSegment(ctrl, body)
		if err == nil {
			err = p.receiver.OnCancelBySender(cs)
		}
	case SegCancelRcv:
		var cs *CancelSegment
		cs, err = DecodeCancelSegment(ctrl, body)
		if err == nil {
			err = p.sender.ProcessCancelByReceiver(cs)
		}
	case SegCancelAckRcv:
		var cas *CancelAckSegment
		cas, err = DecodeCancelAckSegment(ctrl, body)
		if err == nil {
			p.receiver.OnCancelAck(cas)
		}
	case SegCancelAckSnd:
		var cas *CancelAckSegment
		cas, err = DecodeCancelAckSegment(ctrl, body)
		if err == nil {
			p.sender.ProcessCancelAck(cas)
		}
	default:
		err = fmt.Errorf("cla/ltp: unknown segment class %#x", ctrl)
	}
	if err != nil {
		t.logger.Warn().Err(err).Str("from", from.String()).Msg("segment handling failed")
	}
}

// onTimer is the Clock callback. A fired timer names a session key but
// not which peer owns it, so it is offered to every peer's sender or
// receiver; each looks the key up in its own session map and no-ops if
// it isn't theirs. Fine at the session counts this CLA is expected to
// carry per node; a sessionKey->peer index would trade this scan for
// bookkeeping on every session open/close if it ever stops being fine.
func (t *LTPCLA) onTimer(ev TimerEvent) {
	t.mu.Lock()
	candidates := make([]*peer, 0, len(t.byAddr))
	for _, cand := range t.byAddr {
		candidates = append(candidates, cand)
	}
	t.mu.Unlock()

	ctx := context.Background()
	for _, cand := range candidates {
		switch ev.Kind {
		case TimerAggregation:
			if err := cand.sender.FlushIdle(ctx, ev.SessionKey); err != nil {
				t.logger.Warn().Err(err).Msg("aggregation flush failed")
			}
		case TimerRetransmit:
			if err := cand.sender.OnRetransmitTimer(ctx, ev); err != nil {
				t.logger.Warn().Err(err).Msg("retransmit timer handling failed")
			}
		case TimerInactivity:
			if err := cand.receiver.OnInactivityTimer(ev); err != nil {
				t.logger.Warn().Err(err).Msg("inactivity timer handling failed")
			}
		case TimerRSRetransmit:
			if err := cand.receiver.OnRSRetransmitTimer(ev); err != nil {
				t.logger.Warn().Err(err).Msg("RS retransmit timer handling failed")
			}
		}
	}
}
