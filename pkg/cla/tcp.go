package cla

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/cuemby/dtnd/pkg/bundle"
	"github.com/cuemby/dtnd/pkg/dtnerr"
	"github.com/cuemby/dtnd/pkg/events"
	"github.com/cuemby/dtnd/pkg/link"
	"github.com/cuemby/dtnd/pkg/log"
	"github.com/cuemby/dtnd/pkg/sdnv"
	"github.com/rs/zerolog"
)

// DialTimeout bounds how long OpenContact waits for the TCP handshake.
const DialTimeout = 10 * time.Second

// TCPCLA is a bundle-at-a-time convergence layer over a plain TCP stream:
// each bundle's wire image is framed by an SDNV length prefix, one
// persistent bidirectional connection carries both directions of traffic
// for a link once opened. It satisfies link.CLA.
type TCPCLA struct {
	ListenAddr string
	Queue      *events.Queue
	Codec      *bundle.Codec
	Links      *link.ContactManager

	mu        sync.Mutex
	listener  net.Listener
	conns     map[string]net.Conn // link name -> persistent conn
	writeMu   map[string]*sync.Mutex
	logger    zerolog.Logger
}

// NewTCPCLA creates a CLA that frames bundles over TCP. listenAddr may be
// empty to accept no inbound connections (outbound-only node).
func NewTCPCLA(listenAddr string, q *events.Queue, codec *bundle.Codec, links *link.ContactManager) *TCPCLA {
	return &TCPCLA{
		ListenAddr: listenAddr,
		Queue:      q,
		Codec:      codec,
		Links:      links,
		conns:      make(map[string]net.Conn),
		writeMu:    make(map[string]*sync.Mutex),
		logger:     log.WithComponent("cla.tcp"),
	}
}

// Bind opens the listening socket and returns its address (useful when
// ListenAddr asks for an ephemeral port via ":0"). Call Serve afterward to
// run the accept loop.
func (t *TCPCLA) Bind() (string, error) {
	ln, err := net.Listen("tcp", t.ListenAddr)
	if err != nil {
		return "", dtnerr.Fatal("cla/tcp: listen", err)
	}
	t.mu.Lock()
	t.listener = ln
	t.mu.Unlock()
	return ln.Addr().String(), nil
}

// Listen binds (if not already bound via Bind) and accepts inbound
// connections until ctx is done. Inbound connections are not associated
// with any configured link, so bundles received on them carry no
// LinkName — routers that need one use an outbound contact instead.
func (t *TCPCLA) Listen(ctx context.Context) error {
	if t.ListenAddr == "" {
		return nil
	}
	t.mu.Lock()
	ln := t.listener
	t.mu.Unlock()
	if ln == nil {
		if _, err := t.Bind(); err != nil {
			return err
		}
		t.mu.Lock()
		ln = t.listener
		t.mu.Unlock()
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			t.logger.Warn().Err(err).Msg("accept failed")
			continue
		}
		go t.serveConn(conn, "")
	}
}

// OpenContact dials l's next hop. On success it registers the connection,
// starts the inbound reader, and reports ContactUp itself — open_contact
// is asynchronous per the CLA interface's own contract, and a TCP dial is
// the one part of that contract this CLA can satisfy synchronously.
func (t *TCPCLA) OpenContact(l *link.Link) error {
	conn, err := net.DialTimeout("tcp", l.NextHop(), DialTimeout)
	if err != nil {
		return dtnerr.Fatal(fmt.Sprintf("cla/tcp: dial %s", l.NextHop()), err)
	}

	t.mu.Lock()
	t.conns[l.Name()] = conn
	t.writeMu[l.Name()] = &sync.Mutex{}
	t.mu.Unlock()

	go t.serveConn(conn, l.Name())

	if err := l.ContactUp(); err != nil {
		return dtnerr.Fatal(fmt.Sprintf("cla/tcp: contact up %s", l.Name()), err)
	}
	return nil
}

// CloseContact tears down the persistent connection for l.
func (t *TCPCLA) CloseContact(l *link.Link) error {
	t.mu.Lock()
	conn, ok := t.conns[l.Name()]
	delete(t.conns, l.Name())
	delete(t.writeMu, l.Name())
	t.mu.Unlock()
	if !ok {
		return nil
	}
	return conn.Close()
}

// Send writes wire, framed by an SDNV length prefix, to l's connection.
func (t *TCPCLA) Send(l *link.Link, b *bundle.Bundle, wire []byte) error {
	t.mu.Lock()
	conn, ok := t.conns[l.Name()]
	wmu := t.writeMu[l.Name()]
	t.mu.Unlock()
	if !ok {
		return dtnerr.Fatal(fmt.Sprintf("cla/tcp: send on %s", l.Name()), fmt.Errorf("no open connection"))
	}

	frame := sdnv.Encode(nil, uint64(len(wire)))
	frame = append(frame, wire...)

	wmu.Lock()
	_, err := conn.Write(frame)
	wmu.Unlock()
	if err != nil {
		t.logger.Warn().Err(err).Str("link", l.Name()).Msg("write failed, declaring contact down")
		_ = l.ContactDown(link.ReasonBroken)
		return dtnerr.Transient(fmt.Sprintf("cla/tcp: write on %s", l.Name()), err)
	}
	return nil
}

// serveConn reads length-prefixed bundle frames off conn until it closes
// or errors, posting BundleReceived for each. linkName is empty for
// connections this CLA did not dial itself.
func (t *TCPCLA) serveConn(conn net.Conn, linkName string) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	for {
		length, err := readFrameLength(r)
		if err != nil {
			if err != io.EOF {
				t.logger.Debug().Err(err).Str("link", linkName).Msg("frame length read failed")
			}
			break
		}

		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			t.logger.Warn().Err(err).Str("link", linkName).Msg("short frame body")
			break
		}

		b, _, err := t.Codec.Consume(buf)
		if err != nil {
			t.logger.Warn().Err(err).Str("link", linkName).Msg("bundle decode failed, dropping connection")
			break
		}
		t.Queue.Push(&events.Event{Kind: events.BundleReceived, Bundle: b, LinkName: linkName})
	}

	if linkName != "" && t.Links != nil {
		if l, ok := t.Links.Get(linkName); ok {
			_ = l.ContactDown(link.ReasonBroken)
		}
	}
}

// readFrameLength decodes one SDNV off r a byte at a time, tolerating
// whatever read granularity the bufio.Reader gives back.
func readFrameLength(r *bufio.Reader) (uint64, error) {
	var sr sdnv.Reader
	for !sr.Done() {
		c, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		sr.Feed([]byte{c})
	}
	return sr.Value(), nil
}
