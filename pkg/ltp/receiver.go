package ltp

import (
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/dtnd/pkg/dtnerr"
	"github.com/rs/zerolog"
)

// ReceiverConfig governs inbound session bookkeeping (spec §4.6.3).
type ReceiverConfig struct {
	InactivityTimeout time.Duration
	RSRetransInterval time.Duration
	MaxRSRetries      int
}

// DeliverFunc hands a fully-reassembled session buffer back to the
// caller, which is expected to run it through the bundle codec: LTP
// aggregates bundle-at-a-time wire output into one session buffer, so
// one buffer may contain more than one bundle back to back.
type DeliverFunc func(buf []byte)

// Receiver reassembles inbound LTP sessions from DS segments and
// answers with report segments (spec §4.6.3).
type Receiver struct {
	cfg     ReceiverConfig
	clock   *Clock
	send    SendFunc
	deliver DeliverFunc
	logger  zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*ReceiverSession
}

func NewReceiver(cfg ReceiverConfig, clock *Clock, send SendFunc, deliver DeliverFunc, logger zerolog.Logger) *Receiver {
	return &Receiver{
		cfg:      cfg,
		clock:    clock,
		send:     send,
		deliver:  deliver,
		logger:   logger.With().Str("component", "ltp-receiver").Logger(),
		sessions: make(map[string]*ReceiverSession),
	}
}

func (r *Receiver) getOrCreate(id SessionID) *ReceiverSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id.Key()]
	if !ok {
		sess = newReceiverSession(id)
		r.sessions[id.Key()] = sess
	}
	return sess
}

// OnDataSegment ingests one DS, updates reassembly state, rearms the
// inactivity timer, and generates a report segment when the segment
// carries a checkpoint (spec §4.6.3). A green DS whose client service id
// is neither 1 nor 2 is dropped with a policy error.
func (r *Receiver) OnDataSegment(d *DataSegment) error {
	if !d.Red && d.ClientService != 1 && d.ClientService != 2 {
		return dtnerr.Policy("ltp: green data segment", fmt.Errorf("client service id %d not accepted", d.ClientService))
	}
	sess := r.getOrCreate(d.Session)

	sess.mu.Lock()
	sess.mergeRange(d.Offset, d.Length)
	sess.RedBuf[d.Offset] = d.Data
	sess.LastSegment = time.Now()
	if d.IsEndOfBlock() {
		sess.TotalLength = d.Offset + d.Length
		sess.TotalKnown = true
		sess.EOBSeen = true
	}
	checkpoint := d.IsCheckpoint()
	sess.mu.Unlock()

	r.clock.Schedule(r.cfg.InactivityTimeout, TimerEvent{
		Kind:       TimerInactivity,
		SessionKey: d.Session.Key(),
	})

	if checkpoint {
		if err := r.sendReport(sess, d.Offset+d.Length); err != nil {
			return err
		}
	}

	r.tryDeliver(sess)
	return nil
}

func (r *Receiver) sendReport(sess *ReceiverSession, upperBound uint64) error {
	sess.mu.Lock()
	sess.ReportsSent++
	serial := uint64(sess.ReportsSent)
	rs := &ReportSegment{
		Session:      sess.ID,
		ReportSerial: serial,
		UpperBound:   upperBound,
		LowerBound:   0,
		Claims:       append([]Claim(nil), sess.RedRanges...),
	}
	sess.OutstandingRS[serial] = rs
	sess.mu.Unlock()

	if err := r.send(rs.Encode()); err != nil {
		return fmt.Errorf("ltp: send RS: %w", err)
	}
	r.clock.Schedule(r.cfg.RSRetransInterval, TimerEvent{
		Kind:         TimerRSRetransmit,
		SessionKey:   sess.ID.Key(),
		CheckpointID: serial,
	})
	return nil
}

// tryDeliver hands the assembled buffer to deliver() and tears the
// session down once its declared total length is fully covered.
func (r *Receiver) tryDeliver(sess *ReceiverSession) {
	sess.mu.Lock()
	if !sess.TotalKnown || !sess.coversPrefix(sess.TotalLength) {
		sess.mu.Unlock()
		return
	}
	buf := make([]byte, sess.TotalLength)
	for off, data := range sess.RedBuf {
		copy(buf[off:], data)
	}
	sess.mu.Unlock()

	r.mu.Lock()
	if r.sessions[sess.ID.Key()] != sess {
		r.mu.Unlock()
		return // already delivered and torn down by another call
	}
	delete(r.sessions, sess.ID.Key())
	r.mu.Unlock()
	r.clock.Cancel(sess.ID.Key(), TimerInactivity, "")

	if r.deliver != nil {
		r.deliver(buf)
	}
}

// OnReportAck handles an RA acknowledging one of our sent RS, stopping
// its retransmit timer.
func (r *Receiver) OnReportAck(ra *ReportAckSegment) {
	r.mu.Lock()
	sess, ok := r.sessions[ra.Session.Key()]
	r.mu.Unlock()
	if !ok {
		return
	}
	sess.mu.Lock()
	delete(sess.OutstandingRS, ra.ReportSerial)
	sess.mu.Unlock()
	r.clock.Cancel(ra.Session.Key(), TimerRSRetransmit, "")
}

// OnCancelBySender handles a CS_BS: the peer gave up on the session.
func (r *Receiver) OnCancelBySender(cs *CancelSegment) error {
	r.mu.Lock()
	_, ok := r.sessions[cs.Session.Key()]
	delete(r.sessions, cs.Session.Key())
	r.mu.Unlock()
	if !ok {
		return nil
	}
	r.clock.Cancel(cs.Session.Key(), TimerInactivity, "")
	cas := &CancelAckSegment{Session: cs.Session, Type: SegCancelAckSnd}
	return r.send(cas.Encode())
}

// OnCancelAck handles a CAS_BR closing out a session this receiver
// cancelled.
func (r *Receiver) OnCancelAck(cas *CancelAckSegment) {
	r.mu.Lock()
	delete(r.sessions, cas.Session.Key())
	r.mu.Unlock()
}

// OnInactivityTimer fires when no segment has arrived for a session in
// InactivityTimeout; it cancels the session towards the sender.
func (r *Receiver) OnInactivityTimer(ev TimerEvent) error {
	r.mu.Lock()
	sess, ok := r.sessions[ev.SessionKey]
	if ok {
		delete(r.sessions, ev.SessionKey)
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}
	r.logger.Warn().Str("session", ev.SessionKey).Msg("session inactivity timeout")
	cs := &CancelSegment{Session: sess.ID, Type: SegCancelRcv, Reason: ReasonUnreachable}
	return r.send(cs.Encode())
}

// OnRSRetransmitTimer resends an outstanding RS that hasn't been
// acked, or gives up after MaxRSRetries.
func (r *Receiver) OnRSRetransmitTimer(ev TimerEvent) error {
	r.mu.Lock()
	sess, ok := r.sessions[ev.SessionKey]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	sess.mu.Lock()
	rs, pending := sess.OutstandingRS[ev.CheckpointID]
	if pending {
		sess.RSRetries[ev.CheckpointID]++
	}
	retries := sess.RSRetries[ev.CheckpointID]
	sess.mu.Unlock()

	if !pending {
		return nil // already acked
	}
	if retries > r.cfg.MaxRSRetries {
		r.logger.Warn().Str("session", ev.SessionKey).Msg("RS retransmit cycle exceeded")
		sess.mu.Lock()
		delete(sess.OutstandingRS, ev.CheckpointID)
		sess.mu.Unlock()
		return nil
	}

	if err := r.send(rs.Encode()); err != nil {
		return fmt.Errorf("ltp: resend RS: %w", err)
	}
	r.clock.Schedule(r.cfg.RSRetransInterval, ev)
	return nil
}
