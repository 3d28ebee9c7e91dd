package ltp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/dtnd/pkg/bundle"
	"github.com/rs/zerolog"
)

// SenderConfig governs how a Sender aggregates and paces outbound data
// (spec §4.6.2, §4.6.4).
type SenderConfig struct {
	EngineID         uint64
	Reliable         bool // whether aggregated data is sent as red (acked) or green (best-effort)
	SegmentSize      uint64
	AggSizeThreshold uint64
	AggTimeThreshold time.Duration
	RetransInterval  time.Duration
	MaxRetries       int
}

// SendFunc writes one encoded segment onto the underlying datagram
// transport (one UDP socket per peer, typically).
type SendFunc func(segment []byte) error

// FailureFunc is invoked with the bundles a session could not deliver,
// e.g. after a retransmission cycle is exhausted (spec: RXMTCYCEX).
type FailureFunc func(bundles []*bundle.Bundle)

// Sender owns one peer's outbound LTP sessions: a loading session that
// aggregates bundles until a size or time threshold fires a flush, and
// a set of in-flight sessions awaiting report segments.
type Sender struct {
	cfg     SenderConfig
	clock   *Clock
	limiter *RateLimiter
	send    SendFunc
	onFail  FailureFunc
	logger  zerolog.Logger

	mu            sync.Mutex
	loading       *SenderSession
	sessions      map[string]*SenderSession
	nextSessionNo uint64
}

func NewSender(cfg SenderConfig, clock *Clock, limiter *RateLimiter, send SendFunc, onFail FailureFunc, logger zerolog.Logger) *Sender {
	return &Sender{
		cfg:      cfg,
		clock:    clock,
		limiter:  limiter,
		send:     send,
		onFail:   onFail,
		logger:   logger.With().Str("component", "ltp-sender").Logger(),
		sessions: make(map[string]*SenderSession),
	}
}

// AddBundle appends b's wire bytes to the loading session, opening one
// if none is active, and flushes immediately if the aggregation
// threshold is reached (spec §4.6.2).
func (s *Sender) AddBundle(ctx context.Context, b *bundle.Bundle, wire []byte) error {
	s.mu.Lock()
	if s.loading == nil {
		s.openLoadingLocked()
	}
	s.loading.Bundles = append(s.loading.Bundles, b)
	s.loading.Buffer = append(s.loading.Buffer, wire...)
	flush := uint64(len(s.loading.Buffer)) >= s.cfg.AggSizeThreshold
	var toFlush *SenderSession
	if flush {
		toFlush = s.loading
		s.loading = nil
	}
	s.mu.Unlock()

	if toFlush != nil {
		return s.flush(ctx, toFlush)
	}
	return nil
}

func (s *Sender) openLoadingLocked() {
	s.nextSessionNo++
	id := SessionID{EngineID: s.cfg.EngineID, SessionNo: s.nextSessionNo}
	s.loading = newSenderSession(id)
	s.loading.AggregationStart = time.Now()
	s.clock.Schedule(s.cfg.AggTimeThreshold, TimerEvent{
		Kind:       TimerAggregation,
		SessionKey: id.Key(),
	})
}

// FlushIdle is called when a TimerAggregation event fires: it flushes
// the loading session if it is still the one the timer was armed for.
func (s *Sender) FlushIdle(ctx context.Context, sessionKey string) error {
	s.mu.Lock()
	if s.loading == nil || s.loading.ID.Key() != sessionKey {
		s.mu.Unlock()
		return nil
	}
	toFlush := s.loading
	s.loading = nil
	s.mu.Unlock()
	return s.flush(ctx, toFlush)
}

// flush slices a session's buffer into segment-sized DS records and
// sends them, marking the last one end-of-block (and checkpoint plus
// end-of-red-part, when reliable) per spec §4.6.2 step 3-4.
func (s *Sender) flush(ctx context.Context, sess *SenderSession) error {
	segs := s.sliceSegments(sess, 0, uint64(len(sess.Buffer)), true)

	s.mu.Lock()
	s.sessions[sess.ID.Key()] = sess
	s.mu.Unlock()

	if err := s.sendSegments(ctx, segs); err != nil {
		return err
	}

	if s.cfg.Reliable && len(segs) > 0 {
		sess.mu.Lock()
		serial := sess.nextCheckpointSerial()
		sess.lastCheckpoint = serial
		sess.checkpointSegs[serial] = segs
		sess.mu.Unlock()
		s.clock.Schedule(s.cfg.RetransInterval, TimerEvent{
			Kind:         TimerRetransmit,
			SessionKey:   sess.ID.Key(),
			CheckpointID: serial,
		})
	} else {
		// Best-effort session: nothing more to do once the segments are out.
		s.mu.Lock()
		delete(s.sessions, sess.ID.Key())
		s.mu.Unlock()
	}
	return nil
}

// sliceSegments cuts [from, to) of sess.Buffer into segment-sized DS
// records. When markFinal is set, the last record is flagged
// end-of-block (+ checkpoint + end-of-red-part when reliable).
func (s *Sender) sliceSegments(sess *SenderSession, from, to uint64, markFinal bool) []*DataSegment {
	var out []*DataSegment
	for off := from; off < to; off += s.cfg.SegmentSize {
		end := off + s.cfg.SegmentSize
		if end > to {
			end = to
		}
		d := &DataSegment{
			Session:       sess.ID,
			Red:           s.cfg.Reliable,
			ClientService: 1,
			Offset:        off,
			Length:        end - off,
			Data:          sess.Buffer[off:end],
		}
		out = append(out, d)
	}
	if markFinal && len(out) > 0 {
		last := out[len(out)-1]
		last.Flags |= FlagEndOfBlock
		if s.cfg.Reliable {
			last.Flags |= FlagCheckpoint | FlagEndOfRedPart
		}
	}
	sess.mu.Lock()
	for _, d := range out {
		if d.Red {
			sess.RedSegments[d.Offset] = d
		} else {
			sess.GreenSegments[d.Offset] = d
		}
	}
	sess.mu.Unlock()
	return out
}

func (s *Sender) sendSegments(ctx context.Context, segs []*DataSegment) error {
	for _, d := range segs {
		wire := d.Encode()
		if err := s.limiter.Admit(ctx, len(wire)); err != nil {
			return fmt.Errorf("ltp: rate admit: %w", err)
		}
		if err := s.send(wire); err != nil {
			return fmt.Errorf("ltp: send segment: %w", err)
		}
	}
	return nil
}

// ProcessReport handles an inbound RS: it acks with an RA, then
// retransmits any gap the report claims are still missing (spec
// §4.6.3, scenario S3).
func (s *Sender) ProcessReport(ctx context.Context, rs *ReportSegment) error {
	ra := &ReportAckSegment{Session: rs.Session, ReportSerial: rs.ReportSerial}
	if err := s.send(ra.Encode()); err != nil {
		return fmt.Errorf("ltp: send RA: %w", err)
	}

	s.mu.Lock()
	sess, ok := s.sessions[rs.Session.Key()]
	s.mu.Unlock()
	if !ok {
		return nil // session already closed; the RA above still helps the peer stop retrying
	}

	sess.mu.Lock()
	if rs.CheckpointSerial != 0 && rs.CheckpointSerial == sess.lastCheckpoint {
		s.clock.Cancel(sess.ID.Key(), TimerRetransmit, "")
	}
	sess.mu.Unlock()

	gaps := gapsFromClaims(rs.Claims, rs.UpperBound)
	if len(gaps) == 0 {
		s.mu.Lock()
		delete(s.sessions, sess.ID.Key())
		s.mu.Unlock()
		return nil
	}

	var resend []*DataSegment
	for _, g := range gaps {
		resend = append(resend, s.sliceSegments(sess, g.Offset, g.Offset+g.Length, false)...)
	}
	if len(resend) == 0 {
		return nil
	}
	last := resend[len(resend)-1]
	last.Flags |= FlagCheckpoint
	if rs.UpperBound == last.Offset+last.Length {
		last.Flags |= FlagEndOfRedPart | FlagEndOfBlock
	}

	sess.mu.Lock()
	serial := sess.nextCheckpointSerial()
	sess.lastCheckpoint = serial
	sess.checkpointSegs[serial] = resend
	sess.mu.Unlock()

	if err := s.sendSegments(ctx, resend); err != nil {
		return err
	}
	s.clock.Schedule(s.cfg.RetransInterval, TimerEvent{
		Kind:         TimerRetransmit,
		SessionKey:   sess.ID.Key(),
		CheckpointID: serial,
	})
	return nil
}

// ProcessCancelByReceiver handles a CS_BR: the peer gave up on the
// session. Acks with a CAS_BR and reports the aggregated bundles as
// undeliverable on this path.
func (s *Sender) ProcessCancelByReceiver(cs *CancelSegment) error {
	s.mu.Lock()
	sess, ok := s.sessions[cs.Session.Key()]
	if ok {
		delete(s.sessions, cs.Session.Key())
	}
	s.mu.Unlock()

	cas := &CancelAckSegment{Session: cs.Session, Type: SegCancelAckRcv}
	if err := s.send(cas.Encode()); err != nil {
		return fmt.Errorf("ltp: send CAS_BR: %w", err)
	}
	if ok && s.onFail != nil {
		s.onFail(sess.Bundles)
	}
	return nil
}

// ProcessCancelAck handles a CAS_BS closing out a session this sender
// itself cancelled.
func (s *Sender) ProcessCancelAck(cas *CancelAckSegment) {
	s.mu.Lock()
	delete(s.sessions, cas.Session.Key())
	s.mu.Unlock()
}

// OnRetransmitTimer handles a fired TimerRetransmit: resend the
// checkpoint's segments, or give up and cancel the session once
// MaxRetries is exceeded (spec: RXMTCYCEX).
func (s *Sender) OnRetransmitTimer(ctx context.Context, ev TimerEvent) error {
	s.mu.Lock()
	sess, ok := s.sessions[ev.SessionKey]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	sess.mu.Lock()
	if sess.lastCheckpoint != ev.CheckpointID {
		sess.mu.Unlock()
		return nil // superseded by a later checkpoint
	}
	sess.checkpointRetry[ev.CheckpointID]++
	retries := sess.checkpointRetry[ev.CheckpointID]
	segs := sess.checkpointSegs[ev.CheckpointID]
	sess.mu.Unlock()

	if retries > s.cfg.MaxRetries {
		s.logger.Warn().Str("session", ev.SessionKey).Int("retries", retries).Msg("retransmit cycle exceeded")
		cs := &CancelSegment{Session: sess.ID, Type: SegCancelSender, Reason: ReasonRetransmitCycleExceeded}
		if err := s.send(cs.Encode()); err != nil {
			s.logger.Warn().Err(err).Msg("send CS_BS failed")
		}
		s.mu.Lock()
		delete(s.sessions, ev.SessionKey)
		s.mu.Unlock()
		if s.onFail != nil {
			s.onFail(sess.Bundles)
		}
		return nil
	}

	if err := s.sendSegments(ctx, segs); err != nil {
		return err
	}
	s.clock.Schedule(s.cfg.RetransInterval, ev)
	return nil
}
