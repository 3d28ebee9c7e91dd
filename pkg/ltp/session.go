package ltp

import (
	"sync"
	"time"

	"github.com/cuemby/dtnd/pkg/bundle"
)

// SessionState is where a session sits in its own CS/RS lifecycle.
type SessionState uint8

const (
	StateDS SessionState = iota // normal data transfer
	StateRS                     // report-segment exchange in flight
	StateCS                     // cancelled, waiting for the ack handshake
)

// SenderSession is the sender-side session record (spec §4.6, "LTP
// session (sender side)").
type SenderSession struct {
	ID               SessionID
	mu               sync.Mutex
	nextCheckpoint   uint64
	nextReportSerial uint64
	RedSegments      map[uint64]*DataSegment // keyed by offset
	GreenSegments    map[uint64]*DataSegment
	Bundles          []*bundle.Bundle // aggregated into this session's buffer
	Buffer           []byte           // concatenated wire bytes of Bundles, not yet segmented
	AggregationStart time.Time
	State            SessionState
	CancelRetries    int
	checkpointRetry  map[uint64]int // checkpoint serial -> retransmit attempts
	lastCheckpoint   uint64         // most recent checkpoint serial awaiting a report
	checkpointSegs   map[uint64][]*DataSegment
}

func newSenderSession(id SessionID) *SenderSession {
	return &SenderSession{
		ID:              id,
		RedSegments:     make(map[uint64]*DataSegment),
		GreenSegments:   make(map[uint64]*DataSegment),
		checkpointRetry: make(map[uint64]int),
		checkpointSegs:  make(map[uint64][]*DataSegment),
	}
}

func (s *SenderSession) nextCheckpointSerial() uint64 {
	s.nextCheckpoint++
	return s.nextCheckpoint
}

func (s *SenderSession) nextReportSerialNo() uint64 {
	s.nextReportSerial++
	return s.nextReportSerial
}

// ReceiverSession is the receiver-side session record: a reassembly
// buffer plus outstanding-report bookkeeping.
type ReceiverSession struct {
	ID              SessionID
	mu              sync.Mutex
	RedRanges       []Claim // merged, sorted, non-overlapping received ranges
	RedBuf          map[uint64][]byte
	GreenDelivered  map[uint64]bool
	ExpectedRed     uint64
	EOBSeen         bool
	TotalLength     uint64
	TotalKnown      bool
	LastSegment     time.Time
	OutstandingRS   map[uint64]*ReportSegment // report serial -> sent RS
	RSRetries       map[uint64]int
	ReportsSent     int
}

func newReceiverSession(id SessionID) *ReceiverSession {
	return &ReceiverSession{
		ID:             id,
		RedBuf:         make(map[uint64][]byte),
		GreenDelivered: make(map[uint64]bool),
		OutstandingRS:  make(map[uint64]*ReportSegment),
		RSRetries:      make(map[uint64]int),
		LastSegment:    time.Now(),
	}
}

// mergeRange inserts [offset, offset+length) into the session's sorted,
// merged claim list (spec invariant 1: the union of received ranges is
// what determines reassembly completeness).
func (r *ReceiverSession) mergeRange(offset, length uint64) {
	nc := Claim{Offset: offset, Length: length}
	merged := make([]Claim, 0, len(r.RedRanges)+1)
	inserted := false
	for _, c := range r.RedRanges {
		if inserted {
			merged = append(merged, c)
			continue
		}
		if nc.Offset > c.Offset+c.Length {
			merged = append(merged, c)
			continue
		}
		if c.Offset > nc.Offset+nc.Length {
			merged = append(merged, nc)
			merged = append(merged, c)
			inserted = true
			continue
		}
		// overlap or adjacency: merge into nc
		lo := min64(c.Offset, nc.Offset)
		hi := max64(c.Offset+c.Length, nc.Offset+nc.Length)
		nc = Claim{Offset: lo, Length: hi - lo}
	}
	if !inserted {
		merged = append(merged, nc)
	}
	r.RedRanges = merged
}

// coversPrefix reports whether the merged ranges cover [0, n).
func (r *ReceiverSession) coversPrefix(n uint64) bool {
	if n == 0 {
		return true
	}
	if len(r.RedRanges) == 0 {
		return false
	}
	return r.RedRanges[0].Offset == 0 && r.RedRanges[0].Length >= n
}

// gaps returns the byte ranges within [0, upperBound) not yet covered.
func (r *ReceiverSession) gaps(upperBound uint64) []Claim {
	return gapsFromClaims(r.RedRanges, upperBound)
}

// gapsFromClaims returns the byte ranges within [0, upperBound) that a
// sorted, merged claim list does not cover. Shared by the receiver
// (computing what it still needs) and the sender (computing what an
// incoming RS says is still missing, to decide what to retransmit).
func gapsFromClaims(claims []Claim, upperBound uint64) []Claim {
	var out []Claim
	cursor := uint64(0)
	for _, c := range claims {
		if c.Offset > cursor {
			out = append(out, Claim{Offset: cursor, Length: c.Offset - cursor})
		}
		if c.Offset+c.Length > cursor {
			cursor = c.Offset + c.Length
		}
	}
	if cursor < upperBound {
		out = append(out, Claim{Offset: cursor, Length: upperBound - cursor})
	}
	return out
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
