package ltp

import (
	"fmt"

	"github.com/cuemby/dtnd/pkg/sdnv"
)

// SegmentType is the high-nibble class of an LTP segment's control byte
// (spec §4.6.1).
type SegmentType uint8

const (
	SegRedData      SegmentType = 0x0 // low nibble carries checkpoint/EORP/EOB flags
	SegGreenData    SegmentType = 0x8
	SegReport       SegmentType = 0x9
	SegReportAck    SegmentType = 0xA
	SegCancelSender SegmentType = 0xB
	SegCancelAckRcv SegmentType = 0xC
	SegCancelRcv    SegmentType = 0xD
	SegCancelAckSnd SegmentType = 0xE
)

func (t SegmentType) String() string {
	switch t {
	case SegRedData:
		return "DS_RED"
	case SegGreenData:
		return "DS_GREEN"
	case SegReport:
		return "RS"
	case SegReportAck:
		return "RA"
	case SegCancelSender:
		return "CS_BS"
	case SegCancelAckRcv:
		return "CAS_BR"
	case SegCancelRcv:
		return "CS_BR"
	case SegCancelAckSnd:
		return "CAS_BS"
	default:
		return fmt.Sprintf("UNKNOWN(%#x)", uint8(t))
	}
}

// DataFlags are the low-nibble bits of a data segment's control byte.
type DataFlags uint8

const (
	FlagCheckpoint DataFlags = 1 << iota
	FlagEndOfRedPart
	FlagEndOfBlock
)

// CancelReason is carried in a CS segment (spec §4.6.1).
type CancelReason uint8

const (
	ReasonUserCancelled CancelReason = iota
	ReasonUnreachable
	ReasonRetransmitCycleExceeded // RXMTCYCEX
	ReasonMiscolored
	ReasonSystemCancelled // SYS_CNCLD
	ReasonRLEXC           // retransmission limit exceeded
)

// SessionID identifies one LTP session between this engine and a peer.
type SessionID struct {
	EngineID  uint64
	SessionNo uint64
}

func (s SessionID) Key() string { return fmt.Sprintf("%d.%d", s.EngineID, s.SessionNo) }

// DataSegment is a DS: a slice of a session's aggregated-bundle buffer.
type DataSegment struct {
	Session       SessionID
	Red           bool
	Flags         DataFlags
	ClientService uint64 // 1 = bundle, 2 = multi-bundle aggregate
	Offset        uint64
	Length        uint64
	Data          []byte
}

func (d *DataSegment) IsCheckpoint() bool  { return d.Flags&FlagCheckpoint != 0 }
func (d *DataSegment) IsEndOfBlock() bool  { return d.Flags&FlagEndOfBlock != 0 }
func (d *DataSegment) IsEndOfRedPart() bool { return d.Flags&FlagEndOfRedPart != 0 }

// Encode serializes the segment: control byte, engine-id, session-id,
// client-service-id, offset, length, then raw data bytes.
func (d *DataSegment) Encode() []byte {
	ctrl := byte(SegGreenData)
	if d.Red {
		ctrl = byte(SegRedData) | byte(d.Flags)
	}
	out := []byte{ctrl}
	out = sdnv.Encode(out, d.Session.EngineID)
	out = sdnv.Encode(out, d.Session.SessionNo)
	out = sdnv.Encode(out, d.ClientService)
	out = sdnv.Encode(out, d.Offset)
	out = sdnv.Encode(out, d.Length)
	out = append(out, d.Data...)
	return out
}

// DecodeDataSegment parses a DS from buf, given its control byte was
// already identified as a data segment class.
func DecodeDataSegment(ctrl byte, buf []byte) (*DataSegment, error) {
	d := &DataSegment{}
	switch {
	case ctrl < byte(SegGreenData):
		d.Red = true
		d.Flags = DataFlags(ctrl)
	case ctrl == byte(SegGreenData):
		// green, no flag bits
	default:
		return nil, fmt.Errorf("ltp: not a data segment control byte %#x", ctrl)
	}

	off := 0
	v, n, err := sdnv.Decode(buf[off:])
	if err != nil {
		return nil, fmt.Errorf("ltp: engine id: %w", err)
	}
	d.Session.EngineID = v
	off += n

	v, n, err = sdnv.Decode(buf[off:])
	if err != nil {
		return nil, fmt.Errorf("ltp: session id: %w", err)
	}
	d.Session.SessionNo = v
	off += n

	v, n, err = sdnv.Decode(buf[off:])
	if err != nil {
		return nil, fmt.Errorf("ltp: client service id: %w", err)
	}
	d.ClientService = v
	off += n

	v, n, err = sdnv.Decode(buf[off:])
	if err != nil {
		return nil, fmt.Errorf("ltp: offset: %w", err)
	}
	d.Offset = v
	off += n

	v, n, err = sdnv.Decode(buf[off:])
	if err != nil {
		return nil, fmt.Errorf("ltp: length: %w", err)
	}
	d.Length = v
	off += n

	if uint64(len(buf)-off) < d.Length {
		return nil, fmt.Errorf("ltp: truncated data segment: want %d have %d", d.Length, len(buf)-off)
	}
	d.Data = buf[off : off+int(d.Length)]
	return d, nil
}

// Claim is one reception-claim range in a report segment.
type Claim struct {
	Offset uint64
	Length uint64
}

// ReportSegment is an RS: the receiver's statement of what it has.
type ReportSegment struct {
	Session          SessionID
	ReportSerial     uint64
	CheckpointSerial uint64
	UpperBound       uint64
	LowerBound       uint64
	Claims           []Claim
}

func (r *ReportSegment) Encode() []byte {
	out := []byte{byte(SegReport)}
	out = sdnv.Encode(out, r.Session.EngineID)
	out = sdnv.Encode(out, r.Session.SessionNo)
	out = sdnv.Encode(out, r.ReportSerial)
	out = sdnv.Encode(out, r.CheckpointSerial)
	out = sdnv.Encode(out, r.UpperBound)
	out = sdnv.Encode(out, r.LowerBound)
	out = sdnv.Encode(out, uint64(len(r.Claims)))
	for _, c := range r.Claims {
		out = sdnv.Encode(out, c.Offset)
		out = sdnv.Encode(out, c.Length)
	}
	return out
}

func DecodeReportSegment(buf []byte) (*ReportSegment, error) {
	r := &ReportSegment{}
	off := 0
	read := func() (uint64, error) {
		v, n, err := sdnv.Decode(buf[off:])
		off += n
		return v, err
	}
	var err error
	if r.Session.EngineID, err = read(); err != nil {
		return nil, err
	}
	if r.Session.SessionNo, err = read(); err != nil {
		return nil, err
	}
	if r.ReportSerial, err = read(); err != nil {
		return nil, err
	}
	if r.CheckpointSerial, err = read(); err != nil {
		return nil, err
	}
	if r.UpperBound, err = read(); err != nil {
		return nil, err
	}
	if r.LowerBound, err = read(); err != nil {
		return nil, err
	}
	count, err := read()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < count; i++ {
		o, err := read()
		if err != nil {
			return nil, err
		}
		l, err := read()
		if err != nil {
			return nil, err
		}
		r.Claims = append(r.Claims, Claim{Offset: o, Length: l})
	}
	return r, nil
}

// ReportAckSegment (RA) acknowledges a ReportSegment by serial number.
type ReportAckSegment struct {
	Session      SessionID
	ReportSerial uint64
}

func (r *ReportAckSegment) Encode() []byte {
	out := []byte{byte(SegReportAck)}
	out = sdnv.Encode(out, r.Session.EngineID)
	out = sdnv.Encode(out, r.Session.SessionNo)
	out = sdnv.Encode(out, r.ReportSerial)
	return out
}

func DecodeReportAckSegment(buf []byte) (*ReportAckSegment, error) {
	r := &ReportAckSegment{}
	off := 0
	v, n, err := sdnv.Decode(buf[off:])
	if err != nil {
		return nil, err
	}
	r.Session.EngineID = v
	off += n
	v, n, err = sdnv.Decode(buf[off:])
	if err != nil {
		return nil, err
	}
	r.Session.SessionNo = v
	off += n
	v, _, err = sdnv.Decode(buf[off:])
	if err != nil {
		return nil, err
	}
	r.ReportSerial = v
	return r, nil
}

// CancelSegment is a CS_BS/CS_BR.
type CancelSegment struct {
	Session SessionID
	Type    SegmentType // SegCancelSender or SegCancelRcv
	Reason  CancelReason
}

func (c *CancelSegment) Encode() []byte {
	out := []byte{byte(c.Type)}
	out = sdnv.Encode(out, c.Session.EngineID)
	out = sdnv.Encode(out, c.Session.SessionNo)
	out = append(out, byte(c.Reason))
	return out
}

func DecodeCancelSegment(ctrl byte, buf []byte) (*CancelSegment, error) {
	c := &CancelSegment{Type: SegmentType(ctrl)}
	off := 0
	v, n, err := sdnv.Decode(buf[off:])
	if err != nil {
		return nil, err
	}
	c.Session.EngineID = v
	off += n
	v, n, err = sdnv.Decode(buf[off:])
	if err != nil {
		return nil, err
	}
	c.Session.SessionNo = v
	off += n
	if off >= len(buf) {
		return nil, fmt.Errorf("ltp: cancel segment missing reason code")
	}
	c.Reason = CancelReason(buf[off])
	return c, nil
}

// CancelAckSegment is a CAS_BR/CAS_BS, the final handshake letting either
// side delete a cancelled session.
type CancelAckSegment struct {
	Session SessionID
	Type    SegmentType // SegCancelAckRcv or SegCancelAckSnd
}

func (c *CancelAckSegment) Encode() []byte {
	out := []byte{byte(c.Type)}
	out = sdnv.Encode(out, c.Session.EngineID)
	out = sdnv.Encode(out, c.Session.SessionNo)
	return out
}

func DecodeCancelAckSegment(ctrl byte, buf []byte) (*CancelAckSegment, error) {
	c := &CancelAckSegment{Type: SegmentType(ctrl)}
	off := 0
	v, n, err := sdnv.Decode(buf[off:])
	if err != nil {
		return nil, err
	}
	c.Session.EngineID = v
	off += n
	v, _, err = sdnv.Decode(buf[off:])
	if err != nil {
		return nil, err
	}
	c.Session.SessionNo = v
	return c, nil
}

// ControlByteClass returns the segment class a raw wire control byte
// belongs to, masking off data-segment flag bits.
func ControlByteClass(ctrl byte) SegmentType {
	switch {
	case ctrl == byte(SegGreenData):
		return SegGreenData
	case ctrl&0xf0 == byte(SegRedData) && ctrl < 0x08:
		return SegRedData
	default:
		return SegmentType(ctrl)
	}
}
