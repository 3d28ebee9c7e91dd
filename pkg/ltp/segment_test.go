package ltp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDataSegmentRedRoundTrip(t *testing.T) {
	d := &DataSegment{
		Session:       SessionID{EngineID: 7, SessionNo: 42},
		Red:           true,
		Flags:         FlagCheckpoint | FlagEndOfBlock,
		ClientService: 1,
		Offset:        100,
		Length:        5,
		Data:          []byte("hello"),
	}
	wire := d.Encode()
	require.Equal(t, SegRedData, ControlByteClass(wire[0]))

	got, err := DecodeDataSegment(wire[0], wire[1:])
	require.NoError(t, err)
	require.True(t, got.Red)
	require.Equal(t, d.Session, got.Session)
	require.Equal(t, d.Offset, got.Offset)
	require.Equal(t, d.Length, got.Length)
	require.Equal(t, d.Data, got.Data)
	require.True(t, got.IsCheckpoint())
	require.True(t, got.IsEndOfBlock())
	require.False(t, got.IsEndOfRedPart())
}

func TestDataSegmentGreenRoundTrip(t *testing.T) {
	d := &DataSegment{
		Session:       SessionID{EngineID: 1, SessionNo: 1},
		Red:           false,
		ClientService: 1,
		Offset:        0,
		Length:        3,
		Data:          []byte("abc"),
	}
	wire := d.Encode()
	require.Equal(t, byte(SegGreenData), wire[0])
	require.Equal(t, SegGreenData, ControlByteClass(wire[0]))

	got, err := DecodeDataSegment(wire[0], wire[1:])
	require.NoError(t, err)
	require.False(t, got.Red)
	require.False(t, got.IsCheckpoint())
	require.Equal(t, []byte("abc"), got.Data)
}

func TestDataSegmentRedVsGreenDoNotAlias(t *testing.T) {
	// A red control byte with every flag set (0x7) must still decode as
	// red, not fall through to green (0x8) via a sloppy bitmask.
	red := &DataSegment{Session: SessionID{1, 1}, Red: true, Flags: FlagCheckpoint | FlagEndOfRedPart | FlagEndOfBlock, ClientService: 1, Data: []byte("x")}
	green := &DataSegment{Session: SessionID{1, 1}, Red: false, ClientService: 1, Data: []byte("x")}

	redWire := red.Encode()
	greenWire := green.Encode()
	require.NotEqual(t, ControlByteClass(redWire[0]), ControlByteClass(greenWire[0]))

	gotRed, err := DecodeDataSegment(redWire[0], redWire[1:])
	require.NoError(t, err)
	require.True(t, gotRed.Red)

	gotGreen, err := DecodeDataSegment(greenWire[0], greenWire[1:])
	require.NoError(t, err)
	require.False(t, gotGreen.Red)
}

func TestReportSegmentRoundTrip(t *testing.T) {
	r := &ReportSegment{
		Session:          SessionID{EngineID: 3, SessionNo: 9},
		ReportSerial:     1,
		CheckpointSerial: 1,
		UpperBound:       1000,
		LowerBound:       0,
		Claims: []Claim{
			{Offset: 0, Length: 400},
			{Offset: 500, Length: 500},
		},
	}
	wire := r.Encode()
	require.Equal(t, SegReport, ControlByteClass(wire[0]))

	got, err := DecodeReportSegment(wire[1:])
	require.NoError(t, err)
	require.Equal(t, r.Session, got.Session)
	require.Equal(t, r.UpperBound, got.UpperBound)
	require.Equal(t, r.Claims, got.Claims)
}

func TestReportAckSegmentRoundTrip(t *testing.T) {
	ra := &ReportAckSegment{Session: SessionID{EngineID: 2, SessionNo: 5}, ReportSerial: 7}
	wire := ra.Encode()
	require.Equal(t, SegReportAck, ControlByteClass(wire[0]))

	got, err := DecodeReportAckSegment(wire[1:])
	require.NoError(t, err)
	require.Equal(t, ra.Session, got.Session)
	require.Equal(t, ra.ReportSerial, got.ReportSerial)
}

func TestCancelSegmentRoundTrip(t *testing.T) {
	cs := &CancelSegment{Session: SessionID{EngineID: 1, SessionNo: 1}, Type: SegCancelSender, Reason: ReasonRetransmitCycleExceeded}
	wire := cs.Encode()
	got, err := DecodeCancelSegment(wire[0], wire[1:])
	require.NoError(t, err)
	require.Equal(t, cs.Session, got.Session)
	require.Equal(t, ReasonRetransmitCycleExceeded, got.Reason)
}

func TestCancelAckSegmentRoundTrip(t *testing.T) {
	cas := &CancelAckSegment{Session: SessionID{EngineID: 1, SessionNo: 1}, Type: SegCancelAckRcv}
	wire := cas.Encode()
	got, err := DecodeCancelAckSegment(wire[0], wire[1:])
	require.NoError(t, err)
	require.Equal(t, cas.Session, got.Session)
}
