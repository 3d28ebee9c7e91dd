package apiproto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandshakeRoundTrip(t *testing.T) {
	wire := EncodeHandshake()
	require.Len(t, wire, 4)
	require.NoError(t, DecodeHandshake(wire))
}

func TestDecodeHandshakeRejectsWrongLength(t *testing.T) {
	require.Error(t, DecodeHandshake([]byte{1, 2, 3}))
}

func TestDecodeHandshakeRejectsWrongMagic(t *testing.T) {
	require.Error(t, DecodeHandshake([]byte{0, 0, 0, 99}))
}

func TestRequestRoundTrip(t *testing.T) {
	args := &RegisterArgs{Endpoint: "dtn://node/app", FailureAction: 1, Script: "", Expiration: 0}
	argsXDR, err := args.Encode()
	require.NoError(t, err)

	wire := EncodeRequest(DTNRegister, argsXDR)
	req, err := DecodeRequest(wire)
	require.NoError(t, err)
	require.Equal(t, DTNRegister, req.Typecode)

	decoded, err := DecodeRegisterArgs(req.Args)
	require.NoError(t, err)
	require.Equal(t, args.Endpoint, decoded.Endpoint)
	require.Equal(t, args.FailureAction, decoded.FailureAction)
}

func TestDecodeRequestRejectsShortDatagram(t *testing.T) {
	_, err := DecodeRequest([]byte{1, 2})
	require.Error(t, err)
}

func TestResponseRoundTripSuccess(t *testing.T) {
	res := &GetInfoResult{LocalEID: "dtn://node/node"}
	resXDR, err := res.Encode()
	require.NoError(t, err)

	wire := EncodeSuccess(resXDR)
	code, payload, err := DecodeResponse(wire)
	require.NoError(t, err)
	require.Equal(t, ErrNone, code)

	decoded, err := DecodeGetInfoResult(payload)
	require.NoError(t, err)
	require.Equal(t, res.LocalEID, decoded.LocalEID)
}

func TestResponseRoundTripError(t *testing.T) {
	wire := EncodeError(ErrPolicy)
	code, payload, err := DecodeResponse(wire)
	require.NoError(t, err)
	require.Equal(t, ErrPolicy, code)
	require.Empty(t, payload)
}

func TestDecodeResponseRejectsShortDatagram(t *testing.T) {
	_, _, err := DecodeResponse([]byte{0, 0})
	require.Error(t, err)
}

func TestTypecodeString(t *testing.T) {
	require.Equal(t, "DTN_SEND", DTNSend.String())
	require.Contains(t, Typecode(999).String(), "999")
}

func TestSendArgsRoundTrip(t *testing.T) {
	args := &SendArgs{
		Source:          "dtn://a/app",
		Destination:     "dtn://b/app",
		Lifetime:        3600,
		Priority:        1,
		DeliveryOptions: 0,
		Payload:         []byte("payload bytes"),
	}
	wire, err := args.Encode()
	require.NoError(t, err)

	decoded, err := DecodeSendArgs(wire)
	require.NoError(t, err)
	require.Equal(t, args.Source, decoded.Source)
	require.Equal(t, args.Payload, decoded.Payload)
}

func TestRecvResultRoundTrip(t *testing.T) {
	res := &RecvResult{
		Source:       "dtn://a/app",
		Destination:  "dtn://b/app",
		CreationSecs: 10,
		CreationSeq:  2,
		Payload:      []byte("hi"),
	}
	wire, err := res.Encode()
	require.NoError(t, err)

	decoded, err := DecodeRecvResult(wire)
	require.NoError(t, err)
	require.Equal(t, res.Source, decoded.Source)
	require.Equal(t, res.Payload, decoded.Payload)
}
