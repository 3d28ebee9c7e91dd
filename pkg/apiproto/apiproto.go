// Package apiproto implements the wire codec for the application API of
// spec.md §6: a UDP control-socket handshake (DTN_OPEN) followed by
// {u32 typecode, XDR-encoded args} requests and XDR-encoded-result-or-u32-
// error responses. Struct encoding is reflection-based XDR via
// github.com/rasky/go-xdr, grounded on the marmos91-dittofs pack entry's
// NFS/Mount protocol handlers, which use the same library the same way:
// a plain exported-field Go struct, marshaled/unmarshaled positionally.
package apiproto

import (
	"bytes"
	"encoding/binary"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// Typecode tags an application API request (spec §6).
type Typecode uint32

const (
	DTNOpen Typecode = iota + 1
	DTNGetInfo
	DTNRegister
	DTNBind
	DTNSend
	DTNRecv
	DTNClose
)

func (t Typecode) String() string {
	switch t {
	case DTNOpen:
		return "DTN_OPEN"
	case DTNGetInfo:
		return "DTN_GETINFO"
	case DTNRegister:
		return "DTN_REGISTER"
	case DTNBind:
		return "DTN_BIND"
	case DTNSend:
		return "DTN_SEND"
	case DTNRecv:
		return "DTN_RECV"
	case DTNClose:
		return "DTN_CLOSE"
	default:
		return fmt.Sprintf("typecode(%d)", uint32(t))
	}
}

// ErrorCode is the 32-bit status word leading every response: ErrNone
// means an XDR-encoded result follows, any other value is the whole
// response (spec §6: "the XDR-encoded result or a 32-bit error"). The
// non-zero codes follow the order of pkg/dtnerr.Kind, each one that Kind's
// value plus one, since ErrNone takes 0.
type ErrorCode uint32

const (
	ErrNone ErrorCode = iota
	ErrProtocol
	ErrSecurity
	ErrTransientIO
	ErrFatalIO
	ErrPolicy
	ErrResourceExhaustion
)

// HandshakeMagic is the single 32-bit value exchanged on DTN_OPEN: the
// client writes it to the control socket and the daemon echoes it back
// from that same socket. Server opens no separate session socket: the
// handshake and every later request and reply use the one socket it is
// bound to.
const HandshakeMagic = uint32(DTNOpen)

// EncodeHandshake returns the wire bytes of a DTN_OPEN handshake message.
func EncodeHandshake() []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, HandshakeMagic)
	return buf
}

// DecodeHandshake validates that data is exactly one DTN_OPEN handshake.
func DecodeHandshake(data []byte) error {
	if len(data) != 4 {
		return fmt.Errorf("apiproto: handshake must be 4 bytes, got %d", len(data))
	}
	if binary.BigEndian.Uint32(data) != HandshakeMagic {
		return fmt.Errorf("apiproto: handshake typecode mismatch")
	}
	return nil
}

// Request is one decoded {u32 typecode, XDR args} message. Args is left
// undecoded; the caller decodes it into the typecode-specific struct it
// expects.
type Request struct {
	Typecode Typecode
	Args     []byte
}

// DecodeRequest reads a typecode followed by the remaining XDR-encoded
// argument bytes.
func DecodeRequest(data []byte) (*Request, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("apiproto: request shorter than a typecode")
	}
	code := binary.BigEndian.Uint32(data[:4])
	return &Request{Typecode: Typecode(code), Args: data[4:]}, nil
}

// EncodeRequest frames typecode and pre-encoded XDR args into one request.
func EncodeRequest(typecode Typecode, argsXDR []byte) []byte {
	buf := make([]byte, 4+len(argsXDR))
	binary.BigEndian.PutUint32(buf[:4], uint32(typecode))
	copy(buf[4:], argsXDR)
	return buf
}

// EncodeSuccess frames a successful response: ErrNone followed by the
// XDR-encoded result.
func EncodeSuccess(resultXDR []byte) []byte {
	buf := make([]byte, 4+len(resultXDR))
	binary.BigEndian.PutUint32(buf[:4], uint32(ErrNone))
	copy(buf[4:], resultXDR)
	return buf
}

// EncodeError frames an error response: just the 32-bit code, no payload.
func EncodeError(code ErrorCode) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(code))
	return buf
}

// DecodeResponse splits a response into its status and, if successful, the
// trailing XDR-encoded result bytes.
func DecodeResponse(data []byte) (code ErrorCode, resultXDR []byte, err error) {
	if len(data) < 4 {
		return 0, nil, fmt.Errorf("apiproto: response shorter than a status word")
	}
	code = ErrorCode(binary.BigEndian.Uint32(data[:4]))
	if code != ErrNone {
		return code, nil, nil
	}
	return ErrNone, data[4:], nil
}

// marshal and unmarshal wrap the reflection-based XDR codec with the
// error-context convention the rest of the daemon uses.
func marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, v); err != nil {
		return nil, fmt.Errorf("apiproto: marshal %T: %w", v, err)
	}
	return buf.Bytes(), nil
}

func unmarshal(data []byte, v interface{}) error {
	if _, err := xdr.Unmarshal(bytes.NewReader(data), v); err != nil {
		return fmt.Errorf("apiproto: unmarshal %T: %w", v, err)
	}
	return nil
}
