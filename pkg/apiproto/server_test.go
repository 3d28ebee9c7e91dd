package apiproto

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/cuemby/dtnd/pkg/dtnerr"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	regID uint64
}

func (h *fakeHandler) GetInfo() (string, error) { return "dtn://node/node", nil }

func (h *fakeHandler) Register(endpoint string, failureAction uint32, script string, expiration uint64) (uint64, error) {
	if endpoint == "" {
		return 0, dtnerr.Protocol("register", context.DeadlineExceeded)
	}
	h.regID = 42
	return h.regID, nil
}

func (h *fakeHandler) Bind(regID uint64) error {
	if regID != h.regID {
		return dtnerr.Protocol("bind", context.DeadlineExceeded)
	}
	return nil
}

func (h *fakeHandler) Send(args *SendArgs) (string, error) {
	return "dtn://a/app-1-0", nil
}

func (h *fakeHandler) Recv(ctx context.Context, regID uint64, timeoutMs uint64) (*RecvResult, error) {
	return nil, dtnerr.Transient("recv", context.DeadlineExceeded)
}

func (h *fakeHandler) Close(regID uint64) error { return nil }

func startTestServer(t *testing.T, h Handler) (*net.UDPConn, func()) {
	t.Helper()
	serverConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)

	srv := NewServer(serverConn, h)
	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx)

	clientConn, err := net.DialUDP("udp", nil, serverConn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)

	return clientConn, func() {
		cancel()
		clientConn.Close()
	}
}

func roundTrip(t *testing.T, conn *net.UDPConn, wire []byte) []byte {
	t.Helper()
	_, err := conn.Write(wire)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, maxDatagram)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	return buf[:n]
}

func TestServerHandshake(t *testing.T) {
	conn, stop := startTestServer(t, &fakeHandler{})
	defer stop()

	reply := roundTrip(t, conn, EncodeHandshake())
	require.NoError(t, DecodeHandshake(reply))
}

func TestServerGetInfo(t *testing.T) {
	conn, stop := startTestServer(t, &fakeHandler{})
	defer stop()

	wire := EncodeRequest(DTNGetInfo, nil)
	reply := roundTrip(t, conn, wire)

	code, payload, err := DecodeResponse(reply)
	require.NoError(t, err)
	require.Equal(t, ErrNone, code)

	res, err := DecodeGetInfoResult(payload)
	require.NoError(t, err)
	require.Equal(t, "dtn://node/node", res.LocalEID)
}

func TestServerRegisterThenBind(t *testing.T) {
	conn, stop := startTestServer(t, &fakeHandler{})
	defer stop()

	regArgs, err := (&RegisterArgs{Endpoint: "dtn://node/app"}).Encode()
	require.NoError(t, err)
	reply := roundTrip(t, conn, EncodeRequest(DTNRegister, regArgs))
	code, payload, err := DecodeResponse(reply)
	require.NoError(t, err)
	require.Equal(t, ErrNone, code)
	regRes, err := DecodeRegisterResult(payload)
	require.NoError(t, err)
	require.Equal(t, uint64(42), regRes.RegID)

	bindArgs, err := (&BindArgs{RegID: regRes.RegID}).Encode()
	require.NoError(t, err)
	reply = roundTrip(t, conn, EncodeRequest(DTNBind, bindArgs))
	code, _, err = DecodeResponse(reply)
	require.NoError(t, err)
	require.Equal(t, ErrNone, code)
}

func TestServerRegisterRejectsEmptyEndpoint(t *testing.T) {
	conn, stop := startTestServer(t, &fakeHandler{})
	defer stop()

	regArgs, err := (&RegisterArgs{Endpoint: ""}).Encode()
	require.NoError(t, err)
	reply := roundTrip(t, conn, EncodeRequest(DTNRegister, regArgs))
	code, _, err := DecodeResponse(reply)
	require.NoError(t, err)
	require.Equal(t, ErrProtocol, code)
}

func TestServerRecvReturnsTransientErrorCode(t *testing.T) {
	conn, stop := startTestServer(t, &fakeHandler{})
	defer stop()

	recvArgs, err := (&RecvArgs{RegID: 1, TimeoutMs: 1}).Encode()
	require.NoError(t, err)
	reply := roundTrip(t, conn, EncodeRequest(DTNRecv, recvArgs))
	code, _, err := DecodeResponse(reply)
	require.NoError(t, err)
	require.Equal(t, ErrTransientIO, code)
}

func TestServerUnknownTypecode(t *testing.T) {
	conn, stop := startTestServer(t, &fakeHandler{})
	defer stop()

	reply := roundTrip(t, conn, EncodeRequest(Typecode(999), nil))
	code, _, err := DecodeResponse(reply)
	require.NoError(t, err)
	require.Equal(t, ErrProtocol, code)
}

func TestServerMalformedDatagramRepliesProtocolError(t *testing.T) {
	conn, stop := startTestServer(t, &fakeHandler{})
	defer stop()

	reply := roundTrip(t, conn, []byte{1})
	code, _, err := DecodeResponse(reply)
	require.NoError(t, err)
	require.Equal(t, ErrProtocol, code)
}
