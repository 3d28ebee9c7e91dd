package apiproto

import (
	"context"
	"net"

	"github.com/cuemby/dtnd/pkg/dtnerr"
	"github.com/cuemby/dtnd/pkg/log"
	"github.com/rs/zerolog"
)

const maxDatagram = 65507

// Handler is the daemon-side implementation of the six application API
// verbs; cmd/dtnd wires one backed by pkg/reg and pkg/daemon. Errors
// returned here are classified via pkg/dtnerr and reduced to the 32-bit
// ErrorCode that goes on the wire (spec §6).
type Handler interface {
	GetInfo() (localEID string, err error)
	Register(endpoint string, failureAction uint32, script string, expiration uint64) (regID uint64, err error)
	Bind(regID uint64) error
	Send(args *SendArgs) (bundleID string, err error)
	Recv(ctx context.Context, regID uint64, timeoutMs uint64) (*RecvResult, error)
	Close(regID uint64) error
}

// Server answers application API requests on one UDP control socket. Each
// datagram is handled on its own goroutine since requests carry no
// ordering requirement between sessions (spec §5: "across sessions,
// ordering is undefined").
type Server struct {
	conn    *net.UDPConn
	handler Handler
	logger  zerolog.Logger
}

// NewServer wraps an already-bound UDP socket.
func NewServer(conn *net.UDPConn, h Handler) *Server {
	return &Server{conn: conn, handler: h, logger: log.WithComponent("apiproto")}
}

// Serve reads datagrams until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	buf := make([]byte, maxDatagram)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn().Err(err).Msg("udp read failed")
			continue
		}
		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		go s.handleDatagram(ctx, addr, datagram)
	}
}

func (s *Server) handleDatagram(ctx context.Context, addr *net.UDPAddr, data []byte) {
	if len(data) == 4 && DecodeHandshake(data) == nil {
		s.reply(addr, EncodeHandshake())
		return
	}

	req, err := DecodeRequest(data)
	if err != nil {
		s.logger.Warn().Err(err).Str("from", addr.String()).Msg("malformed request")
		s.reply(addr, EncodeError(ErrProtocol))
		return
	}

	resultXDR, code := s.dispatch(ctx, req)
	if code != ErrNone {
		s.reply(addr, EncodeError(code))
		return
	}
	s.reply(addr, EncodeSuccess(resultXDR))
}

func (s *Server) reply(addr *net.UDPAddr, data []byte) {
	if _, err := s.conn.WriteToUDP(data, addr); err != nil {
		s.logger.Warn().Err(err).Str("to", addr.String()).Msg("write failed")
	}
}

func (s *Server) dispatch(ctx context.Context, req *Request) ([]byte, ErrorCode) {
	switch req.Typecode {
	case DTNGetInfo:
		localEID, err := s.handler.GetInfo()
		if err != nil {
			return nil, classify(err)
		}
		res := &GetInfoResult{LocalEID: localEID}
		data, err := res.Encode()
		if err != nil {
			return nil, ErrProtocol
		}
		return data, ErrNone

	case DTNRegister:
		args, err := DecodeRegisterArgs(req.Args)
		if err != nil {
			return nil, ErrProtocol
		}
		regID, err := s.handler.Register(args.Endpoint, args.FailureAction, args.Script, args.Expiration)
		if err != nil {
			return nil, classify(err)
		}
		res := &RegisterResult{RegID: regID}
		data, err := res.Encode()
		if err != nil {
			return nil, ErrProtocol
		}
		return data, ErrNone

	case DTNBind:
		args, err := DecodeBindArgs(req.Args)
		if err != nil {
			return nil, ErrProtocol
		}
		if err := s.handler.Bind(args.RegID); err != nil {
			return nil, classify(err)
		}
		res := &BindResult{}
		data, _ := res.Encode()
		return data, ErrNone

	case DTNSend:
		args, err := DecodeSendArgs(req.Args)
		if err != nil {
			return nil, ErrProtocol
		}
		bundleID, err := s.handler.Send(args)
		if err != nil {
			return nil, classify(err)
		}
		res := &SendResult{BundleID: bundleID}
		data, err := res.Encode()
		if err != nil {
			return nil, ErrProtocol
		}
		return data, ErrNone

	case DTNRecv:
		args, err := DecodeRecvArgs(req.Args)
		if err != nil {
			return nil, ErrProtocol
		}
		res, err := s.handler.Recv(ctx, args.RegID, args.TimeoutMs)
		if err != nil {
			return nil, classify(err)
		}
		data, err := res.Encode()
		if err != nil {
			return nil, ErrProtocol
		}
		return data, ErrNone

	case DTNClose:
		args, err := DecodeCloseArgs(req.Args)
		if err != nil {
			return nil, ErrProtocol
		}
		if err := s.handler.Close(args.RegID); err != nil {
			return nil, classify(err)
		}
		res := &CloseResult{}
		data, _ := res.Encode()
		return data, ErrNone

	default:
		return nil, ErrProtocol
	}
}

// classify reduces a daemon error to the wire ErrorCode, defaulting to
// ErrProtocol for anything not tagged with a pkg/dtnerr.Kind.
func classify(err error) ErrorCode {
	switch {
	case dtnerr.Is(err, dtnerr.KindSecurity):
		return ErrSecurity
	case dtnerr.Is(err, dtnerr.KindTransientIO):
		return ErrTransientIO
	case dtnerr.Is(err, dtnerr.KindFatalIO):
		return ErrFatalIO
	case dtnerr.Is(err, dtnerr.KindPolicy):
		return ErrPolicy
	case dtnerr.Is(err, dtnerr.KindResourceExhaustion):
		return ErrResourceExhaustion
	case dtnerr.Is(err, dtnerr.KindProtocol):
		return ErrProtocol
	default:
		return ErrProtocol
	}
}
