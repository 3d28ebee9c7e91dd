package adminapi

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/cuemby/dtnd/pkg/config"
	"github.com/cuemby/dtnd/pkg/link"
	"github.com/cuemby/dtnd/pkg/log"
	"github.com/cuemby/dtnd/pkg/reg"
	"github.com/cuemby/dtnd/pkg/router"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/protobuf/types/known/structpb"
)

// Server implements AdminAPIServer against a running node's live
// components, the same role the teacher's pkg/api.Server played against
// its *manager.Manager.
type Server struct {
	applier *config.Applier
	links   *link.ContactManager
	router  router.Router
	regs    *reg.Table

	grpc   *grpc.Server
	logger zerolog.Logger
}

// NewServer builds an admin server. tlsConfig is optional: pass nil for a
// plaintext loopback listener (the common case — this surface is meant to
// be bound to 127.0.0.1 or a Unix socket, not exposed to other nodes);
// pass a *tls.Config (via credentials.NewTLS, mirroring the teacher's
// mTLS-everywhere api.Server) to require client certificates for a
// network-reachable admin port.
func NewServer(applier *config.Applier, links *link.ContactManager, rt router.Router, regs *reg.Table, tlsConfig *tls.Config) *Server {
	var opts []grpc.ServerOption
	opts = append(opts, grpc.ChainUnaryInterceptor(RequestIDInterceptor()))
	if tlsConfig != nil {
		opts = append(opts, grpc.Creds(credentials.NewTLS(tlsConfig)))
	}
	s := &Server{
		applier: applier,
		links:   links,
		router:  rt,
		regs:    regs,
		grpc:    grpc.NewServer(opts...),
		logger:  log.WithComponent("adminapi"),
	}
	RegisterAdminAPIServer(s.grpc, s)
	return s
}

// NewReadOnlyServer is the same as NewServer but rejects every RPC except
// the List*/GetStatus ones, for a restricted listener (e.g. a Unix socket
// any local user can reach) — mirrors the teacher's ReadOnlyInterceptor
// use on its Unix-socket listener.
func NewReadOnlyServer(applier *config.Applier, links *link.ContactManager, rt router.Router, regs *reg.Table) *Server {
	s := &Server{
		applier: applier,
		links:   links,
		router:  rt,
		regs:    regs,
		grpc:    grpc.NewServer(grpc.ChainUnaryInterceptor(RequestIDInterceptor(), ReadOnlyInterceptor())),
		logger:  log.WithComponent("adminapi.readonly"),
	}
	RegisterAdminAPIServer(s.grpc, s)
	return s
}

// Start listens on addr and blocks serving RPCs until the listener fails
// or Stop is called.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("adminapi: listen %s: %w", addr, err)
	}
	s.logger.Info().Str("addr", addr).Msg("admin api listening")
	return s.grpc.Serve(lis)
}

// Stop gracefully drains in-flight RPCs before returning.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
}

// Apply decodes req as a config.Resource and submits it to the node's
// running Applier.
func (s *Server) Apply(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	res := resourceFromStruct(req)
	reqID, _ := ctx.Value(requestIDKey{}).(string)
	s.logger.Info().Str("request_id", reqID).Str("kind", res.Kind).Str("name", res.Metadata.Name).Msg("admin apply")
	if err := s.applier.Apply(res); err != nil {
		return nil, fmt.Errorf("adminapi: apply: %w", err)
	}
	return structFromMap(map[string]interface{}{"status": "ok", "request_id": reqID})
}

// ListLinks reports every configured link's name, state, next hop, and
// queue depth.
func (s *Server) ListLinks(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	links := s.links.All()
	out := make([]interface{}, 0, len(links))
	for _, l := range links {
		out = append(out, map[string]interface{}{
			"name":      l.Name(),
			"next_hop":  l.NextHop(),
			"state":     l.State().String(),
			"queue_len": float64(l.QueueLen()),
			"inflight":  float64(l.InflightLen()),
		})
	}
	return structFromMap(map[string]interface{}{"links": out})
}

// ListRoutes reports the router's route table (nil/empty for a router
// with no table concept, e.g. FloodRouter).
func (s *Server) ListRoutes(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	entries := s.router.RouteTable()
	out := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		mode := "copy"
		if e.ForwardMode == router.ForwardUnique {
			mode = "unique"
		}
		out = append(out, map[string]interface{}{
			"pattern":      e.Pattern.String(),
			"link":         e.LinkName,
			"forward_mode": mode,
		})
	}
	pending := s.router.PendingBundles()
	return structFromMap(map[string]interface{}{
		"routes":          out,
		"pending_bundles": float64(len(pending)),
	})
}

// ListRegistrations reports every registration's endpoint, failure
// action, bound state, and deferred queue depth.
func (s *Server) ListRegistrations(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	regs := s.regs.All()
	out := make([]interface{}, 0, len(regs))
	for _, r := range regs {
		out = append(out, map[string]interface{}{
			"regid":          float64(r.RegID),
			"endpoint":       r.Endpoint.String(),
			"failure_action": failureActionString(r.FailureAction),
			"bound":          r.IsBound(),
			"queue_len":      float64(r.QueueLen()),
		})
	}
	return structFromMap(map[string]interface{}{"registrations": out})
}

// GetStatus is the node's top-level health summary.
func (s *Server) GetStatus(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return structFromMap(map[string]interface{}{
		"local_eid":       s.router.LocalEID().String(),
		"links":           float64(len(s.links.All())),
		"registrations":   float64(len(s.regs.All())),
		"pending_bundles": float64(len(s.router.PendingBundles())),
	})
}

func failureActionString(a reg.FailureAction) string {
	switch a {
	case reg.FailureAbort:
		return "abort"
	case reg.FailureExec:
		return "exec"
	default:
		return "defer"
	}
}

// resourceFromStruct reconstructs a config.Resource from the dynamic
// Struct a client sent, mirroring the apiVersion/kind/metadata/spec shape
// ParseAll produces from YAML.
func resourceFromStruct(s *structpb.Struct) config.Resource {
	m := s.AsMap()
	res := config.Resource{}
	if v, ok := m["apiVersion"].(string); ok {
		res.APIVersion = v
	}
	if v, ok := m["kind"].(string); ok {
		res.Kind = v
	}
	if meta, ok := m["metadata"].(map[string]interface{}); ok {
		if name, ok := meta["name"].(string); ok {
			res.Metadata.Name = name
		}
	}
	if spec, ok := m["spec"].(map[string]interface{}); ok {
		res.Spec = spec
	}
	return res
}

func structFromMap(m map[string]interface{}) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("adminapi: encode response: %w", err)
	}
	return s, nil
}

// newRequestID is the uuid-tagged correlation id stamped onto every admin
// RPC for audit logging (RequestIDInterceptor).
func newRequestID() string {
	return uuid.New().String()
}
