package adminapi

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is a typed convenience wrapper over AdminAPIClient for the CLI
// (cmd/dtnd apply/status subcommands) and tests, hiding the Struct
// marshaling detail from callers.
type Client struct {
	rpc AdminAPIClient
}

// NewClient wraps an already-dialed connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{rpc: NewAdminAPIClient(cc)}
}

// ApplyResource submits one apiVersion/kind/metadata/spec document.
func (c *Client) ApplyResource(ctx context.Context, apiVersion, kind, name string, spec map[string]interface{}) error {
	in, err := structFromMap(map[string]interface{}{
		"apiVersion": apiVersion,
		"kind":       kind,
		"metadata":   map[string]interface{}{"name": name},
		"spec":       spec,
	})
	if err != nil {
		return err
	}
	_, err = c.rpc.Apply(ctx, in)
	return err
}

// ListLinks returns the node's links as generic maps (name/state/next_hop/...).
func (c *Client) ListLinks(ctx context.Context) ([]interface{}, error) {
	out, err := c.rpc.ListLinks(ctx, emptyStruct())
	if err != nil {
		return nil, err
	}
	return listField(out, "links"), nil
}

// ListRoutes returns the node's route table as generic maps.
func (c *Client) ListRoutes(ctx context.Context) ([]interface{}, error) {
	out, err := c.rpc.ListRoutes(ctx, emptyStruct())
	if err != nil {
		return nil, err
	}
	return listField(out, "routes"), nil
}

// ListRegistrations returns the node's registrations as generic maps.
func (c *Client) ListRegistrations(ctx context.Context) ([]interface{}, error) {
	out, err := c.rpc.ListRegistrations(ctx, emptyStruct())
	if err != nil {
		return nil, err
	}
	return listField(out, "registrations"), nil
}

// Status returns the node's top-level status summary as a generic map.
func (c *Client) Status(ctx context.Context) (map[string]interface{}, error) {
	out, err := c.rpc.GetStatus(ctx, emptyStruct())
	if err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

func emptyStruct() *structpb.Struct {
	s, _ := structpb.NewStruct(nil)
	return s
}

func listField(s *structpb.Struct, key string) []interface{} {
	m := s.AsMap()
	v, ok := m[key]
	if !ok {
		return nil
	}
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	return list
}

// DialInsecurePlaintext is a small helper for loopback admin connections
// where mTLS is not configured (the common case documented on NewServer).
func DialInsecurePlaintext(ctx context.Context, addr string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("adminapi: dial %s: %w", addr, err)
	}
	return conn, nil
}
