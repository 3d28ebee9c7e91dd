package adminapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "adminapi.AdminAPI"

// AdminAPIServer is implemented by Server. Every RPC takes and returns a
// dynamic structpb.Struct; see the package doc comment for why.
type AdminAPIServer interface {
	// Apply submits one config.Resource (encoded as a Struct with the
	// same apiVersion/kind/metadata/spec shape as the YAML form) to the
	// node's running configuration.
	Apply(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListLinks(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRoutes(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRegistrations(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// AdminAPIClient is the hand-written equivalent of a protoc-gen-go-grpc
// client stub.
type AdminAPIClient interface {
	Apply(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListLinks(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListRoutes(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListRegistrations(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetStatus(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type adminAPIClient struct {
	cc grpc.ClientConnInterface
}

// NewAdminAPIClient wraps an established connection.
func NewAdminAPIClient(cc grpc.ClientConnInterface) AdminAPIClient {
	return &adminAPIClient{cc: cc}
}

func (c *adminAPIClient) Apply(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Apply", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *adminAPIClient) ListLinks(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/ListLinks", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *adminAPIClient) ListRoutes(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/ListRoutes", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *adminAPIClient) ListRegistrations(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/ListRegistrations", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *adminAPIClient) GetStatus(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/GetStatus", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func adminAPIApplyHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminAPIServer).Apply(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Apply"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminAPIServer).Apply(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func adminAPIListLinksHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminAPIServer).ListLinks(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ListLinks"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminAPIServer).ListLinks(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func adminAPIListRoutesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminAPIServer).ListRoutes(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ListRoutes"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminAPIServer).ListRoutes(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func adminAPIListRegistrationsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminAPIServer).ListRegistrations(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ListRegistrations"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminAPIServer).ListRegistrations(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func adminAPIGetStatusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminAPIServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/GetStatus"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminAPIServer).GetStatus(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// adminAPIServiceDesc is the hand-written equivalent of the ServiceDesc a
// .proto file's service block would generate.
var adminAPIServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*AdminAPIServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Apply", Handler: adminAPIApplyHandler},
		{MethodName: "ListLinks", Handler: adminAPIListLinksHandler},
		{MethodName: "ListRoutes", Handler: adminAPIListRoutesHandler},
		{MethodName: "ListRegistrations", Handler: adminAPIListRegistrationsHandler},
		{MethodName: "GetStatus", Handler: adminAPIGetStatusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pkg/adminapi/service.go",
}

// RegisterAdminAPIServer wires srv into s, mirroring proto.RegisterWarrenAPIServer.
func RegisterAdminAPIServer(s grpc.ServiceRegistrar, srv AdminAPIServer) {
	s.RegisterService(&adminAPIServiceDesc, srv)
}
