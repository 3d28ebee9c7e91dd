package adminapi

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type requestIDKey struct{}

// RequestIDInterceptor stamps every inbound RPC with a uuid correlation
// id before the handler runs, so Apply's audit log line and any error a
// caller reports back can be tied together.
func RequestIDInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		ctx = context.WithValue(ctx, requestIDKey{}, newRequestID())
		return handler(ctx, req)
	}
}

// ReadOnlyInterceptor rejects every RPC but the List*/GetStatus ones,
// mirroring the teacher's Unix-socket read-only gate: a restricted
// listener can report node state to any local caller without handing out
// write access to links, routes, or registrations.
func ReadOnlyInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if !isReadOnlyMethod(info.FullMethod) {
			return nil, status.Errorf(codes.PermissionDenied, "write operations not allowed on this listener")
		}
		return handler(ctx, req)
	}
}

func isReadOnlyMethod(method string) bool {
	parts := strings.Split(method, "/")
	if len(parts) < 2 {
		return false
	}
	switch parts[len(parts)-1] {
	case "ListLinks", "ListRoutes", "ListRegistrations", "GetStatus":
		return true
	default:
		return false
	}
}
