// Package adminapi is the loopback gRPC management surface for a running
// node: the Go-native stand-in for spec.md §6's "opaque admin channel"
// that "exposes a registration function per verb" for links, routes,
// registrations, and security keys, plus read-only status queries.
//
// It is structured the way the teacher's pkg/api built its management
// plane: a Server wrapping a *grpc.Server, optional mTLS via
// credentials.NewTLS, and a ReadOnlyInterceptor gating write RPCs on a
// restricted listener (the teacher used this to let a local Unix-socket
// CLI connection read cluster state without a client certificate).
//
// One deliberate simplification from the teacher's api/proto package:
// there is no protoc toolchain run available in this exercise, so request
// and response messages are not generated from a .proto file. Instead
// every RPC exchanges a google.golang.org/protobuf/types/known/structpb.Struct
// — the protobuf runtime's own dynamic, schema-less message type — built
// from and read back into plain Go maps on either side. This keeps the
// wire format genuinely protobuf (structpb.Struct is a proto.Message,
// the standard gRPC "proto" codec serializes it with no special-casing)
// without hand-maintaining generated .pb.go stubs. The ServiceDesc,
// client stub, and handler plumbing below are written in the exact shape
// protoc-gen-go-grpc would have produced for a five-method service.
package adminapi
