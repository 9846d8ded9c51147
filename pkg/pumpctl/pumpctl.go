// Package pumpctl defines the PumpControl gRPC service: a single unary
// WriteControl call that stores one numeric value at a control path.
// Messages are protobuf well-known types so no generated code is needed.
package pumpctl

import (
	"context"
	"math"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName        = "irrigation.PumpControl"
	WriteControlMethod = "/" + ServiceName + "/WriteControl"
)

// Request keys inside the structpb.Struct.
const (
	keyPath       = "path"
	keyValue      = "value"
	keyDecisionID = "decision_id"
)

// WriteRequest is the decoded form of a WriteControl call.
type WriteRequest struct {
	Path       string
	Value      float64
	DecisionID string
}

// Encode builds the wire message.
func (r WriteRequest) Encode() (*structpb.Struct, error) {
	fields := map[string]any{keyPath: r.Path, keyValue: r.Value}
	if r.DecisionID != "" {
		fields[keyDecisionID] = r.DecisionID
	}
	return structpb.NewStruct(fields)
}

// DecodeWriteRequest validates a wire message. Failures carry codes.InvalidArgument.
func DecodeWriteRequest(in *structpb.Struct) (WriteRequest, error) {
	if in == nil {
		return WriteRequest{}, status.Error(codes.InvalidArgument, "empty request")
	}
	f := in.GetFields()
	path := strings.TrimSpace(f[keyPath].GetStringValue())
	if path == "" {
		return WriteRequest{}, status.Error(codes.InvalidArgument, "path is required")
	}
	v, ok := f[keyValue].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return WriteRequest{}, status.Error(codes.InvalidArgument, "value must be a number")
	}
	if math.IsNaN(v.NumberValue) || math.IsInf(v.NumberValue, 0) {
		return WriteRequest{}, status.Error(codes.InvalidArgument, "value must be finite")
	}
	return WriteRequest{
		Path:       path,
		Value:      v.NumberValue,
		DecisionID: f[keyDecisionID].GetStringValue(),
	}, nil
}

// PumpControlServer is implemented by the device side.
type PumpControlServer interface {
	WriteControl(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error)
}

// PumpControlClient is the caller side of the service.
type PumpControlClient interface {
	WriteControl(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type pumpControlClient struct {
	cc grpc.ClientConnInterface
}

func NewPumpControlClient(cc grpc.ClientConnInterface) PumpControlClient {
	return &pumpControlClient{cc: cc}
}

func (c *pumpControlClient) WriteControl(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, WriteControlMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func RegisterPumpControlServer(s grpc.ServiceRegistrar, srv PumpControlServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func writeControlHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PumpControlServer).WriteControl(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: WriteControlMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PumpControlServer).WriteControl(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc describes PumpControl for grpc.Server registration.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PumpControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "WriteControl", Handler: writeControlHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "irrigation/pumpctl.proto",
}
