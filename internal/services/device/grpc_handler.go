package device

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vineetmishra237/smart-irrigation/internal/model/messages"
	"github.com/vineetmishra237/smart-irrigation/pkg/pumpctl"
)

// GrpcHandler serves PumpControl on top of a DeviceService.
type GrpcHandler struct {
	svc *DeviceService
}

var _ pumpctl.PumpControlServer = (*GrpcHandler)(nil)

func NewGrpcHandler(svc *DeviceService) *GrpcHandler {
	return &GrpcHandler{svc: svc}
}

func (h *GrpcHandler) WriteControl(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	req, err := pumpctl.DecodeWriteRequest(in)
	if err != nil {
		return nil, err
	}
	err = h.svc.Apply(ctx, messages.ControlWrite{
		DecisionID: req.DecisionID,
		Path:       req.Path,
		Value:      req.Value,
		Timestamp:  h.svc.now().UTC(),
	})
	switch {
	case err == nil:
		return &emptypb.Empty{}, nil
	case errors.Is(err, ErrInvalidValue):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, status.FromContextError(err).Err()
	default:
		return nil, status.Error(codes.Unavailable, err.Error())
	}
}
