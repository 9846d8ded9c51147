package irrigation_controller

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/vineetmishra237/smart-irrigation/pkg/pumpctl"
)

// GRPCControl writes control values to the device service over gRPC.
type GRPCControl struct {
	conn   *grpc.ClientConn
	client pumpctl.PumpControlClient
}

var _ ControlChannel = (*GRPCControl)(nil)

// NewGRPCControl creates a client for addr. The connection is established lazily
// on the first write, so an offline device only fails individual writes.
func NewGRPCControl(addr string, opts ...grpc.DialOption) (*GRPCControl, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, eris.Wrapf(err, "control: grpc client for %s", addr)
	}
	zap.L().Info("control: grpc channel configured", zap.String("addr", addr))
	return &GRPCControl{conn: conn, client: pumpctl.NewPumpControlClient(conn)}, nil
}

func (c *GRPCControl) Write(ctx context.Context, path string, value float64) error {
	in, err := pumpctl.WriteRequest{Path: path, Value: value, DecisionID: DecisionIDFrom(ctx)}.Encode()
	if err != nil {
		return eris.Wrap(err, "control: encode write")
	}
	if _, err := c.client.WriteControl(ctx, in); err != nil {
		return eris.Wrapf(err, "control: write %s", path)
	}
	return nil
}

func (c *GRPCControl) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
