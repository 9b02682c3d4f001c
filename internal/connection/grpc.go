package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rbright/nolook/internal/engine"
	"github.com/rbright/nolook/internal/logging"
)

// Engine push service contract: Watch(Empty) returns (stream Struct).
const (
	ServiceName = "nolook.engine.v1.Engine"
	WatchMethod = "/" + ServiceName + "/Watch"
)

// WatchServer is implemented by engines that serve the push stream.
type WatchServer interface {
	Watch(*emptypb.Empty, grpc.ServerStream) error
}

// EngineServiceDesc registers a WatchServer on a grpc.Server.
var EngineServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*WatchServer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    "Watch",
		Handler:       watchHandler,
		ServerStreams: true,
	}},
	Metadata: "nolook/engine/v1/engine.proto",
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(WatchServer).Watch(in, stream)
}

var watchStreamDesc = &grpc.StreamDesc{StreamName: "Watch", ServerStreams: true}

// GRPC is a push transport over a server-streaming RPC carrying
// google.protobuf.Struct snapshots.
type GRPC struct {
	Target      string
	DialTimeout time.Duration
	DialOptions []grpc.DialOption
	Logger      *slog.Logger
}

// Name identifies the transport in logs.
func (g *GRPC) Name() string { return "grpc" }

// Dial connects, waits for readiness and opens the Watch stream.
func (g *GRPC) Dial(ctx context.Context) (Stream, error) {
	target := strings.TrimSpace(g.Target)
	if target == "" {
		return nil, errors.New("engine grpc target is empty")
	}
	timeout := g.DialTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, g.DialOptions...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial engine grpc %q: %w", target, err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn.Connect()
	if err := WaitForReady(readyCtx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("wait for engine grpc readiness: %w", err)
	}

	streamCtx, streamCancel := context.WithCancel(ctx)
	cs, err := conn.NewStream(streamCtx, watchStreamDesc, WatchMethod)
	if err == nil {
		err = cs.SendMsg(&emptypb.Empty{})
	}
	if err == nil {
		err = cs.CloseSend()
	}
	if err != nil {
		streamCancel()
		_ = conn.Close()
		return nil, fmt.Errorf("open watch stream: %w", err)
	}

	logging.OrDiscard(g.Logger).Debug("watch stream opened", "target", target)
	return &grpcStream{
		conn:   conn,
		stream: cs,
		cancel: streamCancel,
	}, nil
}

// WaitForReady blocks until the connection enters Ready or fails.
func WaitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("grpc connection entered shutdown state")
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("grpc readiness wait timed out in state %s", state.String())
		}
	}
}

type grpcStream struct {
	conn   *grpc.ClientConn
	stream grpc.ClientStream
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

func (s *grpcStream) Recv(ctx context.Context) (*engine.Snapshot, error) {
	msg := new(structpb.Struct)
	if err := s.stream.RecvMsg(msg); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return engine.FromStruct(msg), nil
}

func (s *grpcStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
