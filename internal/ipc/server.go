package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/rbright/nolook/internal/logging"
)

// DefaultDeadline bounds one connection, including the handler's engine call.
const DefaultDeadline = 10 * time.Second

const replyWindow = time.Second

// Handler processes one IPC command request.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Server answers control requests. Unknown commands are refused before they
// reach Handler.
type Server struct {
	Handler  Handler
	Logger   *slog.Logger
	Deadline time.Duration
}

// Serve runs a default Server for handler on listener.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	return (&Server{Handler: handler}).Serve(ctx, listener)
}

// Serve accepts clients until ctx ends or the listener closes, then waits for
// in-flight requests.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept IPC connection: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conn.Close()
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	deadline := s.Deadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	_ = conn.SetDeadline(time.Now().Add(deadline))
	logger := logging.OrDiscard(s.Logger)

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		reply(conn, Response{OK: false, Error: fmt.Sprintf("read request: %v", err)})
		return
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		reply(conn, Response{OK: false, Error: fmt.Sprintf("decode request: %v", err)})
		return
	}
	if !Known(req.Command) {
		logger.Debug("control request refused", "command", req.Command)
		reply(conn, Response{OK: false, Error: fmt.Sprintf("unknown command: %s", req.Command)})
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	started := time.Now()
	resp := s.Handler.Handle(reqCtx, req)
	logger.Debug("control request",
		"command", req.Command,
		"ok", resp.OK,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	reply(conn, resp)
}

// reply gets its own write window so a handler that used the whole deadline
// can still report why.
func reply(conn net.Conn, resp Response) {
	_ = conn.SetWriteDeadline(time.Now().Add(replyWindow))
	_ = json.NewEncoder(conn).Encode(resp)
}
