package connection

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rbright/nolook/internal/engine"
	"github.com/rbright/nolook/internal/logging"
)

const wsReadLimit = 1 << 20

// WebSocket is a push transport reading JSON text frames and MessagePack
// binary frames from the engine.
type WebSocket struct {
	URL         string
	Header      http.Header
	DialTimeout time.Duration
	Logger      *slog.Logger
}

// Name identifies the transport in logs.
func (w *WebSocket) Name() string { return "websocket" }

// Dial opens one websocket subscription.
func (w *WebSocket) Dial(ctx context.Context) (Stream, error) {
	dialer := *websocket.DefaultDialer
	if w.DialTimeout > 0 {
		dialer.HandshakeTimeout = w.DialTimeout
	}

	conn, resp, err := dialer.DialContext(ctx, w.URL, w.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: HTTP %d: %w", w.URL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", w.URL, err)
	}
	conn.SetReadLimit(wsReadLimit)

	return &wsStream{conn: conn, logger: logging.OrDiscard(w.Logger)}, nil
}

type wsStream struct {
	conn   *websocket.Conn
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Recv returns the next decodable snapshot. Undecodable frames are logged and
// skipped; they never end the subscription.
func (s *wsStream) Recv(ctx context.Context) (*engine.Snapshot, error) {
	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, fmt.Errorf("engine closed push channel: %w", err)
			}
			return nil, err
		}

		var snapshot *engine.Snapshot
		switch kind {
		case websocket.TextMessage:
			snapshot, err = engine.DecodeJSON(data)
		case websocket.BinaryMessage:
			snapshot, err = engine.DecodeMsgpack(data)
		default:
			continue
		}
		if err != nil {
			s.logger.Warn("dropping undecodable push frame", "error", err, "bytes", len(data))
			continue
		}
		return snapshot, nil
	}
}

func (s *wsStream) Close() error {
	s.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			deadline,
		)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
