// Package enginetest provides an in-process engine for tests: the HTTP state
// and command endpoints, the websocket push channel and the gRPC Watch stream.
package enginetest

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rbright/nolook/internal/api"
	"github.com/rbright/nolook/internal/connection"
	"github.com/rbright/nolook/internal/engine"
)

const (
	StatePath = "/api/engine/state"
	WSPath    = "/ws/engine"
)

// Request records one command call.
type Request struct {
	Path string
	Body map[string]any
}

// Engine is a scriptable fake. The zero value is not usable; call New.
type Engine struct {
	t      testing.TB
	server *httptest.Server

	mu          sync.Mutex
	state       engine.State
	requests    []Request
	reject      bool
	status      int
	stateStatus int
	subs        map[*subscriber]struct{}
	connects    int
}

type subscriber struct {
	ws    *websocket.Conn
	grpc  chan map[string]any
	write sync.Mutex
}

// New starts the HTTP side of a fake engine and stops it on test cleanup.
func New(t testing.TB) *Engine {
	t.Helper()

	e := &Engine{
		t:     t,
		state: engine.DefaultState(),
		subs:  make(map[*subscriber]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+StatePath, e.handleState)
	mux.HandleFunc("GET "+WSPath, e.handleWS)
	mux.HandleFunc("POST "+api.PathPauseFake, e.handleToggle(func(st *engine.State, v bool) { st.PauseFake = v }))
	mux.HandleFunc("POST "+api.PathForceReal, e.handleToggle(func(st *engine.State, v bool) { st.ForceReal = v }))
	mux.HandleFunc("POST "+api.PathAssistant, e.handleToggle(func(st *engine.State, v bool) { st.AssistantEnabled = v }))
	mux.HandleFunc("POST "+api.PathResetLock, e.handleToggle(func(st *engine.State, _ bool) { st.LockedFake = false }))

	e.server = httptest.NewServer(mux)
	t.Cleanup(e.Close)
	return e
}

// URL is the engine base URL.
func (e *Engine) URL() string { return e.server.URL }

// WSURL is the websocket push endpoint.
func (e *Engine) WSURL() string { return "ws" + e.server.URL[len("http"):] + WSPath }

// Close stops every server and drops subscribers.
func (e *Engine) Close() {
	e.DropSubscribers()
	e.server.Close()
}

// SetState replaces the authoritative state.
func (e *Engine) SetState(st engine.State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = st.Clone()
}

// State returns the authoritative state.
func (e *Engine) State() engine.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// RejectCommands makes later commands reply {"ok": false}.
func (e *Engine) RejectCommands(reject bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reject = reject
}

// FailCommands makes later commands reply with an HTTP status; 0 restores.
func (e *Engine) FailCommands(status int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = status
}

// FailState makes the pull endpoint reply with an HTTP status; 0 restores.
func (e *Engine) FailState(status int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stateStatus = status
}

// Requests returns recorded command calls in arrival order.
func (e *Engine) Requests() []Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Request(nil), e.requests...)
}

// Connects counts push subscriptions accepted so far.
func (e *Engine) Connects() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connects
}

// Subscribers counts live push subscriptions.
func (e *Engine) Subscribers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// WaitSubscribers blocks until n push subscriptions are live.
func (e *Engine) WaitSubscribers(n int) {
	e.t.Helper()
	require.Eventually(e.t, func() bool { return e.Subscribers() == n }, 3*time.Second, 5*time.Millisecond)
}

// Push sends msg to every subscriber as JSON text or a gRPC Struct.
func (e *Engine) Push(msg map[string]any) {
	e.broadcast(msg, false)
}

// PushBinary sends msg to websocket subscribers as a MessagePack frame.
func (e *Engine) PushBinary(msg map[string]any) {
	e.broadcast(msg, true)
}

// PushRaw writes an arbitrary websocket frame.
func (e *Engine) PushRaw(kind int, data []byte) {
	for _, sub := range e.snapshotSubs() {
		if sub.ws == nil {
			continue
		}
		sub.write.Lock()
		_ = sub.ws.WriteMessage(kind, data)
		sub.write.Unlock()
	}
}

// PushState pushes the current authoritative state.
func (e *Engine) PushState() {
	e.Push(e.State().Wire())
}

// DropSubscribers closes every live push subscription.
func (e *Engine) DropSubscribers() {
	e.mu.Lock()
	subs := e.subs
	e.subs = make(map[*subscriber]struct{})
	e.mu.Unlock()

	for sub := range subs {
		if sub.ws != nil {
			_ = sub.ws.Close()
		}
		if sub.grpc != nil {
			close(sub.grpc)
		}
	}
}

// ServeGRPC starts the Watch service and gRPC health on a loopback listener.
func (e *Engine) ServeGRPC() string {
	e.t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(e.t, err)

	srv := grpc.NewServer()
	srv.RegisterService(&connection.EngineServiceDesc, &watchServer{e: e})
	hs := health.NewServer()
	hs.SetServingStatus(connection.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	go func() { _ = srv.Serve(lis) }()
	e.t.Cleanup(func() {
		e.DropSubscribers()
		srv.Stop()
	})
	return lis.Addr().String()
}

func (e *Engine) snapshotSubs() []*subscriber {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*subscriber, 0, len(e.subs))
	for sub := range e.subs {
		out = append(out, sub)
	}
	return out
}

func (e *Engine) broadcast(msg map[string]any, binary bool) {
	for _, sub := range e.snapshotSubs() {
		switch {
		case sub.grpc != nil:
			sub.grpc <- msg
		case binary:
			data, err := msgpack.Marshal(msg)
			require.NoError(e.t, err)
			sub.write.Lock()
			_ = sub.ws.WriteMessage(websocket.BinaryMessage, data)
			sub.write.Unlock()
		default:
			data, err := json.Marshal(msg)
			require.NoError(e.t, err)
			sub.write.Lock()
			_ = sub.ws.WriteMessage(websocket.TextMessage, data)
			sub.write.Unlock()
		}
	}
}

func (e *Engine) addSub(sub *subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs[sub] = struct{}{}
	e.connects++
}

func (e *Engine) removeSub(sub *subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.subs, sub)
}

func (e *Engine) handleState(w http.ResponseWriter, _ *http.Request) {
	e.mu.Lock()
	status := e.stateStatus
	wire := e.state.Wire()
	e.mu.Unlock()

	if status != 0 {
		http.Error(w, "unavailable", status)
		return
	}
	writeJSON(w, wire)
}

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func (e *Engine) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	sub := &subscriber{ws: conn}
	e.addSub(sub)
	defer func() {
		e.removeSub(sub)
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (e *Engine) handleToggle(apply func(*engine.State, bool)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body := map[string]any{}
		_ = json.Unmarshal(raw, &body)

		e.mu.Lock()
		e.requests = append(e.requests, Request{Path: r.URL.Path, Body: body})
		status, reject := e.status, e.reject
		if status == 0 && !reject {
			enabled, _ := body["enabled"].(bool)
			apply(&e.state, enabled)
		}
		e.mu.Unlock()

		if status != 0 {
			http.Error(w, "engine failure", status)
			return
		}
		writeJSON(w, map[string]bool{"ok": !reject})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type watchServer struct {
	e *Engine
}

func (s *watchServer) Watch(_ *emptypb.Empty, stream grpc.ServerStream) error {
	sub := &subscriber{grpc: make(chan map[string]any, 16)}
	s.e.addSub(sub)
	defer s.e.removeSub(sub)

	for {
		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case msg, ok := <-sub.grpc:
			if !ok {
				return nil
			}
			pb, err := structpb.NewStruct(msg)
			if err != nil {
				return err
			}
			if err := stream.SendMsg(pb); err != nil {
				return err
			}
		}
	}
}
