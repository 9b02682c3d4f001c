// Package connection owns the push channel to the engine: one live
// subscription at a time, a single inbound handler slot, reconnect backoff,
// and pull-based hydration routed through the same handler.
package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rbright/nolook/internal/engine"
	"github.com/rbright/nolook/internal/fsm"
	"github.com/rbright/nolook/internal/logging"
)

// ErrNoTransport is returned by Connect when no push transport is configured.
var ErrNoTransport = errors.New("no push transport configured")

// Stream yields snapshots from one live push connection in send order.
type Stream interface {
	Recv(ctx context.Context) (*engine.Snapshot, error)
	Close() error
}

// Transport opens push streams.
type Transport interface {
	Name() string
	Dial(ctx context.Context) (Stream, error)
}

// Fetcher performs one pull of full engine state.
type Fetcher interface {
	FetchState(ctx context.Context) (*engine.Snapshot, error)
}

// Handler consumes inbound snapshots. It runs on the delivering goroutine
// and must not call Disconnect.
type Handler func(*engine.Snapshot)

// Backoff bounds reconnect delays.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

func (b Backoff) next(current time.Duration) time.Duration {
	if current <= 0 {
		return b.Initial
	}
	return min(current*2, b.Max)
}

// Options configures a Manager.
type Options struct {
	Transport Transport
	Fetcher   Fetcher
	Backoff   Backoff
	Logger    *slog.Logger
}

// Manager is safe for concurrent use.
type Manager struct {
	transport Transport
	fetcher   Fetcher
	backoff   Backoff
	logger    *slog.Logger

	handlerMu sync.RWMutex
	handler   Handler

	mu     sync.Mutex
	state  fsm.State
	cancel context.CancelFunc
	done   chan struct{}

	hydrations singleflight.Group
}

// NewManager builds an idle manager.
func NewManager(opts Options) *Manager {
	if opts.Backoff.Initial <= 0 {
		opts.Backoff.Initial = 500 * time.Millisecond
	}
	if opts.Backoff.Max < opts.Backoff.Initial {
		opts.Backoff.Max = opts.Backoff.Initial
	}
	return &Manager{
		transport: opts.Transport,
		fetcher:   opts.Fetcher,
		backoff:   opts.Backoff,
		logger:    logging.OrDiscard(opts.Logger),
		state:     fsm.StateIdle,
	}
}

// SetHandler installs h as the only inbound handler, replacing any other.
func (m *Manager) SetHandler(h Handler) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.handler = h
}

// ClearHandler empties the handler slot; later snapshots are dropped.
func (m *Manager) ClearHandler() {
	m.SetHandler(nil)
}

// State reports the push connection lifecycle state.
func (m *Manager) State() fsm.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect starts the push subscription. It returns immediately; dialing and
// reconnects happen in the background until Disconnect or ctx ends. Calling
// Connect while a subscription is live is a no-op.
func (m *Manager) Connect(ctx context.Context) error {
	if m.transport == nil {
		return ErrNoTransport
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if fsm.Live(m.state) {
		return nil
	}
	if m.state == fsm.StateClosed {
		m.state, _ = fsm.Transition(m.state, fsm.EventReset)
	}
	next, err := fsm.Transition(m.state, fsm.EventConnect)
	if err != nil {
		return err
	}
	m.state = next

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done

	m.logger.Info("push connecting", "transport", m.transport.Name())
	go m.run(runCtx, done)
	return nil
}

// Disconnect tears the subscription down and waits for its reader to exit.
// It is safe to call with no subscription and safe to call repeatedly.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != fsm.StateClosed {
		m.state, _ = fsm.Transition(m.state, fsm.EventClose)
		m.logger.Info("push disconnected")
	}
}

// Hydrate pulls full state once and routes it through the handler. Failures
// are logged and otherwise ignored; concurrent calls share one fetch.
func (m *Manager) Hydrate(ctx context.Context) {
	if m.fetcher == nil {
		return
	}
	_, err, _ := m.hydrations.Do("hydrate", func() (any, error) {
		snapshot, err := m.fetcher.FetchState(ctx)
		if err != nil {
			return nil, err
		}
		m.deliver(snapshot)
		return nil, nil
	})
	if err != nil {
		m.logger.Debug("hydration failed", "error", err)
	}
}

func (m *Manager) deliver(s *engine.Snapshot) {
	m.handlerMu.RLock()
	h := m.handler
	m.handlerMu.RUnlock()
	if h == nil || s == nil {
		return
	}
	h(s)
}

func (m *Manager) transition(event fsm.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := fsm.Transition(m.state, event)
	if err != nil {
		m.logger.Debug("ignored lifecycle event", "state", m.state, "event", event)
		return
	}
	m.state = next
}

func (m *Manager) run(ctx context.Context, done chan struct{}) {
	var rehydrate sync.WaitGroup
	defer close(done)
	defer m.release(done)
	defer rehydrate.Wait()

	var delay time.Duration
	established := false
	for {
		stream, err := m.transport.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			delay = m.backoff.next(delay)
			m.logger.Warn("push dial failed", "transport", m.transport.Name(), "error", err, "retry_in", delay)
			m.transition(fsm.EventLost)
			if !sleep(ctx, delay) {
				return
			}
			continue
		}

		delay = 0
		m.transition(fsm.EventEstablished)
		m.logger.Info("push connected", "transport", m.transport.Name())
		if established {
			rehydrate.Add(1)
			go func() {
				defer rehydrate.Done()
				m.Hydrate(ctx)
			}()
		}
		established = true

		err = m.pump(ctx, stream)
		if ctx.Err() != nil {
			return
		}
		m.logger.Warn("push connection lost", "transport", m.transport.Name(), "error", err)
		m.transition(fsm.EventLost)
		if !sleep(ctx, m.backoff.Initial) {
			return
		}
	}
}

// release closes the lifecycle when run ends because the Connect context did,
// so a later Connect subscribes again. After Disconnect it does nothing.
func (m *Manager) release(done chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != done {
		return
	}
	m.cancel()
	m.cancel, m.done = nil, nil
	if next, err := fsm.Transition(m.state, fsm.EventClose); err == nil {
		m.state = next
	}
	m.logger.Info("push stopped", "reason", "context done")
}

// pump delivers snapshots from stream until it fails or ctx ends.
func (m *Manager) pump(ctx context.Context, stream Stream) error {
	stop := context.AfterFunc(ctx, func() { _ = stream.Close() })
	defer func() {
		stop()
		_ = stream.Close()
	}()

	for {
		snapshot, err := stream.Recv(ctx)
		if err != nil {
			return err
		}
		m.deliver(snapshot)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
