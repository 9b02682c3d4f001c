// Package client wires the engine connection, reconciler, notification
// channel and command dispatcher into one running control client.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbright/nolook/internal/api"
	"github.com/rbright/nolook/internal/command"
	"github.com/rbright/nolook/internal/config"
	"github.com/rbright/nolook/internal/connection"
	"github.com/rbright/nolook/internal/engine"
	"github.com/rbright/nolook/internal/fsm"
	"github.com/rbright/nolook/internal/logging"
	"github.com/rbright/nolook/internal/notify"
	"github.com/rbright/nolook/internal/reconcile"
	"github.com/rbright/nolook/internal/session"
	"github.com/rbright/nolook/internal/transcript"
)

// ErrAlreadyStarted is returned by a second Run on the same Client.
var ErrAlreadyStarted = errors.New("client already started")

const inboxSize = 64

// Deps carries optional collaborators. Zero values fall back to defaults
// derived from config.
type Deps struct {
	Logger    *slog.Logger
	Sink      notify.Sink
	Lines     reconcile.LineSink
	Transport connection.Transport
}

// Client is one control-client lifetime. Run may be called once.
type Client struct {
	logger     *slog.Logger
	api        *api.Client
	manager    *connection.Manager
	notes      *notify.Channel
	reconciler *reconcile.Reconciler
	commands   *command.Dispatcher

	inbox   chan *engine.Snapshot
	stopped chan struct{}
	updates chan struct{}
	started atomic.Bool

	stopOnce sync.Once
}

// New builds a client from cfg. Nothing touches the network until Run.
func New(cfg config.Config, deps Deps) (*Client, error) {
	logger := logging.OrDiscard(deps.Logger)

	httpClient, err := api.New(api.Options{
		BaseURL:   cfg.Engine.HTTP,
		StatePath: cfg.Engine.StatePath,
		Timeout:   cfg.Engine.RequestTimeout(),
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	transport := deps.Transport
	if transport == nil {
		transport, err = NewTransport(cfg, httpClient, logger)
		if err != nil {
			return nil, err
		}
	}

	notes := notify.New(notify.Options{
		TTL:        cfg.Notifications.TTL(),
		MaxVisible: cfg.Notifications.MaxVisible,
		Sink:       deps.Sink,
	})

	opts := []reconcile.Option{reconcile.WithLogger(logger)}
	if deps.Lines != nil {
		opts = append(opts, reconcile.WithLineSink(deps.Lines))
	}

	return &Client{
		logger: logger,
		api:    httpClient,
		manager: connection.NewManager(connection.Options{
			Transport: transport,
			Fetcher:   httpClient,
			Backoff: connection.Backoff{
				Initial: time.Duration(cfg.Reconnect.InitialMS) * time.Millisecond,
				Max:     time.Duration(cfg.Reconnect.MaxMS) * time.Millisecond,
			},
			Logger: logger,
		}),
		notes:      notes,
		reconciler: reconcile.New(notes, transcript.New(), opts...),
		commands:   command.New(httpClient, notes, logger),
		inbox:      make(chan *engine.Snapshot, inboxSize),
		stopped:    make(chan struct{}),
		updates:    make(chan struct{}, 1),
	}, nil
}

// NewTransport picks the push transport named by engine.push.
func NewTransport(cfg config.Config, httpClient *api.Client, logger *slog.Logger) (connection.Transport, error) {
	switch cfg.Engine.Push {
	case config.PushGRPC:
		return &connection.GRPC{
			Target:      cfg.Engine.GRPC,
			DialTimeout: cfg.Engine.RequestTimeout(),
			Logger:      logger,
		}, nil
	case config.PushWebSocket, "":
		return &connection.WebSocket{
			URL:         api.WebSocketURL(httpClient.BaseURL(), cfg.Engine.WSPath),
			DialTimeout: cfg.Engine.RequestTimeout(),
			Logger:      logger,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported engine.push %q", cfg.Engine.Push)
	}
}

// Run hydrates, subscribes and reconciles snapshots until ctx ends. On
// return the subscription is released, the handler slot cleared and the
// notification channel closed, whether or not connecting succeeded.
func (c *Client) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	var hydrate sync.WaitGroup
	defer func() {
		c.stop()
		c.manager.Disconnect()
		c.manager.ClearHandler()
		hydrate.Wait()
		c.notes.Close()
		close(c.updates)
		c.logger.Info("client stopped")
	}()

	c.manager.SetHandler(c.enqueue)
	hydrate.Add(1)
	go func() {
		defer hydrate.Done()
		c.manager.Hydrate(ctx)
	}()
	if err := c.manager.Connect(ctx); err != nil {
		return fmt.Errorf("connect push channel: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-c.inbox:
			c.reconciler.Reconcile(s)
			c.signal()
		}
	}
}

// enqueue hands a snapshot to the loop goroutine; after teardown it drops.
func (c *Client) enqueue(s *engine.Snapshot) {
	select {
	case c.inbox <- s:
	case <-c.stopped:
	}
}

func (c *Client) stop() {
	c.stopOnce.Do(func() { close(c.stopped) })
}

func (c *Client) signal() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

// Updates signals after each reconciled snapshot. Signals coalesce; the
// channel closes when Run returns.
func (c *Client) Updates() <-chan struct{} { return c.updates }

// Model is a copy of the mirrored engine state.
func (c *Client) Model() engine.State { return c.reconciler.Model() }

// Gate derives the warmup overlay from the current model.
func (c *Client) Gate() session.Gate { return session.FromState(c.Model()) }

// Notifications is the client's notification channel.
func (c *Client) Notifications() *notify.Channel { return c.notes }

// Transcript is the buffer kept in step with the mirrored STT view.
func (c *Client) Transcript() *transcript.Buffer { return c.reconciler.Transcript() }

// Connection reports the push lifecycle state.
func (c *Client) Connection() fsm.State { return c.manager.State() }

// Applied counts reconciled snapshots.
func (c *Client) Applied() uint64 { return c.reconciler.Applied() }

// TogglePauseFake inverts pause-fake relative to the mirrored value.
func (c *Client) TogglePauseFake(ctx context.Context) error {
	return c.commands.TogglePauseFake(ctx, c.Model().PauseFake)
}

// ToggleForceReal inverts force-real relative to the mirrored value.
func (c *Client) ToggleForceReal(ctx context.Context) error {
	return c.commands.ToggleForceReal(ctx, c.Model().ForceReal)
}

// ResetLock clears the engine's fake lock.
func (c *Client) ResetLock(ctx context.Context) error {
	return c.commands.ResetLock(ctx)
}

// ToggleAssistant inverts the assistant flag relative to the mirrored value.
func (c *Client) ToggleAssistant(ctx context.Context) error {
	return c.commands.ToggleAssistant(ctx, c.Model().AssistantEnabled)
}
