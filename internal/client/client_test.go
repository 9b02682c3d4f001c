package client_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/nolook/internal/client"
	"github.com/rbright/nolook/internal/command"
	"github.com/rbright/nolook/internal/config"
	"github.com/rbright/nolook/internal/engine"
	"github.com/rbright/nolook/internal/enginetest"
	"github.com/rbright/nolook/internal/fsm"
	"github.com/rbright/nolook/internal/ipc"
	"github.com/rbright/nolook/internal/notify"
	"github.com/rbright/nolook/internal/reconcile"
)

func testConfig(baseURL string) config.Config {
	cfg := config.Default()
	cfg.Engine.HTTP = baseURL
	cfg.Engine.RequestTimeoutMS = 1000
	cfg.Reconnect = config.ReconnectConfig{InitialMS: 10, MaxMS: 50}
	cfg.Notifications.TTLMS = 0
	return cfg
}

type running struct {
	*client.Client
	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan error
	err      error
}

func (r *running) stop() error {
	r.stopOnce.Do(func() {
		r.cancel()
		r.err = <-r.done
	})
	return r.err
}

func start(t *testing.T, cfg config.Config, deps client.Deps) *running {
	t.Helper()
	c, err := client.New(cfg, deps)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	r := &running{Client: c, cancel: cancel, done: make(chan error, 1)}
	go func() { r.done <- c.Run(ctx) }()
	t.Cleanup(func() { _ = r.stop() })
	return r
}

// hydrated waits for the pull snapshot so later pushes are not raced by it.
func hydrated(t *testing.T, c *running) {
	t.Helper()
	require.Eventually(t, func() bool { return c.Applied() >= 1 }, 2*time.Second, 5*time.Millisecond)
}

func messages(ch *notify.Channel) []string {
	var out []string
	for _, n := range ch.List() {
		out = append(out, n.Message)
	}
	return out
}

type lineRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (l *lineRecorder) Finalized(lines []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, lines...)
}

func (l *lineRecorder) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

func TestRunHydratesThenFollowsPush(t *testing.T) {
	eng := enginetest.New(t)
	st := engine.DefaultState()
	st.Mode = engine.ModeFake
	st.Ratio = 0.25
	eng.SetState(st)

	c := start(t, testConfig(eng.URL()), client.Deps{})
	require.Eventually(t, func() bool { return c.Model().Mode == engine.ModeFake }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, 25, c.Model().RatioPercent())

	eng.WaitSubscribers(1)
	eng.Push(map[string]any{"mode": "REAL", "ratio": 0.9})
	require.Eventually(t, func() bool { return c.Model().Mode == engine.ModeReal }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return c.Connection() == fsm.StateConnected }, 2*time.Second, 5*time.Millisecond)
}

func TestOneShotsAndWarmupEdgeBecomeNotifications(t *testing.T) {
	eng := enginetest.New(t)
	c := start(t, testConfig(eng.URL()), client.Deps{})
	hydrated(t, c)
	eng.WaitSubscribers(1)

	eng.Push(map[string]any{"reaction": "nice"})
	eng.Push(map[string]any{"notice": "macro fired"})
	eng.Push(map[string]any{"warmingUp": true, "warmupRemainingSec": 10})
	eng.Push(map[string]any{"warmingUp": false})

	require.Eventually(t, func() bool { return len(c.Notifications().List()) == 3 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, []string{
		reconcile.ReactionPrefix + "nice",
		"macro fired",
		reconcile.RecordingComplete,
	}, messages(c.Notifications()))
}

func TestGateFollowsModel(t *testing.T) {
	eng := enginetest.New(t)
	c := start(t, testConfig(eng.URL()), client.Deps{})
	hydrated(t, c)
	eng.WaitSubscribers(1)

	eng.Push(map[string]any{"warmingUp": true, "warmupTotalSec": 30, "warmupRemainingSec": 15})
	require.Eventually(t, func() bool { return c.Gate().Show }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, "00:15", c.Gate().Remaining())
	require.Equal(t, 50, c.Gate().Percent())
}

func TestTranscriptLinesReachSink(t *testing.T) {
	eng := enginetest.New(t)
	rec := &lineRecorder{}
	c := start(t, testConfig(eng.URL()), client.Deps{Lines: rec})
	hydrated(t, c)
	eng.WaitSubscribers(1)

	eng.Push(map[string]any{"stt": map[string]any{"history": []any{"one"}, "current": "tw"}})
	eng.Push(map[string]any{"stt": map[string]any{"history": []any{"one", "two"}, "current": ""}})

	require.Eventually(t, func() bool { return len(rec.get()) == 2 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"one", "two"}, rec.get())
	require.Equal(t, []string{"one", "two"}, c.Transcript().Lines())
}

func TestTeardownReleasesEverything(t *testing.T) {
	eng := enginetest.New(t)
	c := start(t, testConfig(eng.URL()), client.Deps{})
	eng.WaitSubscribers(1)

	require.NoError(t, c.stop())
	eng.WaitSubscribers(0)
	require.Equal(t, fsm.StateClosed, c.Connection())

	require.Empty(t, c.Notifications().Emit("late", notify.KindInfo))
	for range c.Updates() {
	}
	require.ErrorIs(t, c.Run(context.Background()), client.ErrAlreadyStarted)
}

func TestTeardownWithUnreachableEngine(t *testing.T) {
	c := start(t, testConfig("http://127.0.0.1:1"), client.Deps{})
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, c.stop())
	require.Equal(t, fsm.StateClosed, c.Connection())
	require.Equal(t, uint64(0), c.Applied())
}

func TestCommandsUseMirroredValues(t *testing.T) {
	eng := enginetest.New(t)
	st := engine.DefaultState()
	st.PauseFake = true
	st.AssistantEnabled = true
	eng.SetState(st)

	c := start(t, testConfig(eng.URL()), client.Deps{})
	require.Eventually(t, func() bool { return c.Model().PauseFake }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, c.TogglePauseFake(context.Background()))
	require.NoError(t, c.ToggleAssistant(context.Background()))
	require.NoError(t, c.ToggleForceReal(context.Background()))

	reqs := eng.Requests()
	require.Len(t, reqs, 3)
	require.Equal(t, false, reqs[0].Body["enabled"])
	require.Equal(t, false, reqs[1].Body["enabled"])
	require.Equal(t, true, reqs[2].Body["enabled"])

	// The mirror only moves when the engine reports it.
	require.True(t, c.Model().PauseFake)
	require.Equal(t, []string{"PauseFake: OFF", "Auto Macro: OFF", "ForceREAL: ON"}, messages(c.Notifications()))
}

func TestRejectedCommandLeavesNoTrace(t *testing.T) {
	eng := enginetest.New(t)
	eng.RejectCommands(true)
	c := start(t, testConfig(eng.URL()), client.Deps{})

	require.ErrorIs(t, c.ResetLock(context.Background()), command.ErrNotConfirmed)
	require.Empty(t, c.Notifications().List())
}

func TestHandleStatusAndCommands(t *testing.T) {
	eng := enginetest.New(t)
	st := engine.DefaultState()
	st.Mode = engine.ModeFake
	st.Ratio = 0.5
	st.LockedFake = true
	eng.SetState(st)

	c := start(t, testConfig(eng.URL()), client.Deps{})
	require.Eventually(t, func() bool { return c.Model().LockedFake }, 2*time.Second, 5*time.Millisecond)

	resp := c.Handle(context.Background(), ipc.Request{Command: ipc.CommandStatus})
	require.True(t, resp.OK)
	require.NotNil(t, resp.Status)
	require.Equal(t, "FAKE", resp.Status.Mode)
	require.Equal(t, 50, resp.Status.RatioPercent)
	require.Equal(t, "FAKE 50% locked", resp.Message)

	resp = c.Handle(context.Background(), ipc.Request{Command: ipc.CommandForceReal})
	require.True(t, resp.OK)
	require.Equal(t, "ForceREAL: ON", resp.Message)

	resp = c.Handle(context.Background(), ipc.Request{Command: ipc.CommandResetLock})
	require.True(t, resp.OK)
	require.False(t, eng.State().LockedFake)

	resp = c.Handle(context.Background(), ipc.Request{Command: "bogus"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unknown command")

	eng.RejectCommands(true)
	resp = c.Handle(context.Background(), ipc.Request{Command: ipc.CommandPauseFake})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "did not confirm")
}

func TestGRPCPushFromConfig(t *testing.T) {
	eng := enginetest.New(t)
	cfg := testConfig(eng.URL())
	cfg.Engine.Push = config.PushGRPC
	cfg.Engine.GRPC = eng.ServeGRPC()

	c := start(t, cfg, client.Deps{})
	eng.WaitSubscribers(1)
	eng.Push(map[string]any{"mode": "FAKE", "lockedFake": true})
	require.Eventually(t, func() bool { return c.Model().LockedFake }, 2*time.Second, 5*time.Millisecond)
}

func TestNewRejectsUnknownPush(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:8000")
	cfg.Engine.Push = "carrier-pigeon"
	_, err := client.New(cfg, client.Deps{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "carrier-pigeon")
}

func TestSummary(t *testing.T) {
	st := engine.DefaultState()
	st.Mode = engine.ModeFake
	st.Ratio = 0.33
	st.WarmingUp = true
	st.WarmupRemainingSec = 75
	require.Equal(t, "FAKE 33% warming 01:15", client.Summary(client.StatusOf(st, nil)))
}
