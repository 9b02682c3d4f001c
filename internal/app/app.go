// Package app wires parsed CLI commands to the client runtime, the control
// socket and the one-shot engine calls.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rbright/nolook/internal/api"
	"github.com/rbright/nolook/internal/archive"
	"github.com/rbright/nolook/internal/cli"
	"github.com/rbright/nolook/internal/client"
	"github.com/rbright/nolook/internal/command"
	"github.com/rbright/nolook/internal/config"
	"github.com/rbright/nolook/internal/discovery"
	"github.com/rbright/nolook/internal/doctor"
	"github.com/rbright/nolook/internal/engine"
	"github.com/rbright/nolook/internal/indicator"
	"github.com/rbright/nolook/internal/ipc"
	"github.com/rbright/nolook/internal/logging"
	"github.com/rbright/nolook/internal/tui"
	"github.com/rbright/nolook/internal/version"
)

const (
	binaryName   = "nolook"
	probeTimeout = 220 * time.Millisecond
	// forwardMargin covers socket round trips on top of the engine call the
	// running client makes for a forwarded command.
	forwardMargin = time.Second
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	logRuntime, err := logging.New(cfgLoaded.Config.Debug.Log)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	if parsed.Command == cli.CommandDiscover {
		return r.commandDiscover(ctx, cfgLoaded.Config, logger)
	}

	cfgLoaded.Config = r.resolveEngine(ctx, cfgLoaded.Config, logger)
	cfg := cfgLoaded.Config

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandStatus:
		return r.commandStatus(ctx, cfg)
	case cli.CommandPauseFake, cli.CommandForceReal, cli.CommandResetLock, cli.CommandAssistant:
		return r.commandEngine(ctx, cfg, string(parsed.Command), logger)
	case cli.CommandWatch:
		return r.commandWatch(ctx, cfg, parsed.Headless, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

// resolveEngine swaps in a discovered engine URL when engine.discover is set.
// A failed browse keeps the configured URL.
func (r Runner) resolveEngine(ctx context.Context, cfg config.Config, logger *slog.Logger) config.Config {
	if !cfg.Engine.Discover {
		return cfg
	}
	ep, err := discovery.First(ctx, cfg.Engine.DiscoverService, cfg.Engine.DiscoverTimeout(), logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "warning: engine discovery failed, using %s: %v\n", cfg.Engine.HTTP, err)
		logger.Warn("engine discovery failed", "service", cfg.Engine.DiscoverService, "error", err.Error())
		return cfg
	}
	logger.Info("engine discovered", "instance", ep.Instance, "url", ep.URL())
	cfg.Engine.HTTP = ep.URL()
	return cfg
}

func (r Runner) commandDiscover(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	found, err := discovery.Browse(ctx, cfg.Engine.DiscoverService, cfg.Engine.DiscoverTimeout(), logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(found) == 0 {
		fmt.Fprintf(r.Stderr, "error: %v\n", discovery.ErrNotFound)
		return 1
	}
	for _, ep := range found {
		fmt.Fprintf(r.Stdout, "%s\t%s\n", ep.Instance, ep.URL())
	}
	return 0
}

func (r Runner) commandStatus(ctx context.Context, cfg config.Config) int {
	if resp, handled, err := r.forward(ctx, cfg, ipc.CommandStatus); handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintln(r.Stdout, resp.Message)
		return 0
	}

	_, snapshot, err := hydrateOnce(ctx, cfg, nil)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	st := snapshot.State
	fmt.Fprintln(r.Stdout, client.Summary(client.StatusOf(st, st.STT.History)))
	return 0
}

// commandEngine forwards cmd to a running watch, or hydrates once and issues
// it directly when nothing owns the socket.
func (r Runner) commandEngine(ctx context.Context, cfg config.Config, cmd string, logger *slog.Logger) int {
	if resp, handled, err := r.forward(ctx, cfg, cmd); handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.Message != "" {
			fmt.Fprintln(r.Stdout, resp.Message)
		}
		return 0
	}

	engineAPI, snapshot, err := hydrateOnce(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	st := snapshot.State

	dispatcher := command.New(engineAPI, nil, logger)
	switch cmd {
	case ipc.CommandPauseFake:
		err = dispatcher.TogglePauseFake(ctx, st.PauseFake)
	case ipc.CommandForceReal:
		err = dispatcher.ToggleForceReal(ctx, st.ForceReal)
	case ipc.CommandResetLock:
		err = dispatcher.ResetLock(ctx)
	case ipc.CommandAssistant:
		err = dispatcher.ToggleAssistant(ctx, st.AssistantEnabled)
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintln(r.Stdout, client.Outcome(cmd, st))
	return 0
}

func (r Runner) commandWatch(ctx context.Context, cfg config.Config, headless bool, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	lock, err := ipc.Acquire(ctx, socketPath, probeTimeout, 8, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("release control socket failed", "error", err.Error())
		}
	}()

	deps := client.Deps{Logger: logger}
	if cfg.Indicator.Enable || cfg.Indicator.SoundEnable {
		sink := indicator.New(cfg.Indicator, logger)
		defer sink.Close()
		deps.Sink = sink
	}
	if cfg.Archive.Enable {
		arc, err := archive.Open(cfg.Archive)
		if err != nil {
			fmt.Fprintf(r.Stderr, "warning: transcript archive disabled: %v\n", err)
			logger.Warn("open transcript archive failed", "error", err.Error())
		} else {
			defer func() { _ = arc.Close() }()
			deps.Lines = arc
		}
	}

	c, err := client.New(cfg, deps)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Run(gctx) })
	srv := &ipc.Server{Handler: c, Logger: logger}
	g.Go(func() error { return srv.Serve(gctx, lock) })
	g.Go(func() error {
		defer cancel()
		if headless {
			return watchHeadless(gctx, c, r.Stdout)
		}
		return tui.Run(gctx, c)
	})

	if err := g.Wait(); err != nil {
		logger.Error("watch failed", "error", err.Error())
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	logger.Info("watch finished")
	return 0
}

// watchHeadless prints a status line whenever it changes and every new
// notification, until ctx ends or the client stops.
func watchHeadless(ctx context.Context, c *client.Client, w io.Writer) error {
	toast, cancel := c.Notifications().Subscribe()
	defer cancel()

	var last string
	seen := map[string]bool{}
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-c.Updates():
			if !ok {
				return nil
			}
			line := client.Summary(client.StatusOf(c.Model(), c.Transcript().Lines()))
			if line != last {
				fmt.Fprintln(w, line)
				last = line
			}
		case _, ok := <-toast:
			if !ok {
				toast = nil
				continue
			}
			next := map[string]bool{}
			for _, n := range c.Notifications().List() {
				next[n.ID] = true
				if !seen[n.ID] {
					fmt.Fprintf(w, "[%s] %s\n", n.Kind, n.Message)
				}
			}
			seen = next
		}
	}
}

func hydrateOnce(ctx context.Context, cfg config.Config, logger *slog.Logger) (*api.Client, engine.Normalized, error) {
	engineAPI, err := api.New(api.Options{
		BaseURL:   cfg.Engine.HTTP,
		StatePath: cfg.Engine.StatePath,
		Timeout:   cfg.Engine.RequestTimeout(),
		Logger:    logger,
	})
	if err != nil {
		return nil, engine.Normalized{}, err
	}
	snapshot, err := engineAPI.FetchState(ctx)
	if err != nil {
		return nil, engine.Normalized{}, fmt.Errorf("fetch engine state: %w", err)
	}
	return engineAPI, snapshot.Normalize(), nil
}

func (r Runner) forward(ctx context.Context, cfg config.Config, cmd string) (ipc.Response, bool, error) {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return ipc.Response{}, false, nil
	}
	timeout := probeTimeout
	if cmd != ipc.CommandStatus {
		timeout = cfg.Engine.RequestTimeout() + forwardMargin
	}
	return ipc.Forward(ctx, socketPath, cmd, timeout)
}
