// Package command issues operator commands to the engine and reports
// confirmed outcomes through the notification channel.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rbright/nolook/internal/api"
	"github.com/rbright/nolook/internal/logging"
	"github.com/rbright/nolook/internal/notify"
)

// ErrNotConfirmed is returned when the engine answers without ok=true.
var ErrNotConfirmed = errors.New("engine did not confirm command")

// Engine is the command surface of the engine HTTP client.
type Engine interface {
	SetPauseFake(ctx context.Context, enabled bool) (api.Ack, error)
	SetForceReal(ctx context.Context, enabled bool) (api.Ack, error)
	ResetLock(ctx context.Context) (api.Ack, error)
	SetAssistant(ctx context.Context, enabled bool) (api.Ack, error)
}

// Dispatcher never touches the mirrored model. Authoritative values only
// change when the engine reports them in a later snapshot.
type Dispatcher struct {
	engine   Engine
	notifier notify.Emitter
	logger   *slog.Logger
}

// New builds a dispatcher. notifier may be nil.
func New(engine Engine, notifier notify.Emitter, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		engine:   engine,
		notifier: notifier,
		logger:   logging.OrDiscard(logger),
	}
}

// TogglePauseFake requests the inverse of current.
func (d *Dispatcher) TogglePauseFake(ctx context.Context, current bool) error {
	want := !current
	return d.run("pause-fake", func() (api.Ack, error) {
		return d.engine.SetPauseFake(ctx, want)
	}, "PauseFake: "+onOff(want))
}

// ToggleForceReal requests the inverse of current.
func (d *Dispatcher) ToggleForceReal(ctx context.Context, current bool) error {
	want := !current
	return d.run("force-real", func() (api.Ack, error) {
		return d.engine.SetForceReal(ctx, want)
	}, "ForceREAL: "+onOff(want))
}

// ResetLock clears the engine's fake lock.
func (d *Dispatcher) ResetLock(ctx context.Context) error {
	return d.run("reset-lock", func() (api.Ack, error) {
		return d.engine.ResetLock(ctx)
	}, "Lock reset complete")
}

// ToggleAssistant requests the inverse of current.
func (d *Dispatcher) ToggleAssistant(ctx context.Context, current bool) error {
	want := !current
	return d.run("assistant", func() (api.Ack, error) {
		return d.engine.SetAssistant(ctx, want)
	}, "Auto Macro: "+onOff(want))
}

func (d *Dispatcher) run(name string, call func() (api.Ack, error), success string) error {
	ack, err := call()
	if err != nil {
		d.logger.Warn("command failed", "command", name, "error", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	if !ack.OK {
		d.logger.Warn("command not confirmed", "command", name, "status", ack.Status)
		return fmt.Errorf("%s: %w", name, ErrNotConfirmed)
	}

	d.logger.Info("command confirmed", "command", name)
	if d.notifier != nil {
		d.notifier.Emit(success, notify.KindSuccess)
	}
	return nil
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}
