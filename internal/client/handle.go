package client

import (
	"context"
	"fmt"

	"github.com/rbright/nolook/internal/engine"
	"github.com/rbright/nolook/internal/ipc"
	"github.com/rbright/nolook/internal/session"
)

// Handle serves control socket commands against the running client.
func (c *Client) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	conn := string(c.Connection())

	before := c.Model()
	var err error
	switch req.Command {
	case ipc.CommandStatus:
		status := StatusOf(before, c.Transcript().Lines())
		status.Connection = conn
		return ipc.Response{OK: true, State: conn, Message: Summary(status), Status: &status}
	case ipc.CommandPauseFake:
		err = c.TogglePauseFake(ctx)
	case ipc.CommandForceReal:
		err = c.ToggleForceReal(ctx)
	case ipc.CommandResetLock:
		err = c.ResetLock(ctx)
	case ipc.CommandAssistant:
		err = c.ToggleAssistant(ctx)
	default:
		return ipc.Response{OK: false, State: conn, Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}

	if err != nil {
		return ipc.Response{OK: false, State: conn, Error: err.Error()}
	}
	return ipc.Response{OK: true, State: conn, Message: Outcome(req.Command, before)}
}

// Outcome is the confirmation printed after cmd succeeded against a model
// that read st beforehand.
func Outcome(cmd string, st engine.State) string {
	switch cmd {
	case ipc.CommandPauseFake:
		return "PauseFake: " + onOff(!st.PauseFake)
	case ipc.CommandForceReal:
		return "ForceREAL: " + onOff(!st.ForceReal)
	case ipc.CommandResetLock:
		return "Lock reset complete"
	case ipc.CommandAssistant:
		return "Auto Macro: " + onOff(!st.AssistantEnabled)
	default:
		return ""
	}
}

// StatusOf renders a model for the status command. Connection is left for
// the caller.
func StatusOf(st engine.State, lines []string) ipc.Status {
	gate := session.FromState(st)
	return ipc.Status{
		Mode:               string(st.Mode),
		RatioPercent:       st.RatioPercent(),
		LockedFake:         st.LockedFake,
		PauseFake:          st.PauseFake,
		ForceReal:          st.ForceReal,
		AssistantEnabled:   st.AssistantEnabled,
		Reasons:            st.Reasons,
		WarmupPhase:        string(gate.Phase),
		WarmupRemainingSec: gate.RemainingSec,
		TranscriptLines:    len(lines),
	}
}

// Summary is the one-line status printed by the CLI.
func Summary(s ipc.Status) string {
	out := fmt.Sprintf("%s %d%%", s.Mode, s.RatioPercent)
	if s.LockedFake {
		out += " locked"
	}
	if s.PauseFake {
		out += " pause-fake"
	}
	if s.ForceReal {
		out += " force-real"
	}
	if s.AssistantEnabled {
		out += " assistant"
	}
	if s.WarmupPhase != string(session.PhaseIdle) {
		out += fmt.Sprintf(" %s %s", s.WarmupPhase, session.FormatMMSS(s.WarmupRemainingSec))
	}
	return out
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}
