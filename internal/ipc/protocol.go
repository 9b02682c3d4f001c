// Package ipc is the control socket a running watch serves: one JSON request
// line in, one JSON response line out.
package ipc

import "slices"

// Commands accepted on the control socket.
const (
	CommandStatus    = "status"
	CommandPauseFake = "pause-fake"
	CommandForceReal = "force-real"
	CommandResetLock = "reset-lock"
	CommandAssistant = "assistant"
)

var commands = []string{CommandStatus, CommandPauseFake, CommandForceReal, CommandResetLock, CommandAssistant}

// Known reports whether command is served by the socket.
func Known(command string) bool {
	return slices.Contains(commands, command)
}

type Request struct {
	Command string `json:"command"`
}

// Status is the mirrored engine view reported by the status command.
type Status struct {
	Connection         string   `json:"connection"`
	Mode               string   `json:"mode"`
	RatioPercent       int      `json:"ratio_percent"`
	LockedFake         bool     `json:"locked_fake"`
	PauseFake          bool     `json:"pause_fake"`
	ForceReal          bool     `json:"force_real"`
	AssistantEnabled   bool     `json:"assistant_enabled"`
	Reasons            []string `json:"reasons,omitempty"`
	WarmupPhase        string   `json:"warmup_phase"`
	WarmupRemainingSec int      `json:"warmup_remaining_sec"`
	TranscriptLines    int      `json:"transcript_lines"`
}

// Response carries the owner's connection state in State. Message is the
// human-readable outcome; Error is set when OK is false.
type Response struct {
	OK      bool    `json:"ok"`
	State   string  `json:"state,omitempty"`
	Message string  `json:"message,omitempty"`
	Error   string  `json:"error,omitempty"`
	Status  *Status `json:"status,omitempty"`
}
