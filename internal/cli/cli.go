// Package cli parses the nolook command line.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandWatch     Command = "watch"
	CommandStatus    Command = "status"
	CommandPauseFake Command = "pause-fake"
	CommandForceReal Command = "force-real"
	CommandResetLock Command = "reset-lock"
	CommandAssistant Command = "assistant"
	CommandDiscover  Command = "discover"
	CommandDoctor    Command = "doctor"
	CommandVersion   Command = "version"
	CommandHelp      Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandWatch:     {},
	CommandStatus:    {},
	CommandPauseFake: {},
	CommandForceReal: {},
	CommandResetLock: {},
	CommandAssistant: {},
	CommandDiscover:  {},
	CommandDoctor:    {},
	CommandVersion:   {},
	CommandHelp:      {},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	Headless   bool
	ShowHelp   bool
}

// Parse reads global flags followed by exactly one command.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--headless":
			parsed.Headless = true
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			if i != len(args)-1 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--headless] <command>

Commands:
  watch       Mirror the engine live and serve the control socket
  status      Print mode, ratio, flags and warmup countdown
  pause-fake  Toggle PauseFake
  force-real  Toggle ForceREAL
  reset-lock  Clear the FAKE lock
  assistant   Toggle the auto macro assistant
  discover    List engines advertised over mDNS
  doctor      Run configuration, engine and desktop checks
  version     Print version information
  help        Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/nolook/config.jsonc)
  --headless      watch without the terminal dashboard; print status lines instead
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
