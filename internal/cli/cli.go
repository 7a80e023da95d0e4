// Package cli parses shutter command-line arguments.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandDaemon       Command = "daemon"
	CommandTrigger      Command = "trigger"
	CommandStatus       Command = "status"
	CommandStop         Command = "stop"
	CommandBind         Command = "bind"
	CommandUpload       Command = "upload"
	CommandCancelUpload Command = "cancel-upload"
	CommandUploads      Command = "uploads"
	CommandDevices      Command = "devices"
	CommandDoctor       Command = "doctor"
	CommandVersion      Command = "version"
	CommandHelp         Command = "help"
)

// arity bounds the positional arguments each command accepts.
type arity struct {
	min, max int
}

var validCommands = map[Command]arity{
	CommandDaemon:       {0, 0},
	CommandTrigger:      {1, 1},
	CommandStatus:       {0, 0},
	CommandStop:         {0, 0},
	CommandBind:         {1, 2},
	CommandUpload:       {1, 1},
	CommandCancelUpload: {1, 1},
	CommandUploads:      {0, 0},
	CommandDevices:      {0, 0},
	CommandDoctor:       {0, 0},
	CommandVersion:      {0, 0},
	CommandHelp:         {0, 0},
}

// Parsed is the result of Parse.
type Parsed struct {
	Command    Command
	Args       []string
	Category   string
	ConfigPath string
	ShowHelp   bool
}

// Parse reads global flags, one command, and that command's arguments.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}
	haveCommand := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch {
		case arg == "-h" || arg == "--help":
			return Parsed{Command: CommandHelp, ShowHelp: true, ConfigPath: parsed.ConfigPath}, nil
		case arg == "--version" && !haveCommand:
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case arg == "--config" && !haveCommand:
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		case arg == "--category" && parsed.Command == CommandUpload && haveCommand:
			i++
			if i >= len(args) || strings.TrimSpace(args[i]) == "" {
				return Parsed{}, errors.New("--category requires a value")
			}
			parsed.Category = args[i]
		case strings.HasPrefix(arg, "-") && arg != "-":
			if haveCommand {
				return Parsed{}, fmt.Errorf("unexpected flag %s for command %q", arg, parsed.Command)
			}
			return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
		case !haveCommand:
			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}
			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			haveCommand = true
		default:
			parsed.Args = append(parsed.Args, arg)
		}
	}

	bounds := validCommands[parsed.Command]
	if n := len(parsed.Args); n < bounds.min || n > bounds.max {
		if n > bounds.max {
			return Parsed{}, fmt.Errorf("unexpected arguments after command %q", parsed.Command)
		}
		return Parsed{}, fmt.Errorf("command %q requires %s", parsed.Command, usageFor(parsed.Command))
	}
	if parsed.Command == CommandTrigger || parsed.Command == CommandBind {
		switch strings.ToLower(parsed.Args[0]) {
		case "image", "video":
			parsed.Args[0] = strings.ToLower(parsed.Args[0])
		default:
			return Parsed{}, fmt.Errorf("command %q: capture type must be image or video, got %q", parsed.Command, parsed.Args[0])
		}
	}

	return parsed, nil
}

func usageFor(cmd Command) string {
	switch cmd {
	case CommandTrigger:
		return "image|video"
	case CommandBind:
		return "image|video [COMBO]"
	case CommandUpload:
		return "FILE"
	case CommandCancelUpload:
		return "an upload ID"
	default:
		return "no arguments"
	}
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command> [args]

Commands:
  daemon                  Run the capture daemon (registers hotkeys)
  trigger image|video     Activate a capture hotkey (used by compositor binds)
  status                  Print recorder state and upload counts
  stop                    Stop the active video recording
  bind image|video COMBO  Rebind a hotkey, e.g. Super+Shift+S ("none" disables)
  upload FILE             Upload a file (--category C overrides the category)
  cancel-upload ID        Cancel a queued or in-progress upload
  uploads                 List active, queued, and recent uploads
  devices                 List available audio sources
  doctor                  Run configuration and environment checks
  version                 Print version information
  help                    Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/shutter/config.jsonc)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
