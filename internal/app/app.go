// Package app dispatches parsed CLI commands to the daemon or to one-shot
// local handlers.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/rbright/shutter/internal/audio"
	"github.com/rbright/shutter/internal/cli"
	"github.com/rbright/shutter/internal/config"
	"github.com/rbright/shutter/internal/doctor"
	"github.com/rbright/shutter/internal/hotkey"
	"github.com/rbright/shutter/internal/ipc"
	"github.com/rbright/shutter/internal/logging"
	"github.com/rbright/shutter/internal/recorder"
	"github.com/rbright/shutter/internal/session"
	"github.com/rbright/shutter/internal/upload"
	"github.com/rbright/shutter/internal/version"
	"github.com/rbright/shutter/internal/window"
)

const forwardTimeout = 2 * time.Second

// Runner executes one CLI invocation. The collaborator fields are only used
// by the daemon; nil selects the Hyprland and ffmpeg implementations.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	Registrar hotkey.Registrar
	Prober    window.Prober
	Launcher  recorder.Launcher
	Indicator session.Indicator
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("shutter"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("shutter"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "warning: logging disabled: %v\n", err)
		logRuntime = logging.Discard()
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
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
		"args", parsed.Args,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDaemon:
		return r.commandDaemon(ctx, cfgLoaded, logger)
	case cli.CommandDoctor:
		return r.commandDoctor(ctx, cfgLoaded)
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandUploads:
		return r.commandUploads(ctx)
	case cli.CommandUpload:
		return r.commandUpload(ctx, cfgLoaded, parsed, logger)
	case cli.CommandTrigger, cli.CommandStop, cli.CommandBind, cli.CommandCancelUpload:
		return r.forwardOrFail(ctx, ipc.Request{Command: string(parsed.Command), Args: parsed.Args})
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDoctor(ctx context.Context, loaded config.Loaded) int {
	opts := doctor.Options{}
	if path, err := ipc.HealthSocketPath(); err == nil {
		opts.HealthSocket = path
	}
	creds, err := config.LoadCredentials(loaded.CredentialsPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "warning: %v\n", err)
	}
	opts.Credentials = creds

	report := doctor.Run(ctx, loaded, opts)
	fmt.Fprintln(r.Stdout, report.String())
	if report.OK() {
		return 0
	}
	return 1
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "stopped")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: "status"})
	if !handled {
		fmt.Fprintln(r.Stdout, "stopped")
		return 0
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	var status session.Status
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &status); err != nil {
			fmt.Fprintf(r.Stderr, "error: decode status: %v\n", err)
			return 1
		}
	}
	state := resp.State
	if state == "" {
		state = "idle"
	}
	fmt.Fprintln(r.Stdout, state)
	if resp.Data != nil {
		fmt.Fprintf(r.Stdout, "image hotkey: %s (%s)\n", displayCombo(status.ImageShortcut), status.ImageStatus)
		fmt.Fprintf(r.Stdout, "video hotkey: %s (%s)\n", displayCombo(status.VideoShortcut), status.VideoStatus)
		fmt.Fprintf(r.Stdout, "uploads: %d active, %d queued, max %d\n", status.ActiveUploads, status.QueuedUploads, status.MaxUploads)
	}
	return 0
}

func (r Runner) commandUploads(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: "uploads"})
	if !handled {
		fmt.Fprintln(r.Stderr, "error: no running shutter daemon")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	var list []upload.Info
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &list); err != nil {
			fmt.Fprintf(r.Stderr, "error: decode uploads: %v\n", err)
			return 1
		}
	}
	if len(list) == 0 {
		fmt.Fprintln(r.Stdout, "no uploads")
		return 0
	}
	for _, info := range list {
		detail := info.Location
		if info.Error != "" {
			detail = info.Error
		}
		fmt.Fprintf(r.Stdout, "%s %-11s %-10s %s", info.ID, info.State, info.Category, info.Path)
		if detail != "" {
			fmt.Fprintf(r.Stdout, " -> %s", detail)
		}
		fmt.Fprintln(r.Stdout)
	}
	return 0
}

// commandUpload hands the file to a running daemon, or uploads it in-process
// when no daemon is running.
func (r Runner) commandUpload(ctx context.Context, loaded config.Loaded, parsed cli.Parsed, logger *slog.Logger) int {
	path, err := filepath.Abs(parsed.Args[0])
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	req := ipc.Request{Command: "upload", Args: []string{path}}
	if parsed.Category != "" {
		req.Args = append(req.Args, parsed.Category)
	}

	if socketPath, err := ipc.RuntimeSocketPath(); err == nil {
		resp, handled, err := tryForward(ctx, socketPath, req)
		if handled {
			return r.printResponse(resp, err)
		}
	}
	return r.uploadOnce(ctx, loaded, path, parsed.Category, logger)
}

func (r Runner) forwardOrFail(ctx context.Context, req ipc.Request) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, req)
	if !handled {
		fmt.Fprintln(r.Stderr, "error: no running shutter daemon")
		return 1
	}
	return r.printResponse(resp, err)
}

func (r Runner) printResponse(resp ipc.Response, err error) int {
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func displayCombo(combo string) string {
	if combo == "" {
		return "none"
	}
	return combo
}

func tryForward(ctx context.Context, socketPath string, req ipc.Request) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, req, forwardTimeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if errors.Is(err, ipc.ErrNoDaemon) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
}
