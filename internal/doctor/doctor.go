// Package doctor runs runtime readiness diagnostics for config, tools, audio,
// storage, and the running daemon.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/rbright/shutter/internal/audio"
	"github.com/rbright/shutter/internal/config"
	"github.com/rbright/shutter/internal/health"
)

// minFreeBytes is the free space below which the output dir check fails.
const minFreeBytes = 512 << 20

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// Options selects the runtime endpoints probed by Run.
type Options struct {
	HealthSocket string
	Credentials  config.Credentials
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded, opts Options) Report {
	checks := []Check{checkConfig(cfg)}

	checks = append(checks, checkEnv("XDG_SESSION_TYPE", func(v string) bool {
		return strings.EqualFold(strings.TrimSpace(v), "wayland")
	}, "session type is wayland", "expected XDG_SESSION_TYPE=wayland"))

	checks = append(checks, checkEnv("HYPRLAND_INSTANCE_SIGNATURE", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "Hyprland session detected", "HYPRLAND_INSTANCE_SIGNATURE is empty"))

	rec := cfg.Config.Recording.Recorder
	checks = append(checks, checkBinary(rec.FFmpegExecutable, "capture encoder"))
	checks = append(checks, checkBinary("hyprctl", "hotkeys and window probe require hyprctl"))
	checks = append(checks, checkCommand(cfg.Config.Clipboard.Argv, "clipboard_cmd"))
	checks = append(checks, checkOutputDir(rec.OutputDir))
	checks = append(checks, checkUploads(cfg.Config.Recording, opts.Credentials))

	if rec.AudioInput != "" {
		checks = append(checks, checkAudioSelection(ctx, rec))
	}
	checks = append(checks, checkDaemon(ctx, opts.HealthSocket))

	return Report{Checks: checks}
}

func checkConfig(cfg config.Loaded) Check {
	if !cfg.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", cfg.Path)}
	}
	message := fmt.Sprintf("loaded %q", cfg.Path)
	if n := len(cfg.Warnings); n > 0 {
		message = fmt.Sprintf("%s (%d warning(s), first: line %d: %s)", message, n, cfg.Warnings[0].Line, cfg.Warnings[0].Message)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkOutputDir requires a writable directory with room for captures.
func checkOutputDir(dir string) Check {
	const name = "output_dir"
	if strings.TrimSpace(dir) == "" {
		return Check{Name: name, Pass: false, Message: "output_dir is empty"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("create %s: %v", dir, err)}
	}
	if err := unix.Access(dir, unix.W_OK); err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%s is not writable: %v", dir, err)}
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("statfs %s: %v", dir, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free < minFreeBytes {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%s has only %s free", dir, formatBytes(free))}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("%s (%s free)", dir, formatBytes(free))}
}

// checkUploads validates that the selected backend has a destination and secrets.
func checkUploads(rec config.RecordingConfig, creds config.Credentials) Check {
	const name = "uploads"
	if !rec.UploadsEnabled() {
		return Check{Name: name, Pass: true, Message: "disabled; captures stay local"}
	}

	switch rec.UploadBackend {
	case config.UploadBackendS3:
		if creds.AWSAccessKeyID == "" || creds.AWSSecretAccessKey == "" {
			return Check{Name: name, Pass: false, Message: fmt.Sprintf("s3 bucket %q set but %s/%s missing", rec.S3.Bucket, config.EnvAWSAccessKeyID, config.EnvAWSSecretAccessKey)}
		}
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("s3 bucket %q", rec.S3.Bucket)}
	default:
		if rec.UserName != "" && creds.UploadPassword == "" {
			return Check{Name: name, Pass: false, Message: fmt.Sprintf("user %q set but %s missing", rec.UserName, config.EnvUploadPassword)}
		}
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("http service %s", rec.ServiceURL)}
	}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, rec config.RecorderConfig) Check {
	selection, err := audio.SelectDevice(ctx, rec.AudioInput, rec.AudioFallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkDaemon queries the daemon health socket.
func checkDaemon(ctx context.Context, socket string) Check {
	const name = "daemon"
	if socket == "" {
		return Check{Name: name, Pass: false, Message: "health socket path is empty"}
	}
	results, err := health.CheckAll(ctx, socket, health.Services, time.Second)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("not reachable at %s: %v", socket, err)}
	}
	text, err := health.Render(results)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	return Check{Name: name, Pass: health.Serving(results), Message: strings.ReplaceAll(text, "\n", "; ")}
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
