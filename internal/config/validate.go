package config

import (
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/rbright/shutter/internal/hotkey"
)

// serviceURLPattern accepts http(s) URLs without a trailing slash, since the
// upload path is appended verbatim.
var serviceURLPattern = regexp.MustCompile(`^https?://\S*[^/\s]$`)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)
	rec := cfg.Recording

	image, err := hotkey.ParseCombo(rec.ImageShortcut)
	if err != nil {
		return nil, fmt.Errorf("recording.imageShortcut: %w", err)
	}
	video, err := hotkey.ParseCombo(rec.VideoShortcut)
	if err != nil {
		return nil, fmt.Errorf("recording.videoShortcut: %w", err)
	}
	if !image.IsZero() && image.Equal(video) {
		return nil, fmt.Errorf("recording.imageShortcut and recording.videoShortcut must differ")
	}

	r := rec.Recorder
	if r.MaxImageEdgeLength < 0 {
		return nil, fmt.Errorf("recording.recorder.maxImageEdgeLength must be >= 0")
	}
	if r.MaxVideoEdgeLength < 0 {
		return nil, fmt.Errorf("recording.recorder.maxVideoEdgeLength must be >= 0")
	}
	if r.VideoFrameRate <= 0 || r.VideoFrameRate > 240 {
		return nil, fmt.Errorf("recording.recorder.videoFrameRate must be in (0, 240]")
	}
	if r.MaxVideoLength < 0 {
		return nil, fmt.Errorf("recording.recorder.maxVideoLength must be >= 0")
	}
	if strings.TrimSpace(r.FFmpegExecutable) == "" {
		return nil, fmt.Errorf("recording.recorder.ffmpegExecutable must not be empty")
	}
	if _, err := exec.LookPath(r.FFmpegExecutable); err != nil {
		warnings = append(warnings, Warning{
			Message: fmt.Sprintf("recording.recorder.ffmpegExecutable %q is not executable: %v", r.FFmpegExecutable, err),
		})
	}
	if strings.TrimSpace(r.OutputDir) == "" {
		return nil, fmt.Errorf("recording.recorder.outputDir must not be empty")
	}

	if rec.ServiceURL != "" && !serviceURLPattern.MatchString(rec.ServiceURL) {
		return nil, fmt.Errorf("recording.serviceUrl %q must be an http(s) URL without a trailing slash", rec.ServiceURL)
	}
	if rec.MaxActiveUploads < 1 {
		return nil, fmt.Errorf("recording.maxActiveUploads must be >= 1")
	}
	if strings.TrimSpace(rec.ImageCategory) == "" || strings.TrimSpace(rec.VideoCategory) == "" {
		return nil, fmt.Errorf("recording.imageCategory and recording.videoCategory must not be empty")
	}

	switch rec.UploadBackend {
	case UploadBackendHTTP:
	case UploadBackendS3:
		if rec.S3.Bucket == "" || rec.S3.Region == "" {
			return nil, fmt.Errorf("recording.s3.bucket and recording.s3.region are required when recording.uploadBackend=s3")
		}
	default:
		return nil, fmt.Errorf("recording.uploadBackend must be one of: http, s3")
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Indicator.Backend))
	if backend != "hypr" && backend != "desktop" {
		return nil, fmt.Errorf("indicator.backend must be one of: hypr, desktop")
	}
	if backend == "desktop" && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}
	if cfg.Indicator.SuccessTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.success_timeout_ms must be >= 0")
	}

	if cfg.Clipboard.Raw != "" && len(cfg.Clipboard.Argv) == 0 {
		return nil, fmt.Errorf("clipboard_cmd is configured but empty")
	}

	return warnings, nil
}
