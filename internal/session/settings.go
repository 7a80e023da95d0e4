package session

import (
	"context"
	"strings"

	"github.com/rbright/shutter/internal/apperror"
	"github.com/rbright/shutter/internal/config"
	"github.com/rbright/shutter/internal/hotkey"
	"github.com/rbright/shutter/internal/recorder"
)

// RecorderConfig maps persisted settings onto recorder tunables.
func RecorderConfig(cfg config.Config) recorder.Config {
	rc := cfg.Recording.Recorder
	return recorder.Config{
		MaxImageEdgeLength: rc.MaxImageEdgeLength,
		MaxVideoEdgeLength: rc.MaxVideoEdgeLength,
		VideoFrameRate:     rc.VideoFrameRate,
		MaxVideoLength:     rc.MaxVideoLength,
		FFmpegExecutable:   rc.FFmpegExecutable,
		OutputDir:          rc.OutputDir,
		Display:            rc.Display,
		KeepFailed:         cfg.Debug.KeepFailedCaptures,
	}
}

// ReadSettings applies both shortcuts and the recorder tunables from cfg.
// An unparsable or unregistrable shortcut leaves that binding unchanged and
// is reported as a configuration fault after the rest has been applied.
func (o *Orchestrator) ReadSettings(ctx context.Context, cfg config.Config) error {
	o.recorder.SetConfig(RecorderConfig(cfg))

	var faults []string
	if !o.applyShortcut(ctx, o.image, cfg.Recording.ImageShortcut) {
		faults = append(faults, "imageShortcut")
	}
	if !o.applyShortcut(ctx, o.video, cfg.Recording.VideoShortcut) {
		faults = append(faults, "videoShortcut")
	}
	if len(faults) > 0 {
		return apperror.Configuration.SetMessage("hotkey not applied: " + strings.Join(faults, ", "))
	}
	return nil
}

// WriteSettings stores the effective shortcuts and recorder tunables into cfg.
func (o *Orchestrator) WriteSettings(cfg *config.Config) {
	cfg.Recording.ImageShortcut = o.image.Combination().String()
	cfg.Recording.VideoShortcut = o.video.Combination().String()

	rc := o.recorder.Config()
	cfg.Recording.Recorder.MaxImageEdgeLength = rc.MaxImageEdgeLength
	cfg.Recording.Recorder.MaxVideoEdgeLength = rc.MaxVideoEdgeLength
	cfg.Recording.Recorder.VideoFrameRate = rc.VideoFrameRate
	cfg.Recording.Recorder.MaxVideoLength = rc.MaxVideoLength
	cfg.Recording.Recorder.FFmpegExecutable = rc.FFmpegExecutable
	cfg.Recording.Recorder.OutputDir = rc.OutputDir
	cfg.Recording.Recorder.Display = rc.Display
}

func (o *Orchestrator) applyShortcut(ctx context.Context, binding *hotkey.Binding, raw string) bool {
	combo, err := hotkey.ParseCombo(raw)
	if err != nil {
		o.logger.Warn("invalid hotkey in settings",
			"purpose", binding.Purpose(),
			"combination", raw,
			"error", err.Error(),
		)
		return false
	}
	return binding.SetCombination(ctx, combo)
}
