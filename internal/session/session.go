// Package session coordinates capture hotkeys, the recorder, and upload routing.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/rbright/shutter/internal/apperror"
	"github.com/rbright/shutter/internal/fsm"
	"github.com/rbright/shutter/internal/hotkey"
	"github.com/rbright/shutter/internal/recorder"
	"github.com/rbright/shutter/internal/window"
)

// Recorder is the orchestrator-facing subset of recorder behavior.
type Recorder interface {
	State() fsm.State
	IsRecording() bool
	RecordType() recorder.RecordType
	SetRecordType(recorder.RecordType)
	SetWindowInfo(window.Info)
	Config() recorder.Config
	SetConfig(recorder.Config)
	Start(context.Context) error
	Stop() error
	Abort()
	OnFinished(func(*recorder.Artifact))
}

// Indicator is the session-facing subset of indicator behavior.
type Indicator interface {
	ShowRecording(context.Context)
	ShowSaved(context.Context, string)
	ShowUploaded(context.Context, string)
	ShowError(context.Context, string)
	CueStop(context.Context)
	Hide(context.Context)
}

// noopIndicator preserves session flow when no indicator is wired.
type noopIndicator struct{}

func (noopIndicator) ShowRecording(context.Context)        {}
func (noopIndicator) ShowSaved(context.Context, string)    {}
func (noopIndicator) ShowUploaded(context.Context, string) {}
func (noopIndicator) ShowError(context.Context, string)    {}
func (noopIndicator) CueStop(context.Context)              {}
func (noopIndicator) Hide(context.Context)                 {}

const defaultProbeTimeout = 2 * time.Second

// Orchestrator applies the hotkey activation policy to a single recorder.
// All methods run on the control loop.
type Orchestrator struct {
	recorder  Recorder
	prober    window.Prober
	image     *hotkey.Binding
	video     *hotkey.Binding
	indicator Indicator
	logger    *slog.Logger
	effects   *effects

	probeTimeout time.Duration
	onFinished   []func(recorder.Artifact)
}

// NewOrchestrator wires both bindings and the recorder's completion event.
func NewOrchestrator(
	rec Recorder,
	prober window.Prober,
	image *hotkey.Binding,
	video *hotkey.Binding,
	indicator Indicator,
	logger *slog.Logger,
) *Orchestrator {
	if indicator == nil {
		indicator = noopIndicator{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	o := &Orchestrator{
		recorder:     rec,
		prober:       prober,
		image:        image,
		video:        video,
		indicator:    indicator,
		logger:       logger,
		effects:      &effects{},
		probeTimeout: defaultProbeTimeout,
	}
	image.OnActivated(o.imageActivated)
	video.OnActivated(o.videoActivated)
	rec.OnFinished(o.recorderFinished)
	return o
}

// OnRecordingFinished registers fn to receive every produced artifact.
// Captures without output are logged only.
func (o *Orchestrator) OnRecordingFinished(fn func(recorder.Artifact)) {
	o.onFinished = append(o.onFinished, fn)
}

// State renders the recorder state, suffixed with the record type while active.
func (o *Orchestrator) State() string {
	state := o.recorder.State()
	if !fsm.Active(state) {
		return string(state)
	}
	return string(state) + ":" + string(o.recorder.RecordType())
}

// Binding returns the hotkey binding for purpose.
func (o *Orchestrator) Binding(purpose hotkey.Purpose) (*hotkey.Binding, bool) {
	switch purpose {
	case hotkey.PurposeImage:
		return o.image, true
	case hotkey.PurposeVideo:
		return o.video, true
	default:
		return nil, false
	}
}

func (o *Orchestrator) ImageShortcut() hotkey.Combo { return o.image.Combination() }
func (o *Orchestrator) VideoShortcut() hotkey.Combo { return o.video.Combination() }

// SetImageShortcut replaces the image hotkey, keeping the previous one on failure.
func (o *Orchestrator) SetImageShortcut(ctx context.Context, combo hotkey.Combo) bool {
	return o.image.SetCombination(ctx, combo)
}

// SetVideoShortcut replaces the video hotkey, keeping the previous one on failure.
func (o *Orchestrator) SetVideoShortcut(ctx context.Context, combo hotkey.Combo) bool {
	return o.video.SetCombination(ctx, combo)
}

// StopVideo stops the active video capture, if any.
func (o *Orchestrator) StopVideo() error {
	if !o.recorder.IsRecording() || o.recorder.RecordType() != recorder.Video {
		return apperror.Configuration.SetMessage("no video recording in progress")
	}
	if o.recorder.State() == fsm.StateStopping {
		return nil
	}
	if err := o.recorder.Stop(); err != nil {
		return err
	}
	o.effects.Go(o.indicator.CueStop)
	return nil
}

// Close releases both hotkeys and kills any running capture.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.recorder.Abort()
	return errors.Join(o.image.Release(ctx), o.video.Release(ctx))
}

// Wait blocks until queued indicator effects have run.
func (o *Orchestrator) Wait() {
	o.effects.Wait()
}

func (o *Orchestrator) imageActivated() {
	if o.recorder.IsRecording() {
		o.logger.Debug("image hotkey ignored while recording", "state", o.State())
		return
	}
	_ = o.startRecording(recorder.Image)
}

func (o *Orchestrator) videoActivated() {
	if !o.recorder.IsRecording() {
		_ = o.startRecording(recorder.Video)
		return
	}
	if o.recorder.RecordType() != recorder.Video {
		o.logger.Debug("video hotkey ignored during image capture", "state", o.State())
		return
	}
	if err := o.StopVideo(); err != nil {
		o.logFault("video stop failed", err)
	}
}

// startRecording probes the active window and starts a capture of type t.
// Failures leave the recorder idle.
func (o *Orchestrator) startRecording(t recorder.RecordType) error {
	if o.recorder.IsRecording() {
		err := apperror.Invariant.SetMessage("start " + string(t) + " capture while " + o.State())
		o.logFault("recording start rejected", err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.probeTimeout)
	defer cancel()

	info, err := o.prober.Probe(ctx)
	if err != nil {
		o.logFault("window probe failed", err)
		return err
	}

	o.recorder.SetWindowInfo(info)
	o.recorder.SetRecordType(t)
	if err := o.recorder.Start(ctx); err != nil {
		o.logFault("recording start failed", err)
		o.effects.Go(func(ctx context.Context) { o.indicator.ShowError(ctx, "Capture failed to start") })
		return err
	}

	o.logger.Info("recording started",
		"type", t,
		"window_class", info.Class,
		"fullscreen", info.Fullscreen,
		"dpi", info.DPI,
	)
	if t == recorder.Video {
		o.effects.Go(o.indicator.ShowRecording)
	}
	return nil
}

func (o *Orchestrator) recorderFinished(artifact *recorder.Artifact) {
	if artifact == nil {
		o.logger.Warn("recording finished without output")
		o.effects.Go(func(ctx context.Context) {
			o.indicator.Hide(ctx)
			o.indicator.ShowError(ctx, "")
		})
		return
	}

	o.logger.Info("recording finished",
		"type", artifact.Type,
		"path", artifact.Path,
		"mime_type", artifact.MimeType,
	)
	if artifact.Type == recorder.Video {
		o.effects.Go(o.indicator.Hide)
	}
	for _, fn := range o.onFinished {
		fn(*artifact)
	}
}

// logFault logs invariant violations at error level and everything else as warnings.
func (o *Orchestrator) logFault(message string, err error) {
	if apperror.IsInvariant(err) {
		o.logger.Error(message, "error", err.Error())
		return
	}
	o.logger.Warn(message, "error", err.Error())
}
