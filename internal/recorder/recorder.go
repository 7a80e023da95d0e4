package recorder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/shutter/internal/apperror"
	"github.com/rbright/shutter/internal/fsm"
	"github.com/rbright/shutter/internal/window"
)

// Poster schedules work on the control loop.
type Poster interface {
	Post(fn func()) bool
}

// AudioSource resolves the Pulse source recorded with video.
type AudioSource interface {
	Source(ctx context.Context) (string, error)
}

// session exists only while the recorder is active.
type session struct {
	recordType RecordType
	window     window.Info
	process    Process
	outputPath string
	startedAt  time.Time
}

// Recorder owns the capture state machine. All methods except construction
// must be called on the control loop; process exits are posted back to it.
type Recorder struct {
	cfg      Config
	loop     Poster
	launcher Launcher
	audio    AudioSource
	logger   *slog.Logger
	now      func() time.Time

	recordType RecordType
	window     window.Info
	hasWindow  bool

	state   fsm.State
	current *session

	onFinished []func(*Artifact)
	onState    []func(fsm.State)
}

// New constructs an idle recorder.
func New(cfg Config, loop Poster, launcher Launcher, audio AudioSource, logger *slog.Logger) *Recorder {
	if launcher == nil {
		launcher = ExecLauncher{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Recorder{
		cfg:        cfg,
		loop:       loop,
		launcher:   launcher,
		audio:      audio,
		logger:     logger,
		now:        time.Now,
		recordType: Image,
		state:      fsm.StateIdle,
	}
}

func (r *Recorder) Config() Config             { return r.cfg }
func (r *Recorder) SetConfig(cfg Config)       { r.cfg = cfg }
func (r *Recorder) State() fsm.State           { return r.state }
func (r *Recorder) IsRecording() bool          { return fsm.Active(r.state) }
func (r *Recorder) SetRecordType(t RecordType) { r.recordType = t }

// SetWindowInfo stores the snapshot used by the next Start.
func (r *Recorder) SetWindowInfo(info window.Info) {
	r.window = info
	r.hasWindow = true
}

// RecordType returns the active session's type, or the configured type when idle.
func (r *Recorder) RecordType() RecordType {
	if r.current != nil {
		return r.current.recordType
	}
	return r.recordType
}

// MimeType returns the media type matching RecordType.
func (r *Recorder) MimeType() string {
	return r.RecordType().MimeType()
}

// OnFinished registers fn to receive the artifact, or nil when the capture
// produced no usable file.
func (r *Recorder) OnFinished(fn func(*Artifact)) {
	r.onFinished = append(r.onFinished, fn)
}

// OnStateChanged registers fn to observe session state changes.
func (r *Recorder) OnStateChanged(fn func(fsm.State)) {
	r.onState = append(r.onState, fn)
}

// Start launches the encoder for the configured type and window.
func (r *Recorder) Start(ctx context.Context) error {
	if r.IsRecording() {
		return apperror.Invariant.SetMessage("recorder start while " + string(r.state))
	}
	if !r.hasWindow {
		return apperror.Configuration.SetMessage("recorder start without window info")
	}

	executable, err := r.resolveExecutable()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return apperror.Configuration.SetMessage("create output dir").Wrap(err)
	}

	job := captureJob{
		Type:       r.recordType,
		Window:     r.window,
		Config:     r.cfg,
		OutputPath: r.outputPath(r.recordType),
	}
	if job.Type == Video && r.audio != nil {
		source, err := r.audio.Source(ctx)
		if err != nil {
			r.logger.Warn("audio source unavailable; recording without audio", "error", err.Error())
		}
		job.AudioSource = source
	}

	args, err := buildArgs(job)
	if err != nil {
		return apperror.Configuration.SetMessage("build encoder args").Wrap(err)
	}

	process, err := r.launcher.Launch(executable, args)
	if err != nil {
		return apperror.Configuration.SetMessage("launch encoder").Wrap(err)
	}

	if err := r.transition(fsm.EventStart); err != nil {
		_ = process.Kill()
		return apperror.Invariant.Wrap(err)
	}
	sess := &session{
		recordType: job.Type,
		window:     job.Window,
		process:    process,
		outputPath: job.OutputPath,
		startedAt:  r.now(),
	}
	r.current = sess
	r.hasWindow = false

	r.logger.Info("capture started",
		"type", job.Type,
		"output", job.OutputPath,
		"monitor", job.Window.Monitor,
		"geometry", fmt.Sprintf("%dx%d+%d+%d", job.Window.Geometry.Width, job.Window.Geometry.Height, job.Window.Geometry.X, job.Window.Geometry.Y),
		"audio_source", job.AudioSource,
	)

	go func() {
		waitErr := process.Wait()
		if !r.loop.Post(func() { r.handleExit(sess, waitErr) }) {
			r.logger.Warn("encoder exit dropped; control loop closed", "output", sess.outputPath)
		}
	}()
	return nil
}

// Stop requests a graceful end of the active video capture.
func (r *Recorder) Stop() error {
	switch {
	case r.state == fsm.StateStopping:
		return nil
	case r.current == nil:
		return apperror.Invariant.SetMessage("recorder stop while idle")
	case r.current.recordType != Video:
		return apperror.Invariant.SetMessage("recorder stop during image capture")
	}

	if err := r.transition(fsm.EventStop); err != nil {
		return apperror.Invariant.Wrap(err)
	}
	if err := r.current.process.Stop(); err != nil {
		r.logger.Warn("graceful encoder stop failed; killing", "error", err.Error())
		if killErr := r.current.process.Kill(); killErr != nil {
			r.logger.Error("encoder kill failed", "error", killErr.Error())
		}
	}
	r.logger.Info("capture stop requested", "output", r.current.outputPath)
	return nil
}

// Abort kills any active encoder. The exit is still delivered through the
// loop when it is running.
func (r *Recorder) Abort() {
	if r.current == nil {
		return
	}
	if err := r.current.process.Kill(); err != nil {
		r.logger.Warn("encoder kill failed", "error", err.Error())
	}
}

func (r *Recorder) handleExit(sess *session, waitErr error) {
	if sess != r.current {
		r.logger.Error("encoder exit for unknown session", "output", sess.outputPath)
		return
	}

	r.current = nil
	if err := r.transition(fsm.EventExited); err != nil {
		r.logger.Error("recorder exit transition failed", "error", err.Error())
	}

	artifact, err := r.collect(sess, waitErr)
	duration := r.now().Sub(sess.startedAt)
	if err != nil {
		r.logger.Warn("capture produced no output",
			"type", sess.recordType,
			"output", sess.outputPath,
			"duration_ms", duration.Milliseconds(),
			"error", err.Error(),
		)
		if !r.cfg.KeepFailed {
			_ = os.Remove(sess.outputPath)
		}
	} else {
		r.logger.Info("capture finished",
			"type", sess.recordType,
			"output", artifact.Path,
			"bytes", artifact.Size,
			"duration_ms", duration.Milliseconds(),
		)
	}

	for _, fn := range r.onFinished {
		fn(artifact)
	}
}

func (r *Recorder) collect(sess *session, waitErr error) (*Artifact, error) {
	if waitErr != nil {
		return nil, apperror.Remote.SetMessage("encoder exited abnormally").Wrap(waitErr)
	}
	info, err := os.Stat(sess.outputPath)
	if err != nil {
		return nil, apperror.Remote.SetMessage("encoder output missing").Wrap(err)
	}
	if info.Size() == 0 {
		return nil, apperror.Remote.SetMessage("encoder output empty")
	}
	return &Artifact{
		Path:     sess.outputPath,
		MimeType: sess.recordType.MimeType(),
		Type:     sess.recordType,
		Size:     info.Size(),
	}, nil
}

func (r *Recorder) transition(event fsm.Event) error {
	next, err := fsm.Transition(r.state, event)
	if err != nil {
		return err
	}
	r.state = next
	for _, fn := range r.onState {
		fn(next)
	}
	return nil
}

func (r *Recorder) resolveExecutable() (string, error) {
	exe := r.cfg.FFmpegExecutable
	if exe == "" {
		exe = "ffmpeg"
	}
	path, err := exec.LookPath(exe)
	if err != nil {
		return "", apperror.Configuration.SetMessage(fmt.Sprintf("encoder executable %q", exe)).Wrap(err)
	}
	return path, nil
}

func (r *Recorder) outputPath(t RecordType) string {
	stamp := r.now().Format("20060102-150405")
	name := fmt.Sprintf("shutter-%s-%s.%s", stamp, uuid.NewString()[:8], t.Extension())
	return filepath.Join(r.cfg.OutputDir, name)
}
