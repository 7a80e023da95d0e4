package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rbright/shutter/internal/apperror"
	"github.com/rbright/shutter/internal/config"
	"github.com/rbright/shutter/internal/hotkey"
	"github.com/rbright/shutter/internal/ipc"
	"github.com/rbright/shutter/internal/recorder"
	"github.com/rbright/shutter/internal/upload"
)

// Loop is the control loop the service marshals IPC work onto.
type Loop interface {
	Do(ctx context.Context, fn func()) error
}

// Status is the daemon snapshot returned by the status command.
type Status struct {
	State         string        `json:"state"`
	ActiveUploads int           `json:"active_uploads"`
	QueuedUploads int           `json:"queued_uploads"`
	MaxUploads    int           `json:"max_uploads"`
	ImageShortcut string        `json:"image_shortcut"`
	ImageStatus   hotkey.Status `json:"image_status"`
	VideoShortcut string        `json:"video_shortcut"`
	VideoStatus   hotkey.Status `json:"video_status"`
}

// Service routes finished captures to the upload manager and serves daemon
// IPC commands by marshalling them onto the control loop.
type Service struct {
	loop         Loop
	orchestrator *Orchestrator
	uploads      *upload.Manager
	indicator    Indicator
	clipboard    Committer
	logger       *slog.Logger

	cfg        config.Config
	configPath string
}

// NewService wires recording completion to uploads and upload completion to
// the indicator and clipboard.
func NewService(
	loop Loop,
	orchestrator *Orchestrator,
	uploads *upload.Manager,
	cfg config.Config,
	configPath string,
	indicator Indicator,
	clipboard Committer,
	logger *slog.Logger,
) *Service {
	if indicator == nil {
		indicator = noopIndicator{}
	}
	if clipboard == nil {
		clipboard = CommitFunc(func(context.Context, string) error { return nil })
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Service{
		loop:         loop,
		orchestrator: orchestrator,
		uploads:      uploads,
		indicator:    indicator,
		clipboard:    clipboard,
		logger:       logger,
		cfg:          cfg,
		configPath:   configPath,
	}
	orchestrator.OnRecordingFinished(s.recordingFinished)
	uploads.OnFinished(s.uploadFinished)
	return s
}

// Status returns a snapshot taken on the control loop.
func (s *Service) Status(ctx context.Context) (Status, error) {
	var status Status
	err := s.loop.Do(ctx, func() { status = s.status() })
	return status, err
}

func (s *Service) status() Status {
	return Status{
		State:         s.orchestrator.State(),
		ActiveUploads: s.uploads.ActiveCount(),
		QueuedUploads: s.uploads.QueueLen(),
		MaxUploads:    s.uploads.MaxActive(),
		ImageShortcut: s.orchestrator.image.Combination().String(),
		ImageStatus:   s.orchestrator.image.Status(),
		VideoShortcut: s.orchestrator.video.Combination().String(),
		VideoStatus:   s.orchestrator.video.Status(),
	}
}

// Handle serves one IPC command.
func (s *Service) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case "status":
		return s.handleStatus(ctx)
	case "trigger":
		return s.handleTrigger(ctx, req.Args)
	case "stop":
		return s.handleStop(ctx)
	case "bind":
		return s.handleBind(ctx, req.Args)
	case "upload":
		return s.handleUpload(ctx, req.Args)
	case "cancel-upload":
		return s.handleCancelUpload(ctx, req.Args)
	case "uploads":
		return s.handleUploads(ctx)
	default:
		return s.fail(fmt.Errorf("unknown command: %s", req.Command))
	}
}

// Close releases hotkeys, aborts the capture, and cancels uploads.
func (s *Service) Close(ctx context.Context) error {
	var closeErr error
	err := s.loop.Do(ctx, func() {
		closeErr = s.orchestrator.Close(ctx)
		s.uploads.Shutdown()
	})
	s.orchestrator.Wait()
	return errors.Join(err, closeErr)
}

func (s *Service) handleStatus(ctx context.Context) ipc.Response {
	status, err := s.Status(ctx)
	if err != nil {
		return s.fail(err)
	}
	return s.ok(status.State, fmt.Sprintf("uploads active=%d queued=%d", status.ActiveUploads, status.QueuedUploads), status)
}

func (s *Service) handleTrigger(ctx context.Context, args []string) ipc.Response {
	if len(args) != 1 {
		return s.fail(errors.New("trigger requires one argument: image|video"))
	}
	purpose := hotkey.Purpose(strings.ToLower(strings.TrimSpace(args[0])))
	binding, ok := s.orchestrator.Binding(purpose)
	if !ok {
		return s.fail(fmt.Errorf("unknown capture purpose %q", args[0]))
	}

	var state string
	err := s.loop.Do(ctx, func() {
		binding.Activate()
		state = s.orchestrator.State()
	})
	if err != nil {
		return s.fail(err)
	}
	return ipc.Response{OK: true, State: state, Message: string(purpose) + " hotkey activated"}
}

func (s *Service) handleStop(ctx context.Context) ipc.Response {
	var stopErr error
	var state string
	err := s.loop.Do(ctx, func() {
		stopErr = s.orchestrator.StopVideo()
		state = s.orchestrator.State()
	})
	if err = errors.Join(err, stopErr); err != nil {
		return ipc.Response{OK: false, State: state, Error: err.Error()}
	}
	return ipc.Response{OK: true, State: state, Message: "stop requested"}
}

func (s *Service) handleBind(ctx context.Context, args []string) ipc.Response {
	if len(args) < 1 || len(args) > 2 {
		return s.fail(errors.New("bind requires: image|video [COMBO]"))
	}
	purpose := hotkey.Purpose(strings.ToLower(strings.TrimSpace(args[0])))
	binding, ok := s.orchestrator.Binding(purpose)
	if !ok {
		return s.fail(fmt.Errorf("unknown capture purpose %q", args[0]))
	}

	raw := ""
	if len(args) == 2 && !strings.EqualFold(strings.TrimSpace(args[1]), "none") {
		raw = args[1]
	}
	combo, err := hotkey.ParseCombo(raw)
	if err != nil {
		return s.fail(err)
	}

	var (
		applied   bool
		conflict  error
		effective hotkey.Combo
		cfg       config.Config
	)
	err = s.loop.Do(ctx, func() {
		if conflict = s.bindingConflict(purpose, combo); conflict != nil {
			return
		}
		applied = binding.SetCombination(ctx, combo)
		effective = binding.Combination()
		s.orchestrator.WriteSettings(&s.cfg)
		cfg = s.cfg
	})
	if err = errors.Join(err, conflict); err != nil {
		return s.fail(err)
	}
	if !applied {
		return ipc.Response{
			OK:    false,
			Error: fmt.Sprintf("%s hotkey %q not registered; kept %q", purpose, combo.String(), effective.String()),
		}
	}

	if s.configPath != "" {
		if err := config.Save(s.configPath, cfg); err != nil {
			s.logger.Warn("persist hotkey failed", "path", s.configPath, "error", err.Error())
			return ipc.Response{OK: true, Message: fmt.Sprintf("%s hotkey set to %q (not saved: %v)", purpose, effective.String(), err)}
		}
	}
	return ipc.Response{OK: true, Message: fmt.Sprintf("%s hotkey set to %q", purpose, effective.String())}
}

// bindingConflict reports whether combo is already held by another purpose.
// Runs on the loop.
func (s *Service) bindingConflict(purpose hotkey.Purpose, combo hotkey.Combo) error {
	if combo.IsZero() {
		return nil
	}
	for _, other := range []hotkey.Purpose{hotkey.PurposeImage, hotkey.PurposeVideo} {
		if other == purpose {
			continue
		}
		binding, ok := s.orchestrator.Binding(other)
		if ok && combo.Equal(binding.Combination()) {
			return apperror.Configuration.SetMessage(fmt.Sprintf("%s hotkey %q already bound to %s", purpose, combo.String(), other))
		}
	}
	return nil
}

func (s *Service) handleUpload(ctx context.Context, args []string) ipc.Response {
	if len(args) < 1 || len(args) > 2 {
		return s.fail(errors.New("upload requires: FILE [CATEGORY]"))
	}
	path, err := filepath.Abs(args[0])
	if err != nil {
		return s.fail(err)
	}
	if info, statErr := os.Stat(path); statErr != nil {
		return s.fail(statErr)
	} else if !info.Mode().IsRegular() {
		return s.fail(fmt.Errorf("%s is not a regular file", path))
	}

	mimeType := upload.MimeTypeFor(path)
	category := s.categoryFor(mimeType)
	if len(args) == 2 && strings.TrimSpace(args[1]) != "" {
		category = strings.TrimSpace(args[1])
	}
	u := upload.New(path, category, mimeType)

	var info upload.Info
	err = s.loop.Do(ctx, func() {
		s.uploads.Enqueue(u)
		info = u.Snapshot()
	})
	if err != nil {
		return s.fail(err)
	}
	return s.ok("", "upload "+info.ID+" "+string(info.State), info)
}

func (s *Service) handleCancelUpload(ctx context.Context, args []string) ipc.Response {
	if len(args) != 1 {
		return s.fail(errors.New("cancel-upload requires one upload ID"))
	}
	var cancelErr error
	if err := s.loop.Do(ctx, func() { cancelErr = s.uploads.Cancel(args[0]) }); err != nil {
		return s.fail(err)
	}
	if cancelErr != nil {
		return s.fail(cancelErr)
	}
	return ipc.Response{OK: true, Message: "upload " + args[0] + " cancel requested"}
}

func (s *Service) handleUploads(ctx context.Context) ipc.Response {
	var list []upload.Info
	if err := s.loop.Do(ctx, func() { list = s.uploads.Uploads() }); err != nil {
		return s.fail(err)
	}
	return s.ok("", fmt.Sprintf("%d uploads", len(list)), list)
}

func (s *Service) recordingFinished(artifact recorder.Artifact) {
	rc := s.cfg.Recording
	if !rc.AutoUpload || !rc.UploadsEnabled() {
		s.orchestrator.effects.Go(func(ctx context.Context) { s.indicator.ShowSaved(ctx, artifact.Path) })
		return
	}
	s.uploads.Enqueue(upload.New(artifact.Path, s.categoryFor(artifact.MimeType), artifact.MimeType))
}

func (s *Service) uploadFinished(u *upload.Upload) {
	if u.State() == upload.StateCompleted {
		location := u.Location()
		s.orchestrator.effects.Go(func(ctx context.Context) {
			s.indicator.ShowUploaded(ctx, location)
			if location == "" {
				return
			}
			if err := s.clipboard.Commit(ctx, location); err != nil {
				s.logger.Warn("copy upload location failed", "upload_id", u.ID(), "error", err.Error())
			}
		})
		return
	}
	if errors.Is(u.Err(), upload.ErrCancelled) {
		return
	}
	s.orchestrator.effects.Go(func(ctx context.Context) { s.indicator.ShowError(ctx, "Upload failed") })
}

func (s *Service) categoryFor(mimeType string) string {
	if strings.HasPrefix(mimeType, "video/") {
		return s.cfg.Recording.VideoCategory
	}
	return s.cfg.Recording.ImageCategory
}

func (s *Service) ok(state string, message string, data any) ipc.Response {
	resp := ipc.Response{OK: true, State: state, Message: message}
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return s.fail(fmt.Errorf("encode response: %w", err))
		}
		resp.Data = payload
	}
	return resp
}

func (s *Service) fail(err error) ipc.Response {
	return ipc.Response{OK: false, Error: err.Error()}
}
