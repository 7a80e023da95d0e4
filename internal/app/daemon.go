package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/rbright/shutter/internal/audio"
	"github.com/rbright/shutter/internal/config"
	"github.com/rbright/shutter/internal/dispatch"
	"github.com/rbright/shutter/internal/fsm"
	"github.com/rbright/shutter/internal/health"
	"github.com/rbright/shutter/internal/hotkey"
	"github.com/rbright/shutter/internal/indicator"
	"github.com/rbright/shutter/internal/ipc"
	"github.com/rbright/shutter/internal/output"
	"github.com/rbright/shutter/internal/recorder"
	"github.com/rbright/shutter/internal/session"
	"github.com/rbright/shutter/internal/upload"
	"github.com/rbright/shutter/internal/window"
)

const (
	shutdownTimeout      = 5 * time.Second
	audioRefreshTimeout  = 2 * time.Second
	audioRefreshInterval = 30 * time.Second
)

// commandDaemon owns the command socket until ctx is cancelled.
func (r Runner) commandDaemon(ctx context.Context, loaded config.Loaded, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	creds, err := config.LoadCredentials(loaded.CredentialsPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	transport, err := buildTransport(loaded.Config.Recording, creds)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	loop := dispatch.New()
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = loop.Run(loopCtx)
	}()
	defer func() {
		stopLoop()
		<-loopDone
	}()

	cfg := loaded.Config
	ind := r.indicator(cfg, logger)
	audioSource := audio.NewCache(audio.Selector{
		Input:    cfg.Recording.Recorder.AudioInput,
		Fallback: cfg.Recording.Recorder.AudioFallback,
		Logger:   logger,
	}, audioRefreshTimeout, logger)
	_ = audioSource.Refresh(ctx)
	audioDone := make(chan struct{})
	go func() {
		defer close(audioDone)
		audioSource.Run(loopCtx, audioRefreshInterval)
	}()
	defer func() {
		stopLoop()
		<-audioDone
	}()

	rec := recorder.New(session.RecorderConfig(cfg), loop, r.Launcher, audioSource, logger)
	rec.OnStateChanged(func(state fsm.State) {
		logger.Debug("recorder state", "state", state)
	})
	registrar := r.registrar()
	orchestrator := session.NewOrchestrator(
		rec,
		r.prober(),
		hotkey.NewBinding(hotkey.PurposeImage, registrar, logger),
		hotkey.NewBinding(hotkey.PurposeVideo, registrar, logger),
		ind,
		logger,
	)
	uploads := upload.NewManager(cfg.Recording.MaxActiveUploads, loop, transport, logger)
	svc := session.NewService(loop, orchestrator, uploads, cfg, loaded.Path, ind, output.NewClipboard(cfg, logger), logger)

	var settingsErr error
	if err := loop.Do(ctx, func() { settingsErr = orchestrator.ReadSettings(ctx, cfg) }); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if settingsErr != nil {
		fmt.Fprintf(r.Stderr, "warning: %v\n", settingsErr)
		logger.Warn("daemon settings incomplete", "error", settingsErr.Error())
	}

	hs := r.startHealth(logger)
	if hs != nil {
		defer hs.Stop()
		hs.SetServing(health.ServiceDaemon, true)
		hs.SetServing(health.ServiceRecorder, ffmpegAvailable(cfg.Recording.Recorder.FFmpegExecutable))
		hs.SetServing(health.ServiceUploads, transport != nil)
	}

	logger.Info("daemon ready",
		"socket", socketPath,
		"image_shortcut", cfg.Recording.ImageShortcut,
		"video_shortcut", cfg.Recording.VideoShortcut,
		"uploads", transport != nil,
	)

	server := &ipc.Server{Handler: svc, Logger: logger}
	serveErr := server.Serve(ctx, listener)

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := svc.Close(closeCtx); err != nil && !errors.Is(err, dispatch.ErrClosed) {
		logger.Warn("daemon shutdown incomplete", "error", err.Error())
	}
	if notifier, ok := ind.(*indicator.HyprNotify); ok {
		notifier.Wait()
	}
	logger.Info("daemon stopped")

	if serveErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serveErr)
		return 1
	}
	return 0
}

func (r Runner) startHealth(logger *slog.Logger) *health.Server {
	path, err := ipc.HealthSocketPath()
	if err != nil {
		logger.Warn("health endpoint disabled", "error", err.Error())
		return nil
	}
	hs, err := health.Listen(path)
	if err != nil {
		logger.Warn("health endpoint disabled", "error", err.Error())
		return nil
	}
	go func() {
		if err := hs.Serve(); err != nil {
			logger.Warn("health endpoint stopped", "error", err.Error())
		}
	}()
	return hs
}

func (r Runner) indicator(cfg config.Config, logger *slog.Logger) session.Indicator {
	if r.Indicator != nil {
		return r.Indicator
	}
	if !cfg.Indicator.Enable {
		return nil
	}
	return indicator.NewHyprNotify(cfg.Indicator, logger)
}

func (r Runner) registrar() hotkey.Registrar {
	if r.Registrar != nil {
		return r.Registrar
	}
	exe, err := os.Executable()
	if err != nil {
		exe = "shutter"
	}
	return hotkey.HyprRegistrar{Executable: exe}
}

func (r Runner) prober() window.Prober {
	if r.Prober != nil {
		return r.Prober
	}
	return window.HyprProber{}
}

// buildTransport selects the upload backend. It returns nil when uploads are
// not configured.
func buildTransport(rec config.RecordingConfig, creds config.Credentials) (upload.Transport, error) {
	if !rec.UploadsEnabled() {
		return nil, nil
	}
	if rec.UploadBackend == config.UploadBackendS3 {
		s3, err := upload.NewS3Transport(upload.S3Options{
			Bucket:          rec.S3.Bucket,
			Region:          rec.S3.Region,
			Endpoint:        rec.S3.Endpoint,
			Prefix:          rec.S3.Prefix,
			AccessKeyID:     creds.AWSAccessKeyID,
			SecretAccessKey: creds.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return s3, nil
	}
	return upload.HTTPTransport{
		BaseURL:  rec.ServiceURL,
		UserName: rec.UserName,
		Password: creds.UploadPassword,
	}, nil
}

func ffmpegAvailable(executable string) bool {
	_, err := exec.LookPath(executable)
	return err == nil
}
