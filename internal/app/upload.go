package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rbright/shutter/internal/config"
	"github.com/rbright/shutter/internal/dispatch"
	"github.com/rbright/shutter/internal/output"
	"github.com/rbright/shutter/internal/upload"
)

// uploadOnce runs a single-upload manager in-process and waits for it.
func (r Runner) uploadOnce(ctx context.Context, loaded config.Loaded, path string, category string, logger *slog.Logger) int {
	cfg := loaded.Config
	creds, err := config.LoadCredentials(loaded.CredentialsPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	transport, err := buildTransport(cfg.Recording, creds)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if transport == nil {
		fmt.Fprintln(r.Stderr, "error: uploads are not configured (set recording.serviceUrl or recording.s3.bucket)")
		return 1
	}

	mimeType := upload.MimeTypeFor(path)
	if category == "" {
		category = categoryFor(cfg.Recording, mimeType)
	}
	u := upload.New(path, category, mimeType)

	loop := dispatch.New()
	manager := upload.NewManager(1, loop, transport, logger)
	done := make(chan struct{})
	manager.OnFinished(func(*upload.Upload) { close(done) })

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

	loop.Post(func() { manager.Enqueue(u) })
	select {
	case <-done:
	case <-ctx.Done():
		loop.Post(manager.Shutdown)
		<-done
	}

	if u.State() != upload.StateCompleted {
		if errors.Is(u.Err(), upload.ErrCancelled) {
			fmt.Fprintln(r.Stderr, "error: upload cancelled")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", u.Err())
		return 1
	}

	location := u.Location()
	if location == "" {
		fmt.Fprintf(r.Stdout, "uploaded %s\n", path)
		return 0
	}
	fmt.Fprintln(r.Stdout, location)
	if err := output.NewClipboard(cfg, logger).Commit(ctx, location); err != nil {
		logger.Warn("copy upload location failed", "error", err.Error())
	}
	return 0
}

func categoryFor(rec config.RecordingConfig, mimeType string) string {
	if strings.HasPrefix(mimeType, "video/") {
		return rec.VideoCategory
	}
	return rec.ImageCategory
}
