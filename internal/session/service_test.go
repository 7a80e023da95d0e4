package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/rbright/shutter/internal/config"
	"github.com/rbright/shutter/internal/dispatch"
	"github.com/rbright/shutter/internal/hotkey"
	"github.com/rbright/shutter/internal/ipc"
	"github.com/rbright/shutter/internal/recorder"
	"github.com/rbright/shutter/internal/upload"
)

type serviceFixture struct {
	*fixture
	loop       *dispatch.Loop
	uploads    *upload.Manager
	service    *Service
	configPath string

	mu     sync.Mutex
	copied []string
}

func newServiceFixture(t *testing.T, serviceURL string) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		fixture:    newFixture(),
		loop:       dispatch.New(),
		configPath: filepath.Join(t.TempDir(), "config.jsonc"),
	}

	cfg := config.Default()
	cfg.Recording.ServiceURL = serviceURL
	cfg.Recording.UserName = "alice"
	cfg.Recording.Recorder.OutputDir = t.TempDir()
	f.recorder.cfg = RecorderConfig(cfg)

	f.uploads = upload.NewManager(1, f.loop, upload.HTTPTransport{BaseURL: serviceURL, UserName: "alice"}, nil)
	clipboard := CommitFunc(func(_ context.Context, location string) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.copied = append(f.copied, location)
		return nil
	})
	f.service = NewService(f.loop, f.orch, f.uploads, cfg, f.configPath, f.indicator, clipboard, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return f
}

func (f *serviceFixture) handle(t *testing.T, command string, args ...string) ipc.Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return f.service.Handle(ctx, ipc.Request{Command: command, Args: args})
}

func (f *serviceFixture) copiedLocations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.copied...)
}

func newCaptureService(t *testing.T) *httptest.Server {
	t.Helper()
	router := mux.NewRouter()
	router.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := r.BasicAuth()
		if !ok || user != "alice" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Location", "https://share.example.com/"+r.URL.Query().Get("category"))
		w.WriteHeader(http.StatusCreated)
	}).Methods(http.MethodPost)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func TestServiceTriggerAndStatus(t *testing.T) {
	f := newServiceFixture(t, "")

	resp := f.handle(t, "trigger", "video")
	require.True(t, resp.OK, resp.Error)
	require.Equal(t, "recording:video", resp.State)

	status := f.handle(t, "status")
	require.True(t, status.OK)
	require.Equal(t, "recording:video", status.State)

	var payload Status
	require.NoError(t, json.Unmarshal(status.Data, &payload))
	require.Equal(t, 1, payload.MaxUploads)
	require.Zero(t, payload.ActiveUploads)

	stop := f.handle(t, "stop")
	require.True(t, stop.OK, stop.Error)
	require.Equal(t, "stopping:video", stop.State)
}

func TestServiceTriggerRejectsUnknownPurpose(t *testing.T) {
	f := newServiceFixture(t, "")

	require.False(t, f.handle(t, "trigger").OK)
	resp := f.handle(t, "trigger", "gif")
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unknown capture purpose")
}

func TestServiceStopWithoutVideo(t *testing.T) {
	f := newServiceFixture(t, "")

	resp := f.handle(t, "stop")
	require.False(t, resp.OK)
	require.Equal(t, "idle", resp.State)
	require.Contains(t, resp.Error, "no video recording")
}

func TestServiceBindPersistsShortcut(t *testing.T) {
	f := newServiceFixture(t, "")

	resp := f.handle(t, "bind", "video", "super+shift+r")
	require.True(t, resp.OK, resp.Error)
	require.Contains(t, resp.Message, "Super+Shift+R")

	loaded, err := config.Load(f.configPath)
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Equal(t, "Super+Shift+R", loaded.Config.Recording.VideoShortcut)
}

func TestServiceBindFailureKeepsPrevious(t *testing.T) {
	f := newServiceFixture(t, "")
	require.True(t, f.handle(t, "bind", "image", "Super+S").OK)

	f.registrar.failures["Super+P"] = true
	resp := f.handle(t, "bind", "image", "Super+P")
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, `kept "Super+S"`)

	status := f.handle(t, "status")
	var payload Status
	require.NoError(t, json.Unmarshal(status.Data, &payload))
	require.Equal(t, "Super+S", payload.ImageShortcut)
}

func TestServiceBindRejectsComboHeldByOtherPurpose(t *testing.T) {
	f := newServiceFixture(t, "")
	require.True(t, f.handle(t, "bind", "image", "Super+S").OK)
	require.True(t, f.handle(t, "bind", "video", "Super+R").OK)

	resp := f.handle(t, "bind", "video", "super+s")
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, `already bound to image`)
	require.Equal(t, "Super+R", f.registrar.registered[hotkey.PurposeVideo])
	require.Equal(t, "Super+S", f.registrar.registered[hotkey.PurposeImage])

	status := f.handle(t, "status")
	var payload Status
	require.NoError(t, json.Unmarshal(status.Data, &payload))
	require.Equal(t, "Super+S", payload.ImageShortcut)
	require.Equal(t, "Super+R", payload.VideoShortcut)
}

func TestServiceBindRejectsInvalidCombo(t *testing.T) {
	f := newServiceFixture(t, "")
	resp := f.handle(t, "bind", "image", "Hyper+S")
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unknown modifier")
}

func TestServiceAutoUploadsFinishedCapture(t *testing.T) {
	server := newCaptureService(t)
	f := newServiceFixture(t, server.URL)

	path := filepath.Join(t.TempDir(), "shutter.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0o600))

	require.True(t, f.handle(t, "trigger", "video").OK)
	require.NoError(t, f.loop.Do(context.Background(), func() {
		f.recorder.finish(&recorder.Artifact{Path: path, MimeType: "video/mp4", Type: recorder.Video, Size: 5})
	}))

	require.Eventually(t, func() bool {
		return len(f.copiedLocations()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"https://share.example.com/video"}, f.copiedLocations())

	list := f.handle(t, "uploads")
	require.True(t, list.OK)
	var infos []upload.Info
	require.NoError(t, json.Unmarshal(list.Data, &infos))
	require.Len(t, infos, 1)
	require.Equal(t, upload.StateCompleted, infos[0].State)
	require.Equal(t, "video", infos[0].Category)

	f.orch.Wait()
	require.Contains(t, f.indicator.snapshot(), "uploaded https://share.example.com/video")
}

func TestServiceShowsSavedWhenUploadsDisabled(t *testing.T) {
	f := newServiceFixture(t, "")

	require.True(t, f.handle(t, "trigger", "image").OK)
	require.NoError(t, f.loop.Do(context.Background(), func() {
		f.recorder.finish(&recorder.Artifact{Path: "/tmp/shot.png", MimeType: "image/png", Type: recorder.Image})
	}))

	f.orch.Wait()
	require.Equal(t, []string{"saved /tmp/shot.png"}, f.indicator.snapshot())
	require.Zero(t, f.uploads.QueueLen())
}

func TestServiceManualUploadAndCancel(t *testing.T) {
	server := newCaptureService(t)
	f := newServiceFixture(t, server.URL)

	missing := f.handle(t, "upload", filepath.Join(t.TempDir(), "missing.png"))
	require.False(t, missing.OK)

	path := filepath.Join(t.TempDir(), "notes.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o600))

	resp := f.handle(t, "upload", path, "docs")
	require.True(t, resp.OK, resp.Error)
	var info upload.Info
	require.NoError(t, json.Unmarshal(resp.Data, &info))
	require.Equal(t, "docs", info.Category)
	require.Equal(t, "image/png", info.MimeType)

	unknown := f.handle(t, "cancel-upload", "not-an-id")
	require.False(t, unknown.OK)
	require.Contains(t, unknown.Error, "unknown upload")
}

func TestServiceUnknownCommand(t *testing.T) {
	f := newServiceFixture(t, "")
	resp := f.handle(t, "definitely-unknown")
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unknown command")
}

func TestServiceClose(t *testing.T) {
	f := newServiceFixture(t, "")
	require.True(t, f.handle(t, "bind", "image", "Super+S").OK)

	require.NoError(t, f.service.Close(context.Background()))
	require.Empty(t, f.registrar.registered)
}
