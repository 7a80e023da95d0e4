package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rbright/shutter/internal/apperror"
	"github.com/rbright/shutter/internal/fsm"
	"github.com/rbright/shutter/internal/hotkey"
	"github.com/rbright/shutter/internal/recorder"
	"github.com/rbright/shutter/internal/window"
)

type fakeRecorder struct {
	state      fsm.State
	recordType recorder.RecordType
	window     window.Info
	cfg        recorder.Config
	startErr   error

	starts     []recorder.RecordType
	stops      int
	aborts     int
	maxActive  int
	activeNow  int
	onFinished []func(*recorder.Artifact)
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{state: fsm.StateIdle, recordType: recorder.Image}
}

func (f *fakeRecorder) State() fsm.State                    { return f.state }
func (f *fakeRecorder) IsRecording() bool                   { return fsm.Active(f.state) }
func (f *fakeRecorder) RecordType() recorder.RecordType     { return f.recordType }
func (f *fakeRecorder) SetRecordType(t recorder.RecordType) { f.recordType = t }
func (f *fakeRecorder) SetWindowInfo(info window.Info)      { f.window = info }
func (f *fakeRecorder) Config() recorder.Config             { return f.cfg }
func (f *fakeRecorder) SetConfig(cfg recorder.Config)       { f.cfg = cfg }
func (f *fakeRecorder) Abort()                              { f.aborts++ }

func (f *fakeRecorder) OnFinished(fn func(*recorder.Artifact)) {
	f.onFinished = append(f.onFinished, fn)
}

func (f *fakeRecorder) Start(context.Context) error {
	if f.IsRecording() {
		return apperror.Invariant.SetMessage("already recording")
	}
	if f.startErr != nil {
		return f.startErr
	}
	f.state = fsm.StateRecording
	f.starts = append(f.starts, f.recordType)
	f.activeNow++
	if f.activeNow > f.maxActive {
		f.maxActive = f.activeNow
	}
	return nil
}

func (f *fakeRecorder) Stop() error {
	if f.state == fsm.StateStopping {
		return nil
	}
	if f.state != fsm.StateRecording || f.recordType != recorder.Video {
		return apperror.Invariant.SetMessage("stop without video")
	}
	f.state = fsm.StateStopping
	f.stops++
	return nil
}

// finish simulates the encoder exiting. A nil artifact models a failed capture.
func (f *fakeRecorder) finish(artifact *recorder.Artifact) {
	f.state = fsm.StateIdle
	f.activeNow--
	for _, fn := range f.onFinished {
		fn(artifact)
	}
}

type fakeRegistrar struct {
	failures   map[string]bool
	registered map[hotkey.Purpose]string
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{failures: map[string]bool{}, registered: map[hotkey.Purpose]string{}}
}

func (f *fakeRegistrar) Register(_ context.Context, purpose hotkey.Purpose, combo hotkey.Combo) error {
	if f.failures[combo.String()] {
		return errors.New("combination taken")
	}
	f.registered[purpose] = combo.String()
	return nil
}

func (f *fakeRegistrar) Unregister(_ context.Context, purpose hotkey.Purpose, _ hotkey.Combo) error {
	delete(f.registered, purpose)
	return nil
}

type fakeIndicator struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeIndicator) record(event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeIndicator) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func (f *fakeIndicator) ShowRecording(context.Context)         { f.record("recording") }
func (f *fakeIndicator) ShowSaved(_ context.Context, p string) { f.record("saved " + p) }
func (f *fakeIndicator) ShowUploaded(_ context.Context, l string) {
	f.record("uploaded " + l)
}
func (f *fakeIndicator) ShowError(_ context.Context, text string) { f.record("error " + text) }
func (f *fakeIndicator) CueStop(context.Context)                  { f.record("cue-stop") }
func (f *fakeIndicator) Hide(context.Context)                     { f.record("hide") }

type fixture struct {
	recorder  *fakeRecorder
	registrar *fakeRegistrar
	indicator *fakeIndicator
	image     *hotkey.Binding
	video     *hotkey.Binding
	probeErr  error
	probes    int
	orch      *Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		recorder:  newFakeRecorder(),
		registrar: newFakeRegistrar(),
		indicator: &fakeIndicator{},
	}
	f.image = hotkey.NewBinding(hotkey.PurposeImage, f.registrar, nil)
	f.video = hotkey.NewBinding(hotkey.PurposeVideo, f.registrar, nil)
	prober := window.ProberFunc(func(context.Context) (window.Info, error) {
		f.probes++
		if f.probeErr != nil {
			return window.Info{}, f.probeErr
		}
		return window.Info{
			DPI:      96,
			Geometry: window.Rect{X: 10, Y: 20, Width: 800, Height: 600},
			Class:    "kitty",
		}, nil
	})
	f.orch = NewOrchestrator(f.recorder, prober, f.image, f.video, f.indicator, nil)
	return f
}
