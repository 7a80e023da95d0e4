package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/rbright/shutter/internal/apperror"
)

var (
	// ErrCancelled marks uploads ended by Cancel or Shutdown.
	ErrCancelled = errors.New("upload cancelled")
	// ErrUnknownUpload is returned by Cancel for IDs that are not queued or active.
	ErrUnknownUpload = errors.New("unknown upload")
)

// Poster schedules work on the control loop.
type Poster interface {
	Post(fn func()) bool
}

const historySize = 20

// Manager admits queued uploads in FIFO order while fewer than MaxActive are
// in progress. All methods must be called on the control loop; transport
// completions are posted back to it.
type Manager struct {
	loop      Poster
	transport Transport
	logger    *slog.Logger

	maxActive int
	active    int
	queue     []*Upload
	inflight  map[string]*Upload
	history   []*Upload
	closed    bool

	onEnqueued []func(*Upload)
	onStarted  []func(*Upload)
	onFinished []func(*Upload)
}

// NewManager constructs an empty manager. A maxActive below 1 is treated as 1.
func NewManager(maxActive int, loop Poster, transport Transport, logger *slog.Logger) *Manager {
	if maxActive < 1 {
		maxActive = 1
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		loop:      loop,
		transport: transport,
		logger:    logger,
		maxActive: maxActive,
		inflight:  make(map[string]*Upload),
	}
}

func (m *Manager) MaxActive() int   { return m.maxActive }
func (m *Manager) ActiveCount() int { return m.active }
func (m *Manager) QueueLen() int    { return len(m.queue) }

// OnEnqueued registers fn to observe every enqueued upload.
func (m *Manager) OnEnqueued(fn func(*Upload)) { m.onEnqueued = append(m.onEnqueued, fn) }

// OnStarted registers fn to observe admissions.
func (m *Manager) OnStarted(fn func(*Upload)) { m.onStarted = append(m.onStarted, fn) }

// OnFinished registers fn to observe uploads reaching a terminal state,
// including queued uploads that were cancelled or failed admission.
func (m *Manager) OnFinished(fn func(*Upload)) { m.onFinished = append(m.onFinished, fn) }

// Enqueue appends u to the queue and admits as many queued uploads as
// capacity allows. It never blocks.
func (m *Manager) Enqueue(u *Upload) {
	if u == nil {
		return
	}
	if err := m.admissible(u); err != nil {
		m.logger.Error("upload enqueue rejected", "upload_id", u.ID(), "state", u.State(), "error", err.Error())
		return
	}
	u.OnStateChanged(func(state State) {
		if state.Terminal() {
			m.finished(u)
		}
	})

	m.queue = append(m.queue, u)
	m.logger.Info("upload enqueued",
		"upload_id", u.ID(),
		"path", u.Path(),
		"category", u.Category(),
		"queued", len(m.queue),
	)
	for _, fn := range m.onEnqueued {
		fn(u)
	}

	if m.closed {
		m.cancelQueued(u)
		return
	}
	m.tryStart()
}

// admissible rejects uploads that already ran or are already tracked. A
// retry is a new Upload for the same file.
func (m *Manager) admissible(u *Upload) error {
	if u.State() != StateQueued {
		return apperror.Invariant.SetMessage(fmt.Sprintf("enqueue upload %s in state %s", u.ID(), u.State()))
	}
	if _, ok := m.inflight[u.ID()]; ok {
		return apperror.Invariant.SetMessage(fmt.Sprintf("enqueue upload %s while in progress", u.ID()))
	}
	for _, queued := range m.queue {
		if queued == u {
			return apperror.Invariant.SetMessage(fmt.Sprintf("enqueue upload %s twice", u.ID()))
		}
	}
	return nil
}

// tryStart admits queue heads while capacity remains.
func (m *Manager) tryStart() {
	for !m.closed && m.active < m.maxActive && len(m.queue) > 0 {
		head := m.queue[0]
		m.queue[0] = nil
		m.queue = m.queue[1:]
		m.start(head)
	}
}

func (m *Manager) start(u *Upload) {
	if m.active >= m.maxActive {
		m.reject(u, apperror.Invariant.SetMessage(fmt.Sprintf("admission at capacity (%d/%d)", m.active, m.maxActive)))
		return
	}
	if m.transport == nil {
		m.reject(u, apperror.Configuration.SetMessage("no upload transport configured"))
		return
	}
	if err := u.open(); err != nil {
		m.reject(u, err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	exchange, err := m.transport.Prepare(ctx, Request{
		Body:     u.file,
		Size:     u.size,
		Name:     filepath.Base(u.path),
		Category: u.category,
		MimeType: u.mimeType,
	})
	if err != nil {
		cancel()
		m.reject(u, err)
		return
	}

	if err := u.started(cancel); err != nil {
		m.logger.Error("upload start transition failed", "upload_id", u.ID(), "error", err.Error())
		u.release()
		return
	}
	m.active++
	m.inflight[u.ID()] = u

	m.logger.Info("upload started",
		"upload_id", u.ID(),
		"bytes", u.size,
		"mime_type", u.mimeType,
		"active", m.active,
		"queued", len(m.queue),
	)
	for _, fn := range m.onStarted {
		fn(u)
	}

	go func() {
		result, err := exchange()
		if !m.loop.Post(func() { m.complete(ctx, u, result, err) }) {
			cancel()
			m.logger.Warn("upload result dropped; control loop closed", "upload_id", u.ID())
		}
	}()
}

// reject fails an upload that never reached InProgress. It did not take a
// slot, so no counter change follows.
func (m *Manager) reject(u *Upload, err error) {
	if apperror.IsInvariant(err) {
		m.logger.Error("upload admission invariant violated", "upload_id", u.ID(), "error", err.Error())
	} else {
		m.logger.Warn("upload admission failed", "upload_id", u.ID(), "error", err.Error())
	}
	_ = u.fail(err)
}

func (m *Manager) complete(ctx context.Context, u *Upload, result Result, err error) {
	if u.State() != StateInProgress {
		return
	}
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		_ = u.fail(err)
		return
	}
	_ = u.complete(result.Location)
}

// finished observes every terminal transition of an enqueued upload.
func (m *Manager) finished(u *Upload) {
	if _, ok := m.inflight[u.ID()]; ok {
		delete(m.inflight, u.ID())
		m.active--
		if m.active < 0 {
			m.logger.Error("active upload count went negative", "active", m.active)
			m.active = 0
		}
	}

	m.remember(u)
	if u.State() == StateCompleted {
		m.logger.Info("upload completed", "upload_id", u.ID(), "location", u.Location(), "active", m.active)
	} else {
		m.logger.Warn("upload failed", "upload_id", u.ID(), "error", errString(u.Err()), "active", m.active)
	}
	for _, fn := range m.onFinished {
		fn(u)
	}
	m.tryStart()
}

// Cancel ends a queued upload immediately or aborts an in-progress one. The
// in-progress upload turns Failed once its transport returns.
func (m *Manager) Cancel(id string) error {
	for _, u := range m.queue {
		if u.ID() == id {
			m.cancelQueued(u)
			return nil
		}
	}
	if u, ok := m.inflight[id]; ok {
		u.abort()
		m.logger.Info("upload cancel requested", "upload_id", id)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownUpload, id)
}

func (m *Manager) cancelQueued(u *Upload) {
	for i, queued := range m.queue {
		if queued == u {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			break
		}
	}
	_ = u.fail(ErrCancelled)
}

// Shutdown cancels every queued and in-progress upload and rejects later ones.
func (m *Manager) Shutdown() {
	m.closed = true
	for len(m.queue) > 0 {
		m.cancelQueued(m.queue[0])
	}
	for _, u := range m.inflight {
		u.abort()
	}
}

// Uploads lists in-progress, queued, and recently finished uploads.
func (m *Manager) Uploads() []Info {
	out := make([]Info, 0, len(m.inflight)+len(m.queue)+len(m.history))
	for _, u := range m.inflight {
		out = append(out, u.Snapshot())
	}
	for _, u := range m.queue {
		out = append(out, u.Snapshot())
	}
	for i := len(m.history) - 1; i >= 0; i-- {
		out = append(out, m.history[i].Snapshot())
	}
	return out
}

func (m *Manager) remember(u *Upload) {
	m.history = append(m.history, u)
	if len(m.history) > historySize {
		m.history = m.history[len(m.history)-historySize:]
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
