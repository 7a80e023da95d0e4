// Package upload carries captured artifacts to the configured upload service.
// A Manager admits queued uploads in FIFO order under a concurrency cap.
package upload

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/shutter/internal/apperror"
)

// State is the upload lifecycle state.
type State string

const (
	StateQueued     State = "queued"
	StateInProgress State = "in-progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Terminal reports whether s ends the lifecycle.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Upload is one pending or in-flight transfer of a local file. It holds no
// queue knowledge; observers registered with OnStateChanged see every
// transition. Methods must be called on the control loop.
type Upload struct {
	id        string
	path      string
	category  string
	mimeType  string
	createdAt time.Time

	state    State
	location string
	err      error

	file   *os.File
	size   int64
	cancel context.CancelFunc

	observers []func(State)
}

// New returns a queued upload for path. An empty mimeType is inferred from the
// file extension.
func New(path string, category string, mimeType string) *Upload {
	if strings.TrimSpace(mimeType) == "" {
		mimeType = MimeTypeFor(path)
	}
	return &Upload{
		id:        uuid.NewString(),
		path:      path,
		category:  category,
		mimeType:  mimeType,
		createdAt: time.Now(),
		state:     StateQueued,
	}
}

func (u *Upload) ID() string       { return u.id }
func (u *Upload) Path() string     { return u.path }
func (u *Upload) Category() string { return u.category }
func (u *Upload) MimeType() string { return u.mimeType }
func (u *Upload) State() State     { return u.state }
func (u *Upload) Location() string { return u.location }
func (u *Upload) Err() error       { return u.err }

// Size is the byte size recorded when the file was opened.
func (u *Upload) Size() int64 { return u.size }

// OnStateChanged registers fn to observe lifecycle transitions.
func (u *Upload) OnStateChanged(fn func(State)) {
	u.observers = append(u.observers, fn)
}

// Info is a serializable snapshot of an upload.
type Info struct {
	ID       string `json:"id"`
	Path     string `json:"path"`
	Category string `json:"category"`
	MimeType string `json:"mime_type"`
	State    State  `json:"state"`
	Location string `json:"location,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Snapshot returns the current upload state as Info.
func (u *Upload) Snapshot() Info {
	info := Info{
		ID:       u.id,
		Path:     u.path,
		Category: u.category,
		MimeType: u.mimeType,
		State:    u.state,
		Location: u.location,
	}
	if u.err != nil {
		info.Error = u.err.Error()
	}
	return info
}

// open acquires the file handle. The file must exist and not already be open.
func (u *Upload) open() error {
	if u.file != nil {
		return apperror.Invariant.SetMessage(fmt.Sprintf("upload %s file already open", u.id))
	}
	info, err := os.Stat(u.path)
	if err != nil {
		return apperror.Invariant.SetMessage(fmt.Sprintf("upload %s file missing", u.id)).Wrap(err)
	}
	if !info.Mode().IsRegular() {
		return apperror.Invariant.SetMessage(fmt.Sprintf("upload %s path is not a regular file", u.id))
	}
	file, err := os.Open(u.path)
	if err != nil {
		return apperror.Invariant.SetMessage(fmt.Sprintf("open upload %s", u.id)).Wrap(err)
	}
	u.file = file
	u.size = info.Size()
	return nil
}

// started moves the upload to InProgress. cancel aborts the transport exchange.
func (u *Upload) started(cancel context.CancelFunc) error {
	u.cancel = cancel
	return u.setState(StateInProgress)
}

func (u *Upload) complete(location string) error {
	u.location = strings.TrimSpace(location)
	return u.setState(StateCompleted)
}

func (u *Upload) fail(err error) error {
	u.err = err
	return u.setState(StateFailed)
}

// abort cancels an in-flight exchange. It reports whether one was running.
func (u *Upload) abort() bool {
	if u.state != StateInProgress || u.cancel == nil {
		return false
	}
	u.cancel()
	return true
}

func (u *Upload) setState(next State) error {
	if !validTransition(u.state, next) {
		return apperror.Invariant.SetMessage(fmt.Sprintf("upload %s: invalid transition %s -> %s", u.id, u.state, next))
	}
	u.state = next
	if next.Terminal() {
		u.release()
	}
	for _, fn := range u.observers {
		fn(next)
	}
	return nil
}

func (u *Upload) release() {
	if u.cancel != nil {
		u.cancel()
		u.cancel = nil
	}
	if u.file != nil {
		_ = u.file.Close()
		u.file = nil
	}
}

func validTransition(from State, to State) bool {
	switch from {
	case StateQueued:
		return to == StateInProgress || to == StateFailed
	case StateInProgress:
		return to == StateCompleted || to == StateFailed
	default:
		return false
	}
}

// MimeTypeFor infers a media type from the file extension.
func MimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".mp4":
		return "video/mp4"
	}
	if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
