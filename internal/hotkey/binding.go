package hotkey

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/rbright/shutter/internal/hypr"
)

// Purpose identifies what a binding captures.
type Purpose string

const (
	PurposeImage Purpose = "image"
	PurposeVideo Purpose = "video"
)

// Status is the registration state of a binding.
type Status string

const (
	StatusUnregistered Status = "unregistered"
	StatusRegistered   Status = "registered"
	StatusFailed       Status = "registration-failed"
)

// Registrar registers combinations with the compositor.
type Registrar interface {
	Register(ctx context.Context, purpose Purpose, combo Combo) error
	Unregister(ctx context.Context, purpose Purpose, combo Combo) error
}

// HyprRegistrar binds combinations to `<Executable> trigger <purpose>`.
type HyprRegistrar struct {
	Keybinds   hypr.Keybinds
	Executable string
}

// Register installs the compositor bind for combo.
func (r HyprRegistrar) Register(ctx context.Context, purpose Purpose, combo Combo) error {
	return r.keybinds().Bind(ctx, combo.HyprMods(), combo.HyprKey(), r.TriggerCommand(purpose))
}

// Unregister removes the compositor bind for combo.
func (r HyprRegistrar) Unregister(ctx context.Context, purpose Purpose, combo Combo) error {
	return r.keybinds().Unbind(ctx, combo.HyprMods(), combo.HyprKey())
}

// TriggerCommand is the shell command the compositor runs on activation.
func (r HyprRegistrar) TriggerCommand(purpose Purpose) string {
	exe := r.Executable
	if strings.TrimSpace(exe) == "" {
		exe = "shutter"
	}
	return fmt.Sprintf("%s trigger %s", shellQuote(exe), purpose)
}

func (r HyprRegistrar) keybinds() hypr.Keybinds {
	if r.Keybinds == nil {
		return hypr.CLIKeybinds{}
	}
	return r.Keybinds
}

func shellQuote(value string) string {
	if !strings.ContainsAny(value, " \t'\"\\$`") {
		return value
	}
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}

// Binding owns one purpose's combination and its registration.
//
// A Binding is not safe for concurrent use; all calls happen on the control
// loop. After SetCombination returns, Combination always equals the value
// last delivered to change observers.
type Binding struct {
	purpose   Purpose
	registrar Registrar
	logger    *slog.Logger

	combo  Combo
	status Status

	onChanged   []func(Combo)
	onActivated []func()
}

// NewBinding constructs an unregistered binding.
func NewBinding(purpose Purpose, registrar Registrar, logger *slog.Logger) *Binding {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Binding{
		purpose:   purpose,
		registrar: registrar,
		logger:    logger,
		status:    StatusUnregistered,
	}
}

func (b *Binding) Purpose() Purpose   { return b.purpose }
func (b *Binding) Combination() Combo { return b.combo }
func (b *Binding) Status() Status     { return b.status }

// OnChanged registers fn to receive the effective combination after every
// SetCombination call, successful or not.
func (b *Binding) OnChanged(fn func(Combo)) {
	b.onChanged = append(b.onChanged, fn)
}

// OnActivated registers fn to run whenever the combination is pressed.
func (b *Binding) OnActivated(fn func()) {
	b.onActivated = append(b.onActivated, fn)
}

// SetCombination replaces the registered combination. On failure the previous
// combination is restored, re-registered, and reported to observers.
func (b *Binding) SetCombination(ctx context.Context, combo Combo) bool {
	prev := b.combo
	prevStatus := b.status

	if prev.Equal(combo) && (prevStatus == StatusRegistered || combo.IsZero()) {
		b.notifyChanged(prev)
		return true
	}

	if !prev.IsZero() && prevStatus == StatusRegistered {
		if err := b.registrar.Unregister(ctx, b.purpose, prev); err != nil {
			b.logger.Warn("hotkey unregister failed",
				"purpose", b.purpose,
				"combination", prev.String(),
				"error", err.Error(),
			)
			b.notifyChanged(prev)
			return false
		}
		b.status = StatusUnregistered
	}

	if combo.IsZero() {
		b.combo = Combo{}
		b.status = StatusUnregistered
		b.logger.Info("hotkey disabled", "purpose", b.purpose)
		b.notifyChanged(b.combo)
		return true
	}

	if err := b.registrar.Register(ctx, b.purpose, combo); err != nil {
		b.logger.Warn("hotkey register failed",
			"purpose", b.purpose,
			"combination", combo.String(),
			"error", err.Error(),
		)
		b.restore(ctx, prev, prevStatus)
		b.notifyChanged(b.combo)
		return false
	}

	b.combo = combo
	b.status = StatusRegistered
	b.logger.Info("hotkey registered", "purpose", b.purpose, "combination", combo.String())
	b.notifyChanged(b.combo)
	return true
}

// restore re-registers prev after a failed replacement.
func (b *Binding) restore(ctx context.Context, prev Combo, prevStatus Status) {
	b.combo = prev
	if prev.IsZero() {
		b.status = StatusFailed
		return
	}
	if prevStatus != StatusRegistered {
		b.status = prevStatus
		return
	}
	if err := b.registrar.Register(ctx, b.purpose, prev); err != nil {
		b.logger.Error("hotkey restore failed",
			"purpose", b.purpose,
			"combination", prev.String(),
			"error", err.Error(),
		)
		b.status = StatusFailed
		return
	}
	b.status = StatusRegistered
}

// Activate delivers one press to activation observers.
func (b *Binding) Activate() {
	b.logger.Debug("hotkey activated", "purpose", b.purpose, "combination", b.combo.String())
	for _, fn := range b.onActivated {
		fn()
	}
}

// Release unregisters the current combination, leaving the stored value intact.
func (b *Binding) Release(ctx context.Context) error {
	if b.combo.IsZero() || b.status != StatusRegistered {
		return nil
	}
	if err := b.registrar.Unregister(ctx, b.purpose, b.combo); err != nil {
		return fmt.Errorf("unregister %s hotkey: %w", b.purpose, err)
	}
	b.status = StatusUnregistered
	return nil
}

func (b *Binding) notifyChanged(combo Combo) {
	for _, fn := range b.onChanged {
		fn(combo)
	}
}
