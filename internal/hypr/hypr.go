// Package hypr wraps the hyprctl commands used for keybinds, window queries,
// and notifications.
package hypr

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Keybinds registers and removes compositor key bindings.
type Keybinds interface {
	Bind(ctx context.Context, mods string, key string, command string) error
	Unbind(ctx context.Context, mods string, key string) error
}

// CLIKeybinds drives Hyprland keybinds through `hyprctl keyword`.
type CLIKeybinds struct{}

// Bind registers `mods,key` to exec command.
func (CLIKeybinds) Bind(ctx context.Context, mods string, key string, command string) error {
	key = strings.TrimSpace(key)
	command = strings.TrimSpace(command)
	if key == "" {
		return errors.New("bind key must not be empty")
	}
	if command == "" {
		return errors.New("bind command must not be empty")
	}
	return runHyprctlKeyword(ctx, "bind", fmt.Sprintf("%s,%s,exec,%s", mods, key, command))
}

// Unbind removes the binding for `mods,key`.
func (CLIKeybinds) Unbind(ctx context.Context, mods string, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("unbind key must not be empty")
	}
	return runHyprctlKeyword(ctx, "unbind", fmt.Sprintf("%s,%s", mods, key))
}

// runHyprctlKeyword applies a runtime keyword. hyprctl exits zero on rejected
// keywords, so anything other than "ok" is treated as a failure.
func runHyprctlKeyword(ctx context.Context, keyword string, value string) error {
	out, err := runHyprctlOutput(ctx, "keyword", keyword, value)
	if err != nil {
		return err
	}
	reply := strings.TrimSpace(string(out))
	if reply != "" && reply != "ok" {
		return fmt.Errorf("hyprctl keyword %s %q rejected: %s", keyword, value, reply)
	}
	return nil
}

func runHyprctl(ctx context.Context, args ...string) error {
	_, err := runHyprctlOutput(ctx, args...)
	return err
}

func runHyprctlOutput(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "hyprctl", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return nil, fmt.Errorf("hyprctl %v failed: %w", args, err)
		}
		return nil, fmt.Errorf("hyprctl %v failed: %w (%s)", args, err, trimmed)
	}
	return out, nil
}
