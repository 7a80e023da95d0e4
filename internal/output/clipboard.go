// Package output copies upload locations to the clipboard.
package output

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/shutter/internal/config"
)

// Clipboard writes text to the configured clipboard command's stdin.
type Clipboard struct {
	command config.CommandConfig
	logger  *slog.Logger
}

// NewClipboard constructs a clipboard writer from runtime config.
func NewClipboard(cfg config.Config, logger *slog.Logger) *Clipboard {
	return &Clipboard{command: cfg.Clipboard, logger: logger}
}

// Commit copies location to the clipboard. Empty locations and an unset
// clipboard command are no-ops.
func (c *Clipboard) Commit(ctx context.Context, location string) error {
	location = strings.TrimSpace(location)
	if location == "" || len(c.command.Argv) == 0 {
		return nil
	}

	clipboardCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := runCommandWithInput(clipboardCtx, c.command.Argv, location); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}
	if c.logger != nil {
		c.logger.Debug("upload location copied", "location", location)
	}
	return nil
}

// runCommandWithInput executes argv and optionally writes input to stdin.
func runCommandWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin for %s: %w", argv[0], err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start command %s: %w", argv[0], err)
	}

	if input != "" {
		if _, err := stdin.Write([]byte(input)); err != nil {
			_ = stdin.Close()
			_ = cmd.Wait()
			return fmt.Errorf("write stdin for %s: %w", argv[0], err)
		}
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait for %s: %w", argv[0], err)
	}
	return nil
}
