package indicator

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const (
	notificationsDest  = "org.freedesktop.Notifications"
	notificationsPath  = "/org/freedesktop/Notifications"
	notificationsIface = "org.freedesktop.Notifications"
)

// urgency is the freedesktop urgency hint byte.
type urgency byte

const (
	urgencyLow urgency = iota
	urgencyNormal
	urgencyCritical
)

// urgencyForIcon maps hyprctl notify icons onto freedesktop urgency.
func urgencyForIcon(icon int) urgency {
	if icon == 3 {
		return urgencyCritical
	}
	return urgencyNormal
}

// desktopNotification is one Notify call. ReplaceID 0 creates a new bubble.
type desktopNotification struct {
	AppName   string
	ReplaceID uint32
	Summary   string
	Urgency   urgency
	TimeoutMS int
}

// args renders the busctl argument list for the Notify signature
// `susssasa{sv}i`, carrying the urgency as the only hint.
func (n desktopNotification) args() []string {
	return []string{
		"Notify",
		"susssasa{sv}i",
		n.AppName,
		strconv.FormatUint(uint64(n.ReplaceID), 10),
		"",
		n.Summary,
		"",
		"0",
		"1", "urgency", "y", strconv.Itoa(int(n.Urgency)),
		strconv.Itoa(n.TimeoutMS),
	}
}

// desktopNotify sends a freedesktop notification and returns the ID the
// server assigned.
func desktopNotify(ctx context.Context, n desktopNotification) (uint32, error) {
	out, err := busctl(ctx, n.args()...)
	if err != nil {
		return 0, fmt.Errorf("desktop notify failed: %w", err)
	}
	return parseNotificationID(out)
}

// desktopDismiss closes the notification with the given ID.
func desktopDismiss(ctx context.Context, id uint32) error {
	if _, err := busctl(ctx, "CloseNotification", "u", strconv.FormatUint(uint64(id), 10)); err != nil {
		return fmt.Errorf("desktop dismiss failed: %w", err)
	}
	return nil
}

// parseNotificationID reads busctl's `u <id>` reply.
func parseNotificationID(out string) (uint32, error) {
	fields := strings.Fields(out)
	if len(fields) < 2 || fields[0] != "u" {
		return 0, fmt.Errorf("desktop notify invalid response: %q", out)
	}
	value, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("desktop notify parse id %q: %w", fields[1], err)
	}
	return uint32(value), nil
}

func busctl(ctx context.Context, method ...string) (string, error) {
	args := append([]string{"--user", "call", notificationsDest, notificationsPath, notificationsIface}, method...)
	out, err := exec.CommandContext(ctx, "busctl", args...).CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		if trimmed == "" {
			return "", err
		}
		return "", fmt.Errorf("%w (%s)", err, trimmed)
	}
	return trimmed, nil
}
