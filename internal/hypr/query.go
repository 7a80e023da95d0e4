package hypr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ActiveWindow contains the fields needed to frame a capture.
type ActiveWindow struct {
	Address    string     `json:"address"`
	Class      string     `json:"class"`
	Title      string     `json:"title"`
	At         [2]int     `json:"at"`
	Size       [2]int     `json:"size"`
	Monitor    int        `json:"monitor"`
	Fullscreen fullscreen `json:"fullscreen"`
}

// Monitor is one output reported by `hyprctl -j monitors`.
type Monitor struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	Focused bool    `json:"focused"`
	Scale   float64 `json:"scale"`
	X       int     `json:"x"`
	Y       int     `json:"y"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
}

// fullscreen accepts both the boolean and the numeric mode encodings that
// different Hyprland releases emit.
type fullscreen bool

func (f *fullscreen) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true":
		*f = true
		return nil
	case "false", "null":
		*f = false
		return nil
	}
	mode, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("decode fullscreen %s: %w", data, err)
	}
	*f = mode != 0
	return nil
}

// IsFullscreen reports whether the window occupies its whole monitor.
func (w ActiveWindow) IsFullscreen() bool {
	return bool(w.Fullscreen)
}

// QueryActiveWindow fetches and validates the active-window contract from hyprctl.
func QueryActiveWindow(ctx context.Context) (ActiveWindow, error) {
	output, err := runHyprctlJSON(ctx, "activewindow")
	if err != nil {
		return ActiveWindow{}, err
	}

	var window ActiveWindow
	if err := json.Unmarshal(output, &window); err != nil {
		return ActiveWindow{}, fmt.Errorf("decode hyprctl activewindow json: %w", err)
	}
	window.Address = strings.TrimSpace(window.Address)
	window.Class = strings.TrimSpace(window.Class)
	window.Title = strings.TrimSpace(window.Title)
	if window.Address == "" {
		return ActiveWindow{}, fmt.Errorf("hyprctl activewindow returned empty address")
	}
	if window.Size[0] <= 0 || window.Size[1] <= 0 {
		return ActiveWindow{}, fmt.Errorf("hyprctl activewindow returned invalid size %dx%d", window.Size[0], window.Size[1])
	}
	return window, nil
}

// QueryMonitors returns every output known to the compositor.
func QueryMonitors(ctx context.Context) ([]Monitor, error) {
	output, err := runHyprctlJSON(ctx, "monitors")
	if err != nil {
		return nil, err
	}

	var monitors []Monitor
	if err := json.Unmarshal(output, &monitors); err != nil {
		return nil, fmt.Errorf("decode hyprctl monitors json: %w", err)
	}
	for i := range monitors {
		monitors[i].Name = strings.TrimSpace(monitors[i].Name)
	}
	if len(monitors) == 0 {
		return nil, fmt.Errorf("hyprctl monitors returned no outputs")
	}
	return monitors, nil
}

// Notify sends a Hyprland notification payload.
func Notify(ctx context.Context, icon int, timeoutMS int, color string, text string) error {
	if strings.TrimSpace(color) == "" {
		color = "rgb(89b4fa)"
	}
	return runHyprctl(
		ctx,
		"--quiet",
		"dispatch",
		"notify",
		strconv.Itoa(icon),
		strconv.Itoa(timeoutMS),
		color,
		text,
	)
}

// DismissNotify dismisses active Hyprland notifications.
func DismissNotify(ctx context.Context) error {
	return runHyprctl(ctx, "--quiet", "dispatch", "dismissnotify")
}

// runHyprctlJSON executes a JSON-returning hyprctl subcommand.
func runHyprctlJSON(ctx context.Context, target string) ([]byte, error) {
	output, err := runHyprctlOutput(ctx, "-j", target)
	if err != nil {
		return nil, err
	}
	return output, nil
}
