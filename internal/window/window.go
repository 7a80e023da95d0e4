// Package window snapshots the active window at capture start.
package window

import (
	"context"
	"fmt"
	"math"

	"github.com/rbright/shutter/internal/apperror"
	"github.com/rbright/shutter/internal/hypr"
)

// BaseDPI is the logical DPI of an unscaled output.
const BaseDPI = 96.0

// Rect is a window rectangle in logical (compositor layout) pixels.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Point is a position in layout pixels.
type Point struct {
	X int
	Y int
}

// Info is an immutable snapshot of the active window.
type Info struct {
	DPI        float64
	Fullscreen bool
	Geometry   Rect
	Monitor    string
	// Origin is the monitor's top-left corner in layout pixels.
	Origin Point
	Class  string
	Title  string
}

// Scale returns the physical-to-logical pixel ratio for the snapshot.
func (i Info) Scale() float64 {
	if i.DPI <= 0 {
		return 1
	}
	return i.DPI / BaseDPI
}

// Physical returns the geometry converted to physical pixels. Offsets are
// scaled from the monitor origin so monitors with other scales do not shift
// the grab.
func (i Info) Physical() Rect {
	scale := i.Scale()
	return Rect{
		X:      i.Origin.X + int(math.Round(float64(i.Geometry.X-i.Origin.X)*scale)),
		Y:      i.Origin.Y + int(math.Round(float64(i.Geometry.Y-i.Origin.Y)*scale)),
		Width:  int(math.Round(float64(i.Geometry.Width) * scale)),
		Height: int(math.Round(float64(i.Geometry.Height) * scale)),
	}
}

// Prober returns a snapshot of the currently active window.
type Prober interface {
	Probe(ctx context.Context) (Info, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) (Info, error)

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context) (Info, error) {
	return f(ctx)
}

// HyprProber queries Hyprland for the active window and its monitor scale.
type HyprProber struct{}

// Probe returns the active window snapshot. Every failure is a configuration
// fault: there is nothing to capture and the caller stays idle.
func (HyprProber) Probe(ctx context.Context) (Info, error) {
	active, err := hypr.QueryActiveWindow(ctx)
	if err != nil {
		return Info{}, apperror.Configuration.SetMessage("probe active window").Wrap(err)
	}
	monitors, err := hypr.QueryMonitors(ctx)
	if err != nil {
		return Info{}, apperror.Configuration.SetMessage("probe monitors").Wrap(err)
	}

	mon, ok := monitorByID(monitors, active.Monitor)
	if !ok {
		return Info{}, apperror.Configuration.SetMessage(fmt.Sprintf("active window on unknown monitor %d", active.Monitor))
	}
	scale := mon.Scale
	if scale <= 0 {
		scale = 1
	}

	return Info{
		DPI:        BaseDPI * scale,
		Fullscreen: active.IsFullscreen(),
		Geometry: Rect{
			X:      active.At[0],
			Y:      active.At[1],
			Width:  active.Size[0],
			Height: active.Size[1],
		},
		Monitor: mon.Name,
		Origin:  Point{X: mon.X, Y: mon.Y},
		Class:   active.Class,
		Title:   active.Title,
	}, nil
}

func monitorByID(monitors []hypr.Monitor, id int) (hypr.Monitor, bool) {
	for _, mon := range monitors {
		if mon.ID == id {
			return mon, true
		}
	}
	return hypr.Monitor{}, false
}
