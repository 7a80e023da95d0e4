package recorder

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rbright/shutter/internal/window"
)

// captureJob is everything needed to render one ffmpeg invocation.
type captureJob struct {
	Type        RecordType
	Window      window.Info
	Config      Config
	AudioSource string
	OutputPath  string
}

// buildArgs renders the ffmpeg argv (without the executable) for job.
func buildArgs(job captureJob) ([]string, error) {
	rect := job.Window.Physical()
	if rect.Width <= 0 || rect.Height <= 0 {
		return nil, fmt.Errorf("invalid capture geometry %dx%d", rect.Width, rect.Height)
	}
	if strings.TrimSpace(job.OutputPath) == "" {
		return nil, fmt.Errorf("output path must not be empty")
	}

	args := []string{"-hide_banner", "-loglevel", "error", "-nostats", "-y"}

	grab := []string{"-f", "x11grab"}
	if job.Type == Image || job.Window.Fullscreen {
		grab = append(grab, "-draw_mouse", "0")
	}

	switch job.Type {
	case Image:
		args = append(args, grab...)
		args = append(args,
			"-video_size", fmt.Sprintf("%dx%d", rect.Width, rect.Height),
			"-i", grabTarget(job.Config.Display, rect),
			"-frames:v", "1",
		)
		if w, h, scaled := scaledSize(rect.Width, rect.Height, job.Config.MaxImageEdgeLength, false); scaled {
			args = append(args, "-vf", scaleFilter(w, h))
		}
		args = append(args, "-update", "1", job.OutputPath)
	case Video:
		rate := job.Config.VideoFrameRate
		if rate <= 0 {
			rate = 30
		}
		args = append(args, grab...)
		args = append(args,
			"-framerate", formatRate(rate),
			"-video_size", fmt.Sprintf("%dx%d", rect.Width, rect.Height),
			"-i", grabTarget(job.Config.Display, rect),
		)
		if job.AudioSource != "" {
			args = append(args, "-f", "pulse", "-i", job.AudioSource)
		}
		if job.Config.MaxVideoLength > 0 {
			args = append(args, "-t", strconv.Itoa(job.Config.MaxVideoLength))
		}
		w, h, _ := scaledSize(rect.Width, rect.Height, job.Config.MaxVideoEdgeLength, true)
		args = append(args,
			"-vf", scaleFilter(w, h),
			"-c:v", "libx264",
			"-preset", "veryfast",
			"-pix_fmt", "yuv420p",
		)
		if job.AudioSource != "" {
			args = append(args, "-c:a", "aac", "-b:a", "128k")
		}
		args = append(args, "-movflags", "+faststart", job.OutputPath)
	default:
		return nil, fmt.Errorf("unknown record type %q", job.Type)
	}

	return args, nil
}

// scaledSize fits width x height into maxEdge on the longest side, keeping the
// aspect ratio. A non-positive maxEdge disables downscaling. When even is set
// both dimensions are rounded down to even values for yuv420p.
func scaledSize(width, height, maxEdge int, even bool) (int, int, bool) {
	w, h := width, height
	scaled := false

	longest := w
	if h > longest {
		longest = h
	}
	if maxEdge > 0 && longest > maxEdge {
		factor := float64(maxEdge) / float64(longest)
		w = int(math.Round(float64(w) * factor))
		h = int(math.Round(float64(h) * factor))
		scaled = true
	}

	if even {
		w -= w % 2
		h -= h % 2
	}
	if w < 2 {
		w = 2
	}
	if h < 2 {
		h = 2
	}
	return w, h, scaled || w != width || h != height
}

func scaleFilter(w, h int) string {
	return fmt.Sprintf("scale=%d:%d:flags=lanczos", w, h)
}

func grabTarget(display string, rect window.Rect) string {
	display = strings.TrimSpace(display)
	if display == "" {
		display = strings.TrimSpace(os.Getenv("DISPLAY"))
	}
	if display == "" {
		display = ":0"
	}
	return fmt.Sprintf("%s+%d,%d", display, rect.X, rect.Y)
}

func formatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', -1, 64)
}
