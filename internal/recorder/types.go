// Package recorder drives the external ffmpeg process for one capture at a time.
package recorder

// RecordType selects the capture codepath.
type RecordType string

const (
	Image RecordType = "image"
	Video RecordType = "video"
)

// MimeType is the media type of the artifact produced for t.
func (t RecordType) MimeType() string {
	if t == Video {
		return "video/mp4"
	}
	return "image/png"
}

// Extension is the output file extension for t, without the dot.
func (t RecordType) Extension() string {
	if t == Video {
		return "mp4"
	}
	return "png"
}

// Config holds the encoder tunables.
type Config struct {
	MaxImageEdgeLength int
	MaxVideoEdgeLength int
	VideoFrameRate     float64
	MaxVideoLength     int
	FFmpegExecutable   string
	OutputDir          string
	Display            string
	KeepFailed         bool
}

// Artifact is the file produced by a successful capture.
type Artifact struct {
	Path     string
	MimeType string
	Type     RecordType
	Size     int64
}
