// Package config resolves, parses, validates, and defaults shutter configuration.
package config

// Config is the fully materialized runtime configuration used by shutter.
type Config struct {
	Recording RecordingConfig
	Indicator IndicatorConfig
	Clipboard CommandConfig
	Debug     DebugConfig
}

// RecordingConfig is the persisted `recording` group: hotkeys, encoder
// tunables, and the upload service.
type RecordingConfig struct {
	ImageShortcut    string
	VideoShortcut    string
	Recorder         RecorderConfig
	ServiceURL       string
	UserName         string
	MaxActiveUploads int
	AutoUpload       bool
	ImageCategory    string
	VideoCategory    string
	UploadBackend    string
	S3               S3Config
}

// RecorderConfig holds the ffmpeg capture tunables.
type RecorderConfig struct {
	MaxImageEdgeLength int
	MaxVideoEdgeLength int
	VideoFrameRate     float64
	MaxVideoLength     int
	FFmpegExecutable   string
	OutputDir          string
	Display            string
	AudioInput         string
	AudioFallback      string
}

// S3Config selects the bucket used by the s3 upload backend.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string
}

// IndicatorConfig controls visual indicator and audio cue behavior.
type IndicatorConfig struct {
	Enable            bool
	Backend           string
	DesktopAppName    string
	SoundEnable       bool
	SoundStartFile    string
	SoundStopFile     string
	SoundCompleteFile string
	SoundErrorFile    string
	ErrorTimeoutMS    int
	SuccessTimeoutMS  int
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// DebugConfig controls optional debug behavior.
type DebugConfig struct {
	KeepFailedCaptures bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

const (
	UploadBackendHTTP = "http"
	UploadBackendS3   = "s3"
)

// UploadsEnabled reports whether captures have somewhere to go.
func (r RecordingConfig) UploadsEnabled() bool {
	switch r.UploadBackend {
	case UploadBackendS3:
		return r.S3.Bucket != ""
	default:
		return r.ServiceURL != ""
	}
}
