package config

import (
	"os"
	"path/filepath"
)

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	clipboard := "wl-copy --trim-newline"

	return Config{
		Recording: RecordingConfig{
			ImageShortcut: "",
			VideoShortcut: "",
			Recorder: RecorderConfig{
				MaxImageEdgeLength: 0,
				MaxVideoEdgeLength: 1920,
				VideoFrameRate:     30,
				MaxVideoLength:     300,
				FFmpegExecutable:   "ffmpeg",
				OutputDir:          defaultOutputDir(),
				AudioInput:         "",
				AudioFallback:      "default",
			},
			ServiceURL:       "",
			UserName:         "",
			MaxActiveUploads: 1,
			AutoUpload:       true,
			ImageCategory:    "image",
			VideoCategory:    "video",
			UploadBackend:    UploadBackendHTTP,
		},
		Indicator: IndicatorConfig{
			Enable:           true,
			Backend:          "hypr",
			DesktopAppName:   "shutter",
			SoundEnable:      true,
			ErrorTimeoutMS:   1600,
			SuccessTimeoutMS: 2400,
		},
		Clipboard: mustParseCommand(clipboard),
		Debug:     DebugConfig{},
	}
}

func defaultOutputDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), "shutter")
	}
	return filepath.Join(home, "Pictures", "shutter")
}
