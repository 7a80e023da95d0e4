package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateRejectsInvalidFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "bad image shortcut", mutate: func(c *Config) { c.Recording.ImageShortcut = "Hyper+S" }, wantErr: "imageShortcut"},
		{name: "bad video shortcut", mutate: func(c *Config) { c.Recording.VideoShortcut = "Super+" }, wantErr: "videoShortcut"},
		{name: "duplicate shortcuts", mutate: func(c *Config) {
			c.Recording.ImageShortcut = "super+s"
			c.Recording.VideoShortcut = "Super+S"
		}, wantErr: "must differ"},
		{name: "negative image edge", mutate: func(c *Config) { c.Recording.Recorder.MaxImageEdgeLength = -1 }, wantErr: "maxImageEdgeLength"},
		{name: "negative video edge", mutate: func(c *Config) { c.Recording.Recorder.MaxVideoEdgeLength = -1 }, wantErr: "maxVideoEdgeLength"},
		{name: "zero frame rate", mutate: func(c *Config) { c.Recording.Recorder.VideoFrameRate = 0 }, wantErr: "videoFrameRate"},
		{name: "negative length", mutate: func(c *Config) { c.Recording.Recorder.MaxVideoLength = -5 }, wantErr: "maxVideoLength"},
		{name: "empty ffmpeg", mutate: func(c *Config) { c.Recording.Recorder.FFmpegExecutable = " " }, wantErr: "ffmpegExecutable"},
		{name: "empty output dir", mutate: func(c *Config) { c.Recording.Recorder.OutputDir = "" }, wantErr: "outputDir"},
		{name: "trailing slash url", mutate: func(c *Config) { c.Recording.ServiceURL = "https://share.example.com/" }, wantErr: "serviceUrl"},
		{name: "non http url", mutate: func(c *Config) { c.Recording.ServiceURL = "ftp://share.example.com" }, wantErr: "serviceUrl"},
		{name: "zero cap", mutate: func(c *Config) { c.Recording.MaxActiveUploads = 0 }, wantErr: "maxActiveUploads"},
		{name: "empty category", mutate: func(c *Config) { c.Recording.VideoCategory = "" }, wantErr: "videoCategory"},
		{name: "unknown backend", mutate: func(c *Config) { c.Recording.UploadBackend = "ftp" }, wantErr: "uploadBackend"},
		{name: "s3 without bucket", mutate: func(c *Config) { c.Recording.UploadBackend = UploadBackendS3 }, wantErr: "s3.bucket"},
		{name: "unknown indicator backend", mutate: func(c *Config) { c.Indicator.Backend = "osd" }, wantErr: "indicator.backend"},
		{name: "negative error timeout", mutate: func(c *Config) { c.Indicator.ErrorTimeoutMS = -1 }, wantErr: "error_timeout"},
		{name: "empty clipboard argv", mutate: func(c *Config) { c.Clipboard = CommandConfig{Raw: "#", Argv: nil} }, wantErr: "clipboard_cmd"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateAcceptsServiceURLs(t *testing.T) {
	for _, raw := range []string{"", "http://127.0.0.1:8080", "https://share.example.com/api/v1"} {
		cfg := Default()
		cfg.Recording.ServiceURL = raw
		_, err := Validate(cfg)
		require.NoError(t, err, raw)
	}
}

func TestValidateWarnsOnMissingExecutable(t *testing.T) {
	cfg := Default()
	cfg.Recording.Recorder.FFmpegExecutable = "/definitely/missing/ffmpeg"

	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "not executable")
}

func TestUploadsEnabled(t *testing.T) {
	cfg := Default().Recording
	require.False(t, cfg.UploadsEnabled())

	cfg.ServiceURL = "https://share.example.com"
	require.True(t, cfg.UploadsEnabled())

	cfg.UploadBackend = UploadBackendS3
	require.False(t, cfg.UploadsEnabled())
	cfg.S3.Bucket = "captures"
	require.True(t, cfg.UploadsEnabled())
}
