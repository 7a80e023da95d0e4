package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Recording *jsoncRecording `json:"recording,omitempty"`
	Indicator *jsoncIndicator `json:"indicator,omitempty"`

	ClipboardCmd *string     `json:"clipboard_cmd,omitempty"`
	Debug        *jsoncDebug `json:"debug,omitempty"`
}

// jsoncRecording keeps the camelCase key names of the persisted `recording` group.
type jsoncRecording struct {
	ImageShortcut    *string        `json:"imageShortcut,omitempty"`
	VideoShortcut    *string        `json:"videoShortcut,omitempty"`
	Recorder         *jsoncRecorder `json:"recorder,omitempty"`
	ServiceURL       *string        `json:"serviceUrl,omitempty"`
	UserName         *string        `json:"userName,omitempty"`
	MaxActiveUploads *int           `json:"maxActiveUploads,omitempty"`
	AutoUpload       *bool          `json:"autoUpload,omitempty"`
	ImageCategory    *string        `json:"imageCategory,omitempty"`
	VideoCategory    *string        `json:"videoCategory,omitempty"`
	UploadBackend    *string        `json:"uploadBackend,omitempty"`
	S3               *jsoncS3       `json:"s3,omitempty"`
}

type jsoncRecorder struct {
	MaxImageEdgeLength *int     `json:"maxImageEdgeLength,omitempty"`
	MaxVideoEdgeLength *int     `json:"maxVideoEdgeLength,omitempty"`
	VideoFrameRate     *float64 `json:"videoFrameRate,omitempty"`
	MaxVideoLength     *int     `json:"maxVideoLength,omitempty"`
	FFmpegExecutable   *string  `json:"ffmpegExecutable,omitempty"`
	OutputDir          *string  `json:"outputDir,omitempty"`
	Display            *string  `json:"display,omitempty"`
	AudioInput         *string  `json:"audioInput,omitempty"`
	AudioFallback      *string  `json:"audioFallback,omitempty"`
}

type jsoncS3 struct {
	Bucket   *string `json:"bucket,omitempty"`
	Region   *string `json:"region,omitempty"`
	Endpoint *string `json:"endpoint,omitempty"`
	Prefix   *string `json:"prefix,omitempty"`
}

type jsoncIndicator struct {
	Enable            *bool   `json:"enable,omitempty"`
	Backend           *string `json:"backend,omitempty"`
	DesktopAppName    *string `json:"desktop_app_name,omitempty"`
	SoundEnable       *bool   `json:"sound_enable,omitempty"`
	SoundStartFile    *string `json:"sound_start_file,omitempty"`
	SoundStopFile     *string `json:"sound_stop_file,omitempty"`
	SoundCompleteFile *string `json:"sound_complete_file,omitempty"`
	SoundErrorFile    *string `json:"sound_error_file,omitempty"`
	ErrorTimeoutMS    *int    `json:"error_timeout_ms,omitempty"`
	SuccessTimeoutMS  *int    `json:"success_timeout_ms,omitempty"`
}

type jsoncDebug struct {
	KeepFailedCaptures *bool `json:"keep_failed_captures,omitempty"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if rec := payload.Recording; rec != nil {
		setTrimmed(&cfg.Recording.ImageShortcut, rec.ImageShortcut)
		setTrimmed(&cfg.Recording.VideoShortcut, rec.VideoShortcut)
		setTrimmed(&cfg.Recording.ServiceURL, rec.ServiceURL)
		setTrimmed(&cfg.Recording.UserName, rec.UserName)
		set(&cfg.Recording.MaxActiveUploads, rec.MaxActiveUploads)
		set(&cfg.Recording.AutoUpload, rec.AutoUpload)
		setTrimmed(&cfg.Recording.ImageCategory, rec.ImageCategory)
		setTrimmed(&cfg.Recording.VideoCategory, rec.VideoCategory)
		if rec.UploadBackend != nil {
			cfg.Recording.UploadBackend = strings.ToLower(strings.TrimSpace(*rec.UploadBackend))
		}

		if r := rec.Recorder; r != nil {
			set(&cfg.Recording.Recorder.MaxImageEdgeLength, r.MaxImageEdgeLength)
			set(&cfg.Recording.Recorder.MaxVideoEdgeLength, r.MaxVideoEdgeLength)
			set(&cfg.Recording.Recorder.VideoFrameRate, r.VideoFrameRate)
			set(&cfg.Recording.Recorder.MaxVideoLength, r.MaxVideoLength)
			setTrimmed(&cfg.Recording.Recorder.FFmpegExecutable, r.FFmpegExecutable)
			if r.OutputDir != nil {
				cfg.Recording.Recorder.OutputDir = expandUserPath(*r.OutputDir)
			}
			setTrimmed(&cfg.Recording.Recorder.Display, r.Display)
			setTrimmed(&cfg.Recording.Recorder.AudioInput, r.AudioInput)
			setTrimmed(&cfg.Recording.Recorder.AudioFallback, r.AudioFallback)
		}

		if s3 := rec.S3; s3 != nil {
			setTrimmed(&cfg.Recording.S3.Bucket, s3.Bucket)
			setTrimmed(&cfg.Recording.S3.Region, s3.Region)
			setTrimmed(&cfg.Recording.S3.Endpoint, s3.Endpoint)
			setTrimmed(&cfg.Recording.S3.Prefix, s3.Prefix)
		}
	}

	if ind := payload.Indicator; ind != nil {
		set(&cfg.Indicator.Enable, ind.Enable)
		setTrimmed(&cfg.Indicator.Backend, ind.Backend)
		setTrimmed(&cfg.Indicator.DesktopAppName, ind.DesktopAppName)
		set(&cfg.Indicator.SoundEnable, ind.SoundEnable)
		setTrimmed(&cfg.Indicator.SoundStartFile, ind.SoundStartFile)
		setTrimmed(&cfg.Indicator.SoundStopFile, ind.SoundStopFile)
		setTrimmed(&cfg.Indicator.SoundCompleteFile, ind.SoundCompleteFile)
		setTrimmed(&cfg.Indicator.SoundErrorFile, ind.SoundErrorFile)
		set(&cfg.Indicator.ErrorTimeoutMS, ind.ErrorTimeoutMS)
		set(&cfg.Indicator.SuccessTimeoutMS, ind.SuccessTimeoutMS)
	}

	if payload.ClipboardCmd != nil {
		cmd, err := ParseCommand(*payload.ClipboardCmd)
		if err != nil {
			return nil, fmt.Errorf("invalid clipboard_cmd: %w", err)
		}
		cfg.Clipboard = cmd
	}

	if payload.Debug != nil {
		set(&cfg.Debug.KeepFailedCaptures, payload.Debug.KeepFailedCaptures)
	}

	return warnings, nil
}

// toJSONC renders cfg as a fully populated payload for Save.
func toJSONC(cfg Config) jsoncConfig {
	rec := cfg.Recording
	r := rec.Recorder
	ind := cfg.Indicator
	clipboard := cfg.Clipboard.Raw
	if clipboard == "" && len(cfg.Clipboard.Argv) > 0 {
		clipboard = FormatCommand(cfg.Clipboard.Argv)
	}

	return jsoncConfig{
		Recording: &jsoncRecording{
			ImageShortcut: &rec.ImageShortcut,
			VideoShortcut: &rec.VideoShortcut,
			Recorder: &jsoncRecorder{
				MaxImageEdgeLength: &r.MaxImageEdgeLength,
				MaxVideoEdgeLength: &r.MaxVideoEdgeLength,
				VideoFrameRate:     &r.VideoFrameRate,
				MaxVideoLength:     &r.MaxVideoLength,
				FFmpegExecutable:   &r.FFmpegExecutable,
				OutputDir:          &r.OutputDir,
				Display:            &r.Display,
				AudioInput:         &r.AudioInput,
				AudioFallback:      &r.AudioFallback,
			},
			ServiceURL:       &rec.ServiceURL,
			UserName:         &rec.UserName,
			MaxActiveUploads: &rec.MaxActiveUploads,
			AutoUpload:       &rec.AutoUpload,
			ImageCategory:    &rec.ImageCategory,
			VideoCategory:    &rec.VideoCategory,
			UploadBackend:    &rec.UploadBackend,
			S3: &jsoncS3{
				Bucket:   &rec.S3.Bucket,
				Region:   &rec.S3.Region,
				Endpoint: &rec.S3.Endpoint,
				Prefix:   &rec.S3.Prefix,
			},
		},
		Indicator: &jsoncIndicator{
			Enable:            &ind.Enable,
			Backend:           &ind.Backend,
			DesktopAppName:    &ind.DesktopAppName,
			SoundEnable:       &ind.SoundEnable,
			SoundStartFile:    &ind.SoundStartFile,
			SoundStopFile:     &ind.SoundStopFile,
			SoundCompleteFile: &ind.SoundCompleteFile,
			SoundErrorFile:    &ind.SoundErrorFile,
			ErrorTimeoutMS:    &ind.ErrorTimeoutMS,
			SuccessTimeoutMS:  &ind.SuccessTimeoutMS,
		},
		ClipboardCmd: &clipboard,
		Debug: &jsoncDebug{
			KeepFailedCaptures: &cfg.Debug.KeepFailedCaptures,
		},
	}
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setTrimmed(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false
	lineComment := false
	blockComment := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if lineComment {
			if ch == '\n' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			if ch == '\r' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
			continue
		}

		if blockComment {
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				blockComment = false
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
			continue
		}

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(content) {
			next := content[i+1]
			if next == '/' {
				lineComment = true
				out.WriteString("  ")
				i++
				continue
			}
			if next == '*' {
				blockComment = true
				out.WriteString("  ")
				i++
				continue
			}
		}

		out.WriteByte(ch)
	}

	if blockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				continue
			}
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
