package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePathPrecedence(t *testing.T) {
	explicit := "/tmp/custom.jsonc"
	resolved, err := ResolvePath(explicit)
	require.NoError(t, err)
	require.Equal(t, explicit, resolved)

	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(xdg, "shutter", "config.jsonc"), resolved)

	t.Setenv("XDG_CONFIG_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".config", "shutter", "config.jsonc"), resolved)
}

func TestCredentialsPathSitsBesideConfig(t *testing.T) {
	require.Equal(t, "/etc/shutter/credentials.env", CredentialsPath("/etc/shutter/config.jsonc"))
}

func TestLoadMissingConfigUsesDefaultsWithWarning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.jsonc")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, loaded.Path)
	require.False(t, loaded.Exists)
	require.Equal(t, Default(), loaded.Config)
	require.NotEmpty(t, loaded.Warnings)
	require.Contains(t, loaded.Warnings[0].Message, "not found")
}

func TestLoadExistingJSONCParsesAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.jsonc")
	contents := `
{
  // persisted by the daemon
  "recording": {
    "imageShortcut": "Super+Shift+S",
    "videoShortcut": "Super+Shift+R",
    "recorder": {
      "maxImageEdgeLength": 2048,
      "videoFrameRate": 60,
    },
    "serviceUrl": "https://share.example.com",
    "userName": "ada",
  },
}
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Equal(t, path, loaded.Path)
	require.Equal(t, "Super+Shift+S", loaded.Config.Recording.ImageShortcut)
	require.Equal(t, "Super+Shift+R", loaded.Config.Recording.VideoShortcut)
	require.Equal(t, 2048, loaded.Config.Recording.Recorder.MaxImageEdgeLength)
	require.Equal(t, 60.0, loaded.Config.Recording.Recorder.VideoFrameRate)
	require.Equal(t, 1920, loaded.Config.Recording.Recorder.MaxVideoEdgeLength)
	require.Equal(t, "https://share.example.com", loaded.Config.Recording.ServiceURL)
	require.Equal(t, "ada", loaded.Config.Recording.UserName)
	require.True(t, loaded.Config.Recording.UploadsEnabled())
}

func TestLoadParseErrorIncludesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jsonc")
	require.NoError(t, os.WriteFile(path, []byte("{ not-json }"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse config")
	require.Contains(t, err.Error(), path)
}

func TestLoadRejectsNonObjectContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.jsonc")
	require.NoError(t, os.WriteFile(path, []byte("serviceUrl = https://x\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "JSONC object")
}

func TestLoadWarnsOnSharedCredentialsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.jsonc")
	credentials := filepath.Join(dir, "credentials.env")
	require.NoError(t, os.WriteFile(credentials, []byte("SHUTTER_UPLOAD_PASSWORD=s3cret\n"), 0o644))
	require.NoError(t, os.Chmod(credentials, 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, credentials, loaded.CredentialsPath)
	require.Len(t, loaded.Warnings, 2)
	require.Contains(t, loaded.Warnings[1].Message, "mode 0644")

	require.NoError(t, os.Chmod(credentials, 0o600))
	loaded, err = Load(path)
	require.NoError(t, err)
	require.Len(t, loaded.Warnings, 1)
	require.Contains(t, loaded.Warnings[0].Message, "not found")
}

func TestExpandUserPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.Equal(t, filepath.Join(home, "Videos"), expandUserPath(" ~/Videos "))
	require.Equal(t, home, expandUserPath("~"))
	require.Equal(t, "/abs/dir", expandUserPath("/abs/dir"))
}
