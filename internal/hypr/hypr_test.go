package hypr

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueryActiveWindowAndMonitors(t *testing.T) {
	installHyprctlStub(t, `
if [[ "${1:-}" == "-j" && "${2:-}" == "activewindow" ]]; then
  echo '{"address":" 0xabc ","class":" kitty ","title":"shell","at":[100,50],"size":[800,600],"monitor":1,"fullscreen":0}'
  exit 0
fi
if [[ "${1:-}" == "-j" && "${2:-}" == "monitors" ]]; then
  echo '[{"id":0,"name":"HDMI-A-1","focused":false,"scale":1},{"id":1,"name":" DP-1 ","focused":true,"scale":1.5}]'
  exit 0
fi
exit 1
`)

	window, err := QueryActiveWindow(context.Background())
	require.NoError(t, err)
	require.Equal(t, "0xabc", window.Address)
	require.Equal(t, "kitty", window.Class)
	require.Equal(t, [2]int{100, 50}, window.At)
	require.Equal(t, [2]int{800, 600}, window.Size)
	require.Equal(t, 1, window.Monitor)
	require.False(t, window.IsFullscreen())

	monitors, err := QueryMonitors(context.Background())
	require.NoError(t, err)
	require.Len(t, monitors, 2)
	require.Equal(t, "DP-1", monitors[1].Name)
	require.InDelta(t, 1.5, monitors[1].Scale, 0.0001)
}

func TestQueryActiveWindowFullscreenEncodings(t *testing.T) {
	for _, raw := range []string{"true", "2"} {
		t.Run(raw, func(t *testing.T) {
			installHyprctlStub(t, `echo '{"address":"0x1","at":[0,0],"size":[1920,1080],"fullscreen":`+raw+`}'`)

			window, err := QueryActiveWindow(context.Background())
			require.NoError(t, err)
			require.True(t, window.IsFullscreen())
		})
	}
}

func TestQueryActiveWindowRejectsEmptyAddress(t *testing.T) {
	installHyprctlStub(t, `
if [[ "${1:-}" == "-j" && "${2:-}" == "activewindow" ]]; then
  echo '{}'
  exit 0
fi
echo '[]'
`)

	_, err := QueryActiveWindow(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty address")
}

func TestQueryMonitorsRejectsEmptyList(t *testing.T) {
	installHyprctlStub(t, `echo '[]'`)

	_, err := QueryMonitors(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "no outputs")
}

func TestBindAndUnbindUseKeyword(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "hypr-args.log")
	t.Setenv("HYPR_ARGS_FILE", argsFile)
	installHyprctlStub(t, `
printf '%s\n' "$*" >> "${HYPR_ARGS_FILE}"
echo ok
`)

	binds := CLIKeybinds{}
	require.NoError(t, binds.Bind(context.Background(), "SUPER SHIFT", "S", "/usr/bin/shutter trigger image"))
	require.NoError(t, binds.Unbind(context.Background(), "SUPER SHIFT", "S"))

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Equal(t, []string{
		"keyword bind SUPER SHIFT,S,exec,/usr/bin/shutter trigger image",
		"keyword unbind SUPER SHIFT,S",
	}, lines)
}

func TestBindRejectedKeywordIsAnError(t *testing.T) {
	installHyprctlStub(t, `echo 'Invalid dispatcher'`)

	err := CLIKeybinds{}.Bind(context.Background(), "SUPER", "F13", "shutter trigger video")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Invalid dispatcher")
}

func TestBindRequiresKeyAndCommand(t *testing.T) {
	require.Error(t, CLIKeybinds{}.Bind(context.Background(), "SUPER", " ", "x"))
	require.Error(t, CLIKeybinds{}.Bind(context.Background(), "SUPER", "S", " "))
	require.Error(t, CLIKeybinds{}.Unbind(context.Background(), "SUPER", ""))
}

func TestNotifyAndDismissUseHyprctlDispatch(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "hypr-args.log")
	t.Setenv("HYPR_ARGS_FILE", argsFile)
	installHyprctlStub(t, `
printf '%s\n' "$*" >> "${HYPR_ARGS_FILE}"
`)

	err := Notify(context.Background(), 3, 1200, "", "Upload failed")
	require.NoError(t, err)

	err = DismissNotify(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "--quiet dispatch notify 3 1200 rgb(89b4fa) Upload failed", lines[0])
	require.Equal(t, "--quiet dispatch dismissnotify", lines[1])
}

func TestHyprctlFailureIncludesCombinedOutput(t *testing.T) {
	installHyprctlStub(t, `
echo 'boom from hyprctl' >&2
exit 1
`)

	_, err := QueryActiveWindow(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom from hyprctl")
}

func installHyprctlStub(t *testing.T, body string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "hyprctl")
	script := "#!/usr/bin/env bash\nset -euo pipefail\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
}
