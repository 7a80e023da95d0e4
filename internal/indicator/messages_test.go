package indicator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveLocaleDefaultsToEnglish(t *testing.T) {
	require.Equal(t, localeEnglish, resolveLocale("en_US.UTF-8"))
	require.Equal(t, localeEnglish, resolveLocale("fr_FR.UTF-8"))
}

func TestIndicatorMessagesEnglish(t *testing.T) {
	msg := indicatorMessages(localeEnglish)
	require.Contains(t, msg.recording, "Recording")
	require.Equal(t, "Saved", msg.saved)
	require.Equal(t, "Uploaded", msg.uploaded)
	require.Equal(t, "Capture failed", msg.errorText)
}
