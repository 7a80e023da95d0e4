package apperror

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindsMatchThroughWrapping(t *testing.T) {
	err := fmt.Errorf("start capture: %w", Invariant.SetMessage("recorder already active"))

	require.True(t, errors.Is(err, Invariant))
	require.True(t, IsInvariant(err))
	require.False(t, errors.Is(err, Configuration))
	require.False(t, errors.Is(err, Remote))
	require.Contains(t, err.Error(), "recorder already active")
}

func TestWrapKeepsCause(t *testing.T) {
	err := Configuration.SetMessage("probe active window").Wrap(os.ErrNotExist)

	require.True(t, errors.Is(err, Configuration))
	require.True(t, errors.Is(err, os.ErrNotExist))
	require.Equal(t, "probe active window: "+os.ErrNotExist.Error(), err.Error())
}

func TestSentinelsAreUnchanged(t *testing.T) {
	_ = Remote.SetMessage("upload failed")
	require.Equal(t, "remote fault", Remote.Error())
}
