// Package version carries build metadata injected with -ldflags.
package version

import "runtime"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders the metadata for `shutter version`.
func String() string {
	return "shutter " + Version + " (commit=" + Commit + ", date=" + Date + ", go=" + runtime.Version() + ", " + runtime.GOOS + "/" + runtime.GOARCH + ")"
}
