package config

import (
	"errors"
	"fmt"
	"os"
)

// Loaded is the resolved configuration plus where it came from. Warnings
// are non-fatal and meant for the user.
type Loaded struct {
	Path            string
	CredentialsPath string
	Config          Config
	Warnings        []Warning
	Exists          bool
}

func (l *Loaded) warn(format string, args ...any) {
	l.Warnings = append(l.Warnings, Warning{Message: fmt.Sprintf(format, args...)})
}

// Load reads the config at explicitPath (or the resolved default) over the
// built-in defaults. A missing file is not an error.
func Load(explicitPath string) (Loaded, error) {
	path, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}
	loaded := Loaded{
		Path:            path,
		CredentialsPath: CredentialsPath(path),
		Config:          Default(),
	}

	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.warn("config file %q not found; using defaults", path)
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", path, err)
	default:
		cfg, warnings, err := Parse(string(content), loaded.Config)
		if err != nil {
			return Loaded{}, fmt.Errorf("parse config %q: %w", path, err)
		}
		loaded.Config = cfg
		loaded.Exists = true
		loaded.Warnings = append(loaded.Warnings, warnings...)
	}

	loaded.checkCredentialsMode()
	return loaded, nil
}

// checkCredentialsMode flags a credentials file that other users can read.
func (l *Loaded) checkCredentialsMode() {
	info, err := os.Stat(l.CredentialsPath)
	if err != nil {
		return
	}
	if mode := info.Mode().Perm(); mode&0o077 != 0 {
		l.warn("credentials file %q is accessible by other users (mode %04o); run chmod 600", l.CredentialsPath, mode)
	}
}
