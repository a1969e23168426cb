package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".minder"

// Paths holds resolved filesystem paths for Minder data.
type Paths struct {
	Base     string // ~/.minder
	Config   string // ~/.minder/config.yaml
	Database string // ~/.minder/data/minder.db
	Logs     string // ~/.minder/logs
	Data     string // ~/.minder/data
}

// ResolvePaths computes all standard paths from the home directory.
// If MINDER_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("MINDER_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:     base,
		Config:   filepath.Join(base, "config.yaml"),
		Database: filepath.Join(base, "data", "minder.db"),
		Logs:     filepath.Join(base, "logs"),
		Data:     filepath.Join(base, "data"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	dirs := []string{p.Base, p.Logs, p.Data}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// DatabasePath returns the configured database path, falling back to the
// standard location.
func DatabasePath(cfg Config, paths Paths) string {
	if cfg.Storage.Path != "" {
		return cfg.Storage.Path
	}
	return paths.Database
}
