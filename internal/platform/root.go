package platform

import (
	"errors"
	"os"
	"path/filepath"
)

// ConfigFile is the name of the per-project configuration file.
const ConfigFile = ".notesync.yaml"

// ErrConfigNotFound is returned by FindConfig when no directory up to the
// filesystem root holds a ConfigFile.
var ErrConfigNotFound = errors.New("config not found")

// FindConfig looks upwards from startDir for a ConfigFile and returns its
// absolute path.
func FindConfig(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		if hasFile(dir, ConfigFile) {
			return filepath.Join(dir, ConfigFile), nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", ErrConfigNotFound
}

func hasFile(dir, name string) bool {
	info, err := os.Stat(filepath.Join(dir, name))
	return err == nil && !info.IsDir()
}
