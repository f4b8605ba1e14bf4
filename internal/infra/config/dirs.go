package config

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

const appName = "audiowarden"

// ErrNoRuntimeDir is returned when neither RUNTIME_DIRECTORY nor XDG_RUNTIME_DIR is set.
var ErrNoRuntimeDir = errors.New("no runtime directory: set RUNTIME_DIRECTORY or XDG_RUNTIME_DIR")

// ConfigDir returns the directory holding the blocklist and config file.
// Order: $CONFIGURATION_DIRECTORY (systemd), $XDG_CONFIG_HOME/audiowarden, ~/.config/audiowarden.
func ConfigDir() (string, error) {
	return resolveDir("CONFIGURATION_DIRECTORY", "XDG_CONFIG_HOME", ".config")
}

// CacheDir returns the directory holding the Spotify sync cache.
// Order: $CACHE_DIRECTORY (systemd), $XDG_CACHE_HOME/audiowarden, ~/.cache/audiowarden.
func CacheDir() (string, error) {
	return resolveDir("CACHE_DIRECTORY", "XDG_CACHE_HOME", ".cache")
}

// RuntimeDir returns the directory holding the command socket.
// Order: $RUNTIME_DIRECTORY (systemd), $XDG_RUNTIME_DIR/audiowarden.
// There is no home directory fallback.
func RuntimeDir() (string, error) {
	if dir := os.Getenv("RUNTIME_DIRECTORY"); dir != "" {
		return dir, nil
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, appName), nil
	}
	return "", ErrNoRuntimeDir
}

func resolveDir(systemdEnv, xdgEnv, homeSubdir string) (string, error) {
	if dir := os.Getenv(systemdEnv); dir != "" {
		return dir, nil
	}
	if dir := os.Getenv(xdgEnv); dir != "" {
		return filepath.Join(dir, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve home directory (%s and %s are unset)", systemdEnv, xdgEnv)
	}
	return filepath.Join(home, homeSubdir, appName), nil
}
