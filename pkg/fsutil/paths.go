package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

// AppName is the directory name used under the platform state and cache roots.
const AppName = "repokit"

// GetCacheDir returns the platform cache directory for repokit.
func GetCacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, AppName), nil
}

// GetStateDir returns the directory holding the source list, metadata and
// per-source data.
// On Linux: $XDG_STATE_HOME/repokit or ~/.local/state/repokit
// On macOS: ~/Library/Application Support/repokit
// On Windows: %LOCALAPPDATA%\repokit
func GetStateDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			return "", errors.New("LOCALAPPDATA environment variable not set")
		}
		return filepath.Join(localAppData, AppName), nil
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", AppName), nil
	default:
		if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
			return filepath.Join(xdg, AppName), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "state", AppName), nil
	}
}

// SourceDataDir returns <stateDir>/sources/<identifier>.
func SourceDataDir(stateDir, identifier string) string {
	return filepath.Join(stateDir, "sources", identifier)
}
