package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// StoragePaths contains paths for application storage.
type StoragePaths struct {
	DatabasePath string
	ContentPath  string
}

// DefaultStoragePaths returns storage paths under XDG_STATE_HOME.
func DefaultStoragePaths() StoragePaths {
	return StoragePaths{
		DatabasePath: filepath.Join(xdg.StateHome, "steward", "conversations.db"),
		ContentPath:  filepath.Join(xdg.StateHome, "steward", "conversations"),
	}
}

// UserConfigPath returns the user configuration file path.
func UserConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "steward", "config.json")
}

// ProjectConfigName is the per-project configuration file looked up in the
// project directory.
const ProjectConfigName = ".steward.json"

// DefaultLogPath returns the log file path under XDG_STATE_HOME.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "steward", "steward.log")
}
