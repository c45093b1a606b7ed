// Package config provides configuration utilities for the application.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// AppName names the configuration and data directories.
const AppName = "onething"

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = home + path[1:]
		}
	}

	return filepath.Clean(os.ExpandEnv(path))
}

// DefaultConfigDir is where config.yaml is looked up.
func DefaultConfigDir() string {
	return ExpandPath(filepath.Join("~", ".config", AppName))
}

// DefaultDatabasePath is the SQLite file used when database.path is unset.
func DefaultDatabasePath() string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, AppName, AppName+".db")
	}
	return ExpandPath(filepath.Join("~", ".local", "share", AppName, AppName+".db"))
}

// EnsureDir creates the parent directory of path.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o750)
}
