package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Platform identifiers.
const (
	platformLinux  = "linux"
	platformDarwin = "darwin"
)

// appName names the application directory used across all platforms.
const appName = "picdock"

// configFileName is the encrypted JSON config file written under DefaultDataDir.
const configFileName = "config.dat"

// keyFileName is the persisted AES key backing get_or_create_secure_key.
const keyFileName = "secure.key"

// DefaultDataDir returns the platform-specific directory for application
// data (config.dat, history.db, the secure key).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxDataDir(home)
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".local", "share", appName)
	}
}

func linuxDataDir(home string) string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, ".local", "share", appName)
}

// DefaultConfigPath returns DefaultDataDir/config.dat.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDataDir(), configFileName)
}

// DefaultKeyPath returns DefaultDataDir/secure.key.
func DefaultKeyPath() string {
	return filepath.Join(DefaultDataDir(), keyFileName)
}

// DefaultHistoryPath returns DefaultDataDir/history.db.
func DefaultHistoryPath() string {
	return filepath.Join(DefaultDataDir(), "history.db")
}

// LegacyIndexPath returns the pre-SQL history index path migrated on first run.
func LegacyIndexPath() string {
	return filepath.Join(DefaultDataDir(), ".history", "index.dat")
}
