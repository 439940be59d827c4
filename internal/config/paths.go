package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/errors"
)

// GlobalConfigDir returns the path to the global CORTEX directory.
// CORTEX_HOME wins when set; otherwise this is ~/.cortex.
//
// Returns an error if the home directory cannot be determined.
func GlobalConfigDir() (string, error) {
	if dir := os.Getenv(constants.HomeEnvVar); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, constants.CortexHome), nil
}

// ProjectConfigDir returns the relative path to the project configuration directory.
func ProjectConfigDir() string {
	return constants.CortexHome
}

// GlobalConfigPath returns the full path to the global configuration file.
func GlobalConfigPath() (string, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", fmt.Errorf("get global config path: %w", err)
	}
	return filepath.Join(dir, constants.GlobalConfigName), nil
}

// ProjectConfigPath returns the relative path to the project configuration file.
func ProjectConfigPath() string {
	return filepath.Join(ProjectConfigDir(), constants.GlobalConfigName)
}

// DatabasePath returns the store file to open: the configured path, or
// cortex.db in the global directory.
func DatabasePath(cfg *Config) (string, error) {
	if cfg != nil && cfg.Store.Path != "" {
		return cfg.Store.Path, nil
	}
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.DatabaseFileName), nil
}

// LogsPath returns the directory holding the CLI log file.
func LogsPath() (string, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.LogsDir), nil
}

// LocksPath returns the directory holding the per-occurrence lock files.
func LocksPath() (string, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.LocksDir), nil
}
