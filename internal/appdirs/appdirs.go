// Package appdirs resolves where syntaxpilot keeps its config file and its
// state (audit log). Both can be pinned with environment variables, which
// the tests and containerized deployments rely on.
package appdirs

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const AppName = "syntaxpilot"

const (
	ConfigDirEnv = "SYNTAXPILOT_CONFIG_DIR"
	StateDirEnv  = "SYNTAXPILOT_STATE_DIR"
)

type dirKind int

const (
	kindConfig dirKind = iota
	kindState
)

func platformBase(kind dirKind) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not resolve home directory: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support"), nil
	case "windows":
		envName, fallback := "APPDATA", filepath.Join(home, "AppData", "Roaming")
		if kind == kindState {
			envName, fallback = "LOCALAPPDATA", filepath.Join(home, "AppData", "Local")
		}
		if v := os.Getenv(envName); v != "" {
			return v, nil
		}
		return fallback, nil
	default:
		envName, fallback := "XDG_CONFIG_HOME", filepath.Join(home, ".config")
		if kind == kindState {
			envName, fallback = "XDG_STATE_HOME", filepath.Join(home, ".local", "state")
		}
		if v := os.Getenv(envName); v != "" {
			return v, nil
		}
		return fallback, nil
	}
}

func ConfigDir() (string, error) {
	if pinned := strings.TrimSpace(os.Getenv(ConfigDirEnv)); pinned != "" {
		return pinned, nil
	}
	base, err := platformBase(kindConfig)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, AppName), nil
}

func ConfigFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

func EnsureConfigDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return dir, ensurePrivateDir(dir, "config")
}

func StateDir() (string, error) {
	if pinned := strings.TrimSpace(os.Getenv(StateDirEnv)); pinned != "" {
		return pinned, nil
	}
	base, err := platformBase(kindState)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, AppName, "state"), nil
}

func EnsureStateDir() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return dir, ensurePrivateDir(dir, "state")
}

func StateFilePath(name string) (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func ensurePrivateDir(dir string, label string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("could not create %s dir: %w", label, err)
	}
	if err := os.Chmod(dir, 0o700); err != nil {
		return fmt.Errorf("could not secure %s dir permissions: %w", label, err)
	}
	return nil
}
