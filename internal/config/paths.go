package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// HomeEnv overrides the directory holding config.toml and the audit log.
const HomeEnv = "SAVEPATH_HOME"

func DefaultHome() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".savepath"
	}
	return filepath.Join(home, ".savepath")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultHome(), "config.toml")
}

func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", errors.New("empty path")
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return home, nil
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
	}
	return path, nil
}

// ResolveStorageRoot expands and absolutizes the configured root.
func ResolveStorageRoot(cfg Config) (string, error) {
	return resolveAbs(cfg.Storage.Root)
}

// AuditPath returns where audit events go, or "" when auditing is off.
func AuditPath(cfg Config, configPath string) (string, error) {
	if !cfg.Logging.Audit {
		return "", nil
	}
	if cfg.Logging.Path != "" {
		return resolveAbs(cfg.Logging.Path)
	}
	return filepath.Join(filepath.Dir(configPath), "audit.log"), nil
}

func resolveAbs(path string) (string, error) {
	expanded, err := ExpandPath(path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}
