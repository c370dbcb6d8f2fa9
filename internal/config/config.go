package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"savepath/internal/fsutil"
)

// Ensure loads path, writing the default document first when the file does
// not exist yet. A file that exists but fails to load is left untouched.
func Ensure(path string) (Config, error) {
	path = orDefault(path)
	cfg, err := Load(path)
	if !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}
	cfg = DefaultConfig()
	if err := Save(path, cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(orDefault(path))
	if err != nil {
		return Config{}, err
	}
	cfg, err := decode(data)
	if err != nil {
		return Config{}, err
	}
	if err := accept(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Save(path string, cfg Config) error {
	path = orDefault(path)
	cfg = Normalize(cfg)
	if err := Validate(cfg); err != nil {
		return err
	}
	blob, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("CFG_ENCODE: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("FS_MKDIR: %w", err)
	}
	return fsutil.AtomicWrite(path, blob, 0o644)
}

// decode overlays data on the defaults, so keys missing from the file keep
// their default values, then normalizes the result.
func decode(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("CFG_PARSE: %w", err)
	}
	return Normalize(cfg), nil
}

// accept validates a decoded document and refuses one written for a newer
// build than this binary.
func accept(cfg Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	return CheckMinVersion(cfg.MinVersion, Version)
}

func orDefault(path string) string {
	if path == "" {
		return DefaultConfigPath()
	}
	return path
}
