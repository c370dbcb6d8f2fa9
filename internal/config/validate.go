package config

import (
	"fmt"
	"strings"

	"savepath/internal/scheduler"
)

var allowedClocks = map[string]struct{}{
	"scaled":   {},
	"unscaled": {},
}

func Validate(cfg Config) error {
	if cfg.Version != SchemaVersion {
		return fmt.Errorf("CFG_VERSION: unsupported version %d", cfg.Version)
	}
	if strings.TrimSpace(cfg.Storage.Root) == "" {
		return fmt.Errorf("CFG_STORAGE_ROOT: missing storage root")
	}
	if cfg.Saves.Extension == "" || strings.ContainsAny(cfg.Saves.Extension, `/\`) {
		return fmt.Errorf("CFG_SAVES_EXTENSION: invalid extension %q", cfg.Saves.Extension)
	}
	if cfg.Saves.AutoSavePrefix == "" || strings.ContainsAny(cfg.Saves.AutoSavePrefix, `/\`) {
		return fmt.Errorf("CFG_SAVES_PREFIX: invalid auto-save prefix %q", cfg.Saves.AutoSavePrefix)
	}
	if cfg.AutoSave.Slots < 0 {
		return fmt.Errorf("CFG_AUTOSAVE_SLOTS: slot count must be >= 0, got %d", cfg.AutoSave.Slots)
	}
	if _, err := scheduler.ParseInterval(cfg.AutoSave.Interval); err != nil {
		return err
	}
	if _, ok := allowedClocks[cfg.AutoSave.Clock]; !ok {
		return fmt.Errorf("CFG_AUTOSAVE_CLOCK: unknown clock source %q", cfg.AutoSave.Clock)
	}
	if cfg.MinVersion != "" && normalizeSemver(cfg.MinVersion) == "" {
		return fmt.Errorf("CFG_MIN_VERSION: invalid version %q", cfg.MinVersion)
	}
	return nil
}
