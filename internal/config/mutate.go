package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Keys lists the settings accepted by Set, in display order.
var Keys = []string{
	"storage.root",
	"saves.extension",
	"saves.auto_save_prefix",
	"autosave.enabled",
	"autosave.slots",
	"autosave.interval",
	"autosave.clock",
	"logging.audit",
	"logging.path",
}

// Set assigns one dotted key and re-validates the whole document.
func Set(cfg *Config, key, value string) error {
	if cfg == nil {
		return fmt.Errorf("CFG_SET: nil config")
	}
	next := *cfg
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "storage.root":
		next.Storage.Root = value
	case "saves.extension":
		next.Saves.Extension = value
	case "saves.auto_save_prefix":
		next.Saves.AutoSavePrefix = value
	case "autosave.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("CFG_SET: autosave.enabled: %w", err)
		}
		next.AutoSave.Enabled = b
	case "autosave.slots":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("CFG_SET: autosave.slots: %w", err)
		}
		next.AutoSave.Slots = n
	case "autosave.interval":
		next.AutoSave.Interval = value
	case "autosave.clock":
		next.AutoSave.Clock = value
	case "logging.audit":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("CFG_SET: logging.audit: %w", err)
		}
		next.Logging.Audit = b
	case "logging.path":
		next.Logging.Path = value
	default:
		return fmt.Errorf("CFG_SET: unknown key %q", key)
	}
	next = Normalize(next)
	if err := Validate(next); err != nil {
		return err
	}
	*cfg = next
	return nil
}
