package config

import "strings"

func Normalize(cfg Config) Config {
	if cfg.Version == 0 {
		cfg.Version = SchemaVersion
	}
	if strings.TrimSpace(cfg.Storage.Root) == "" {
		cfg.Storage.Root = "~/.savepath/saves"
	}
	cfg.Saves.Extension = strings.TrimPrefix(strings.TrimSpace(cfg.Saves.Extension), ".")
	if cfg.Saves.Extension == "" {
		cfg.Saves.Extension = "sav"
	}
	if cfg.Saves.AutoSavePrefix == "" {
		cfg.Saves.AutoSavePrefix = "auto_save_"
	}
	cfg.AutoSave.Interval = strings.TrimSpace(cfg.AutoSave.Interval)
	cfg.AutoSave.Clock = strings.ToLower(strings.TrimSpace(cfg.AutoSave.Clock))
	if cfg.AutoSave.Clock == "" {
		cfg.AutoSave.Clock = "scaled"
	}
	return cfg
}
