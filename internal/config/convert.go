package config

import (
	"savepath/internal/pathway"
	"savepath/internal/registry"
	"savepath/internal/scheduler"
)

// ToOptions resolves the naming and storage part of cfg for pathway.NewSettings.
func ToOptions(cfg Config) (pathway.Options, error) {
	root, err := ResolveStorageRoot(cfg)
	if err != nil {
		return pathway.Options{}, err
	}
	return pathway.Options{
		Root:           root,
		Extension:      cfg.Saves.Extension,
		AutoSavePrefix: cfg.Saves.AutoSavePrefix,
		Slots:          cfg.AutoSave.Slots,
	}, nil
}

func ToAutoSave(cfg Config) (registry.AutoSave, error) {
	interval, err := scheduler.ParseInterval(cfg.AutoSave.Interval)
	if err != nil {
		return registry.AutoSave{}, err
	}
	return registry.AutoSave{
		Enabled:  cfg.AutoSave.Enabled,
		Interval: interval,
		Clock:    registry.ClockSource(cfg.AutoSave.Clock),
	}, nil
}
