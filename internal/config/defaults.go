package config

const (
	SchemaVersion = 1
)

// DefaultConfig returns a fully-populated v1 config document.
func DefaultConfig() Config {
	return Config{
		Version: SchemaVersion,
		Storage: StorageConfig{
			Root: "~/.savepath/saves",
		},
		Saves: SavesConfig{
			Extension:      "sav",
			AutoSavePrefix: "auto_save_",
		},
		AutoSave: AutoSaveConfig{
			Enabled:  true,
			Slots:    3,
			Interval: "5m",
			Clock:    "scaled",
		},
		Logging: LoggingConfig{
			Audit: true,
		},
	}
}
