package config

// Config is the v1 on-disk schema.
type Config struct {
	Version    int            `toml:"version" json:"version"`
	MinVersion string         `toml:"min_version,omitempty" json:"minVersion,omitempty"`
	Storage    StorageConfig  `toml:"storage" json:"storage"`
	Saves      SavesConfig    `toml:"saves" json:"saves"`
	AutoSave   AutoSaveConfig `toml:"autosave" json:"autosave"`
	Logging    LoggingConfig  `toml:"logging" json:"logging"`
}

type StorageConfig struct {
	Root string `toml:"root" json:"root"`
}

type SavesConfig struct {
	Extension      string `toml:"extension" json:"extension"`
	AutoSavePrefix string `toml:"auto_save_prefix" json:"autoSavePrefix"`
}

type AutoSaveConfig struct {
	Enabled  bool   `toml:"enabled" json:"enabled"`
	Slots    int    `toml:"slots" json:"slots"`
	Interval string `toml:"interval" json:"interval"`
	Clock    string `toml:"clock" json:"clock"`
}

// LoggingConfig controls the JSON-lines audit log. An empty Path puts the
// log next to the config file.
type LoggingConfig struct {
	Audit bool   `toml:"audit" json:"audit"`
	Path  string `toml:"path,omitempty" json:"path,omitempty"`
}
