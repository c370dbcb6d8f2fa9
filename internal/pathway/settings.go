package pathway

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

const (
	DefaultExtension      = "sav"
	DefaultAutoSavePrefix = "auto_save_"
	DefaultSlots          = 3
)

// Options is a plain copy of the naming configuration shared by all pathways.
type Options struct {
	Root           string `json:"root"`
	Extension      string `json:"extension"`
	AutoSavePrefix string `json:"autoSavePrefix"`
	Slots          int    `json:"slots"`
}

// Settings is the mutable configuration handle passed by reference into every
// Pathway and the registry. Changing the root does not move files; callers
// holding a registry should go through Registry.SetStorageRoot so the
// re-scan happens.
type Settings struct {
	mu   sync.RWMutex
	opts Options
}

func NewSettings(opts Options) (*Settings, error) {
	if opts.Extension == "" {
		opts.Extension = DefaultExtension
	}
	if opts.AutoSavePrefix == "" {
		opts.AutoSavePrefix = DefaultAutoSavePrefix
	}
	opts.Extension = strings.TrimPrefix(opts.Extension, ".")
	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	opts.Root = filepath.Clean(opts.Root)
	return &Settings{opts: opts}, nil
}

func validateOptions(opts Options) error {
	if err := validateRoot(opts.Root); err != nil {
		return err
	}
	if strings.TrimPrefix(opts.Extension, ".") == "" {
		return fmt.Errorf("CFG_SAVES_EXTENSION: empty save-file extension")
	}
	if strings.ContainsAny(opts.Extension, `/\`) {
		return fmt.Errorf("CFG_SAVES_EXTENSION: invalid extension %q", opts.Extension)
	}
	if opts.AutoSavePrefix == "" {
		return fmt.Errorf("CFG_SAVES_PREFIX: empty auto-save prefix")
	}
	if strings.ContainsAny(opts.AutoSavePrefix, `/\`) {
		return fmt.Errorf("CFG_SAVES_PREFIX: invalid auto-save prefix %q", opts.AutoSavePrefix)
	}
	if opts.Slots < 0 {
		return fmt.Errorf("CFG_AUTOSAVE_SLOTS: slot count must be >= 0, got %d", opts.Slots)
	}
	return nil
}

func validateRoot(root string) error {
	if strings.TrimSpace(root) == "" {
		return fmt.Errorf("CFG_STORAGE_ROOT: empty storage root")
	}
	if !filepath.IsAbs(root) {
		return fmt.Errorf("CFG_STORAGE_ROOT: storage root must be absolute, got %q", root)
	}
	return nil
}

// Options returns a copy of the current configuration.
func (s *Settings) Options() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts
}

func (s *Settings) Root() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts.Root
}

func (s *Settings) Slots() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts.Slots
}

// SetRoot validates and replaces the storage root.
func (s *Settings) SetRoot(root string) error {
	if err := validateRoot(root); err != nil {
		return err
	}
	s.mu.Lock()
	s.opts.Root = filepath.Clean(root)
	s.mu.Unlock()
	return nil
}

func (s *Settings) SetSlots(n int) error {
	if n < 0 {
		return fmt.Errorf("CFG_AUTOSAVE_SLOTS: slot count must be >= 0, got %d", n)
	}
	s.mu.Lock()
	s.opts.Slots = n
	s.mu.Unlock()
	return nil
}

// SetNaming replaces extension and auto-save prefix. Existing snapshots keep
// their old classification until refreshed.
func (s *Settings) SetNaming(extension, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.opts
	next.Extension = strings.TrimPrefix(extension, ".")
	next.AutoSavePrefix = prefix
	if err := validateOptions(next); err != nil {
		return err
	}
	s.opts = next
	return nil
}
