package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"savepath/internal/audit"
	"savepath/internal/config"
	"savepath/internal/fsutil"
	"savepath/internal/pathway"
	"savepath/internal/registry"
	"savepath/internal/scheduler"
)

type Options struct {
	ConfigPath string
}

type Service struct {
	ConfigPath string
	Config     config.Config

	Registry *registry.Registry
	Audit    *audit.Logger
}

// Summary describes one pathway for listings.
type Summary struct {
	ID          string        `json:"id"`
	Dir         string        `json:"dir"`
	ManualSaves int           `json:"manualSaves"`
	AutoSaves   int           `json:"autoSaves"`
	Recent      *pathway.File `json:"recent,omitempty"`
}

// Listing is the classified snapshot of one pathway.
type Listing struct {
	ID     string         `json:"id"`
	Manual []pathway.File `json:"manual"`
	Auto   []pathway.File `json:"auto"`
}

func New(opts Options) (*Service, error) {
	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}
	cfg, err := config.Ensure(configPath)
	if err != nil {
		return nil, err
	}
	pathOpts, err := config.ToOptions(cfg)
	if err != nil {
		return nil, err
	}
	settings, err := pathway.NewSettings(pathOpts)
	if err != nil {
		return nil, err
	}
	auditPath, err := config.AuditPath(cfg, configPath)
	if err != nil {
		return nil, err
	}
	logger := audit.New(auditPath)
	auto, err := config.ToAutoSave(cfg)
	if err != nil {
		return nil, err
	}
	reg, err := registry.New(settings, auto, logger)
	if err != nil {
		return nil, err
	}
	if err := reg.RefreshAll(); err != nil {
		return nil, err
	}
	return &Service{
		ConfigPath: configPath,
		Config:     cfg,
		Registry:   reg,
		Audit:      logger,
	}, nil
}

// Settings is the naming and slot configuration shared by every pathway.
func (s *Service) Settings() *pathway.Settings { return s.Registry.Settings() }

func (s *Service) SaveConfig() error {
	return config.Save(s.ConfigPath, s.Config)
}

// SetConfigValue updates one key, applies it to the live settings and
// registry, then persists the config.
func (s *Service) SetConfigValue(key, value string) error {
	next := s.Config
	if err := config.Set(&next, key, value); err != nil {
		return err
	}
	if err := s.apply(next, strings.ToLower(strings.TrimSpace(key))); err != nil {
		return err
	}
	s.Config = next
	return s.SaveConfig()
}

func (s *Service) apply(cfg config.Config, key string) error {
	switch {
	case key == "storage.root":
		root, err := config.ResolveStorageRoot(cfg)
		if err != nil {
			return err
		}
		return s.Registry.SetStorageRoot(root)
	case strings.HasPrefix(key, "saves."):
		if err := s.Settings().SetNaming(cfg.Saves.Extension, cfg.Saves.AutoSavePrefix); err != nil {
			return err
		}
		return s.Registry.RefreshAll()
	case key == "autosave.slots":
		return s.Settings().SetSlots(cfg.AutoSave.Slots)
	case strings.HasPrefix(key, "autosave."):
		auto, err := config.ToAutoSave(cfg)
		if err != nil {
			return err
		}
		return s.Registry.SetAutoSave(auto)
	}
	return nil
}

// Summaries lists every registered pathway ordered by id.
func (s *Service) Summaries() []Summary {
	pathways := s.Registry.Pathways()
	out := make([]Summary, 0, len(pathways))
	for _, p := range pathways {
		sum := Summary{
			ID:          p.ID(),
			Dir:         p.Dir(),
			ManualSaves: len(p.ManualSaves()),
			AutoSaves:   len(p.AutoSaves()),
		}
		if f, ok := p.RecentFile(); ok {
			sum.Recent = &f
		}
		out = append(out, sum)
	}
	return out
}

// CreatePathway registers id and creates its directory.
func (s *Service) CreatePathway(id string) (*pathway.Pathway, error) {
	p, err := s.Registry.CreateOrLoad(id, false)
	if err != nil {
		return nil, err
	}
	if _, err := p.EnsureDir(); err != nil {
		return nil, err
	}
	return p, nil
}

// DeletePathway removes the directory of a registered pathway.
func (s *Service) DeletePathway(id string) (bool, error) {
	if _, ok := s.Registry.Get(id); !ok {
		return false, nil
	}
	if _, err := s.Registry.SetCurrent(id); err != nil {
		return false, err
	}
	return s.Registry.DeleteCurrent()
}

func (s *Service) SavePath(id, name string) (string, error) {
	p, err := s.Registry.SetCurrent(id)
	if err != nil {
		return "", err
	}
	return p.SavePath(name)
}

// AutoSavePath returns the next rotation path of id without notifying
// subscribers; the caller writes the file.
func (s *Service) AutoSavePath(id string) (string, error) {
	p, err := s.Registry.SetCurrent(id)
	if err != nil {
		return "", err
	}
	return p.AutoSavePath()
}

func (s *Service) List(id string) (Listing, error) {
	p, err := s.Registry.CreateOrLoad(id, false)
	if err != nil {
		return Listing{}, err
	}
	return Listing{ID: p.ID(), Manual: p.ManualSaves(), Auto: p.AutoSaves()}, nil
}

func (s *Service) DeleteSave(id, name string) (bool, error) {
	if _, err := s.Registry.SetCurrent(id); err != nil {
		return false, err
	}
	return s.Registry.DeleteFile(name)
}

// Recent selects the pathway holding the newest file and returns that file.
func (s *Service) Recent() (string, pathway.File, bool) {
	p, ok := s.Registry.SelectMostRecent()
	if !ok {
		return "", pathway.File{}, false
	}
	f, ok := p.RecentFile()
	return p.ID(), f, ok
}

// WatchOptions drives Watch.
type WatchOptions struct {
	Pathway string
	// Source is copied into every auto-save path the timer requests.
	Source string
	// Period is the tick period of the loop.
	Period time.Duration
	OnSave func(path string)
}

// Watch selects a pathway and runs the auto-save loop until ctx is done,
// snapshotting Source into each rotation slot.
func (s *Service) Watch(ctx context.Context, opts WatchOptions) error {
	if opts.Source == "" {
		return fmt.Errorf("WATCH_SOURCE: source file is required")
	}
	if _, err := os.Stat(opts.Source); err != nil {
		return fmt.Errorf("WATCH_SOURCE: %w", err)
	}
	if _, err := s.Registry.SetCurrent(opts.Pathway); err != nil {
		return err
	}
	unsubscribe := s.Registry.OnAutoSavePathRequested(func(path string) error {
		return fsutil.CopyFile(opts.Source, path, 0o644)
	})
	defer unsubscribe()

	loop := &scheduler.Loop{
		Target: s.Registry,
		Period: opts.Period,
		OnFire: opts.OnSave,
		OnError: func(err error) {
			s.Audit.Record("watch", opts.Pathway, err, nil)
		},
	}
	return loop.Run(ctx)
}
