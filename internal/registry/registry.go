package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"savepath/internal/audit"
	"savepath/internal/pathway"
)

// ClockSource selects which elapsed time of a Frame feeds the auto-save timer.
type ClockSource string

const (
	// ClockScaled stops advancing while the host is paused.
	ClockScaled ClockSource = "scaled"
	// ClockUnscaled is wall time, unaffected by pause.
	ClockUnscaled ClockSource = "unscaled"
)

// loadConcurrency bounds how many pathway directories RefreshAll scans at once.
const loadConcurrency = 8

// AutoSave configures the periodic trigger. Slot count lives in the shared
// pathway settings.
type AutoSave struct {
	Enabled  bool          `json:"enabled"`
	Interval time.Duration `json:"interval"`
	Clock    ClockSource   `json:"clock"`
}

func (a AutoSave) validate() (AutoSave, error) {
	if a.Interval < 0 {
		return a, fmt.Errorf("CFG_AUTOSAVE_INTERVAL: interval must be >= 0, got %s", a.Interval)
	}
	switch a.Clock {
	case "":
		a.Clock = ClockScaled
	case ClockScaled, ClockUnscaled:
	default:
		return a, fmt.Errorf("CFG_AUTOSAVE_CLOCK: unknown clock source %q", a.Clock)
	}
	return a, nil
}

// Frame carries the elapsed time of one update cycle on both clocks.
type Frame struct {
	Scaled   time.Duration
	Unscaled time.Duration
}

type autoSaveSub struct {
	id int
	fn func(path string) error
}

type changedSub struct {
	id int
	fn func(*pathway.Pathway)
}

// Registry owns the loaded pathways, the current selection and the auto-save
// timer. All of its mutable state sits behind one mutex; subscribers are
// called on the caller's goroutine with that mutex released.
type Registry struct {
	settings *pathway.Settings
	audit    *audit.Logger

	mu         sync.Mutex
	pathways   map[string]*pathway.Pathway
	current    *pathway.Pathway
	autoSave   AutoSave
	elapsed    time.Duration
	nextSubID  int
	onAutoSave []autoSaveSub
	onChanged  []changedSub
}

// New returns an empty registry. Call RefreshAll to pick up the pathways
// already on disk.
func New(settings *pathway.Settings, auto AutoSave, logger *audit.Logger) (*Registry, error) {
	if settings == nil {
		return nil, fmt.Errorf("CFG_SETTINGS: nil settings")
	}
	auto, err := auto.validate()
	if err != nil {
		return nil, err
	}
	return &Registry{
		settings: settings,
		audit:    logger,
		pathways: map[string]*pathway.Pathway{},
		autoSave: auto,
	}, nil
}

func (r *Registry) Settings() *pathway.Settings { return r.settings }

// OnAutoSavePathRequested registers fn to receive every auto-save path. The
// subscriber is expected to write the file before returning. The returned
// func removes the subscription.
func (r *Registry) OnAutoSavePathRequested(fn func(path string) error) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSubID++
	id := r.nextSubID
	r.onAutoSave = append(r.onAutoSave, autoSaveSub{id: id, fn: fn})
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, s := range r.onAutoSave {
			if s.id == id {
				r.onAutoSave = append(r.onAutoSave[:i:i], r.onAutoSave[i+1:]...)
				return
			}
		}
	}
}

// OnCurrentPathwayChanged registers fn to receive the pathway on every
// selection, including reselection of the current one.
func (r *Registry) OnCurrentPathwayChanged(fn func(*pathway.Pathway)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSubID++
	id := r.nextSubID
	r.onChanged = append(r.onChanged, changedSub{id: id, fn: fn})
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, s := range r.onChanged {
			if s.id == id {
				r.onChanged = append(r.onChanged[:i:i], r.onChanged[i+1:]...)
				return
			}
		}
	}
}

func (r *Registry) Current() *pathway.Pathway {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *Registry) Get(id string) (*pathway.Pathway, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pathways[id]
	return p, ok
}

// Pathways returns the registered pathways ordered by id.
func (r *Registry) Pathways() []*pathway.Pathway {
	r.mu.Lock()
	out := make([]*pathway.Pathway, 0, len(r.pathways))
	for _, p := range r.pathways {
		out = append(out, p)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Accumulated is the time counted toward the next auto-save.
func (r *Registry) Accumulated() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsed
}

func (r *Registry) AutoSave() AutoSave {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.autoSave
}

// SetAutoSave replaces the trigger configuration. Disabling it, or setting
// the interval to zero, cancels any pending trigger before the next tick.
func (r *Registry) SetAutoSave(a AutoSave) error {
	a, err := a.validate()
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.autoSave = a
	r.mu.Unlock()
	return nil
}

// SetStorageRoot points the shared settings at a new root and re-scans.
// Files under the old root are not moved.
func (r *Registry) SetStorageRoot(root string) error {
	if err := r.settings.SetRoot(root); err != nil {
		return err
	}
	return r.RefreshAll()
}

// CreateOrLoad returns the registered pathway for id, loading it from disk
// first if needed, and optionally makes it current. The first load scans the
// pathway directory with the registry lock held.
func (r *Registry) CreateOrLoad(id string, makeCurrent bool) (*pathway.Pathway, error) {
	r.mu.Lock()
	p, ok := r.pathways[id]
	if !ok {
		var err error
		p, err = pathway.Load(id, r.settings)
		if err != nil {
			r.mu.Unlock()
			return nil, err
		}
		r.pathways[id] = p
	}
	if !makeCurrent {
		r.mu.Unlock()
		return p, nil
	}
	subs := r.selectLocked(p)
	r.mu.Unlock()

	r.audit.Record("select", id, nil, map[string]string{"created": strconv.FormatBool(!ok)})
	for _, s := range subs {
		s.fn(p)
	}
	return p, nil
}

// SetCurrent selects id, creating or loading it, and resets the timer.
func (r *Registry) SetCurrent(id string) (*pathway.Pathway, error) {
	return r.CreateOrLoad(id, true)
}

func (r *Registry) selectLocked(p *pathway.Pathway) []changedSub {
	r.current = p
	r.elapsed = 0
	subs := make([]changedSub, len(r.onChanged))
	copy(subs, r.onChanged)
	return subs
}

// SelectMostRecent selects the pathway holding the most recently modified
// file. Among equal timestamps the winner depends on map iteration order and
// is not deterministic. Nothing changes when no pathway has a file.
func (r *Registry) SelectMostRecent() (*pathway.Pathway, bool) {
	r.mu.Lock()
	var best *pathway.Pathway
	var bestAt time.Time
	for _, p := range r.pathways {
		f, ok := p.RecentFile()
		if !ok {
			continue
		}
		if best == nil || f.ModTime.After(bestAt) {
			best, bestAt = p, f.ModTime
		}
	}
	if best == nil {
		r.mu.Unlock()
		return nil, false
	}
	subs := r.selectLocked(best)
	r.mu.Unlock()

	r.audit.Record("select_most_recent", best.ID(), nil, map[string]string{"modTime": bestAt.UTC().Format(time.RFC3339)})
	for _, s := range subs {
		s.fn(best)
	}
	return best, true
}

// RefreshAll drops every pathway and the selection, then loads one pathway
// per immediate subdirectory of the storage root. A missing root leaves the
// registry empty. The registry lock is held for the whole rescan, so no
// selection made concurrently can survive against a replaced pathway.
func (r *Registry) RefreshAll() error {
	r.mu.Lock()
	root := r.settings.Root()
	r.pathways = map[string]*pathway.Pathway{}
	r.current = nil
	r.elapsed = 0
	loaded, err := loadAll(root, r.settings)
	for _, p := range loaded {
		r.pathways[p.ID()] = p
	}
	r.mu.Unlock()

	r.audit.Record("refresh_all", "", err, map[string]string{"root": root, "pathways": strconv.Itoa(len(loaded))})
	return err
}

func loadAll(root string, settings *pathway.Settings) ([]*pathway.Pathway, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("FS_LIST_ROOT: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() || pathway.ValidateID(e.Name()) != nil {
			continue
		}
		ids = append(ids, e.Name())
	}

	loaded := make([]*pathway.Pathway, len(ids))
	var g errgroup.Group
	g.SetLimit(loadConcurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			p, err := pathway.Load(id, settings)
			if err != nil {
				return fmt.Errorf("load pathway %q: %w", id, err)
			}
			loaded[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return loaded, nil
}

// Tick advances the timer by elapsed when a pathway is current and fires an
// auto-save once the interval is reached. It returns the requested path, or
// "" when nothing fired.
func (r *Registry) Tick(elapsed time.Duration) (string, error) {
	r.mu.Lock()
	if r.current == nil {
		r.mu.Unlock()
		return "", nil
	}
	if elapsed > 0 {
		r.elapsed += elapsed
	}
	a := r.autoSave
	due := a.Enabled && a.Interval > 0 && r.settings.Slots() > 0 && r.elapsed >= a.Interval
	if !due {
		r.mu.Unlock()
		return "", nil
	}
	return r.fireLocked()
}

// TickFrame feeds the frame's scaled or unscaled time to Tick according to
// the configured clock source.
func (r *Registry) TickFrame(f Frame) (string, error) {
	elapsed := f.Scaled
	if r.AutoSave().Clock == ClockUnscaled {
		elapsed = f.Unscaled
	}
	return r.Tick(elapsed)
}

// RequestAutoSave computes the current pathway's next auto-save path,
// notifies subscribers, then refreshes that pathway. It returns "" when no
// pathway is current.
func (r *Registry) RequestAutoSave() (string, error) {
	r.mu.Lock()
	if r.current == nil {
		r.mu.Unlock()
		return "", nil
	}
	return r.fireLocked()
}

// fireLocked must be called with r.mu held; it releases it.
func (r *Registry) fireLocked() (string, error) {
	p := r.current
	// The timer resets even when the path or a subscriber fails.
	r.elapsed = 0
	subs := make([]autoSaveSub, len(r.onAutoSave))
	copy(subs, r.onAutoSave)
	r.mu.Unlock()

	path, err := p.AutoSavePath()
	if err != nil {
		r.audit.Record("autosave", p.ID(), err, nil)
		return "", err
	}
	for _, s := range subs {
		if subErr := s.fn(path); subErr != nil {
			r.audit.Record("autosave_subscriber", p.ID(), subErr, map[string]string{"path": path})
		}
	}
	err = p.Refresh()
	r.audit.Record("autosave", p.ID(), err, map[string]string{"path": path})
	return path, err
}

// DeleteCurrent removes the current pathway's directory and re-scans the
// root, which clears the selection. It reports whether anything was deleted.
func (r *Registry) DeleteCurrent() (bool, error) {
	p := r.Current()
	if p == nil {
		return false, nil
	}
	deleted, err := p.DeleteDirectory()
	r.recordDelete("delete_pathway", p.ID(), deleted, err, nil)
	if err != nil || !deleted {
		return false, err
	}
	return true, r.RefreshAll()
}

// DeleteFile removes name from the current pathway, keeping the selection.
func (r *Registry) DeleteFile(name string) (bool, error) {
	p := r.Current()
	if p == nil {
		return false, nil
	}
	deleted, err := p.DeleteFile(name)
	r.recordDelete("delete_file", p.ID(), deleted, err, map[string]string{"file": name})
	return deleted, err
}

// recordDelete logs a delete that found nothing to remove as a noop.
func (r *Registry) recordDelete(op, id string, deleted bool, err error, fields map[string]string) {
	if err == nil && !deleted {
		_ = r.audit.Log(audit.Event{Operation: op, Pathway: id, Status: audit.StatusNoop, Fields: fields})
		return
	}
	r.audit.Record(op, id, err, fields)
}
