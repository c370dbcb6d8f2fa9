package pathway

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrInvalidID   = errors.New("PWY_INVALID_ID")
	ErrInvalidName = errors.New("PWY_INVALID_NAME")
)

const timestampLayout = "2006-01-02_15-04-05"

// File is one entry of a pathway snapshot.
type File struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	ModTime time.Time `json:"modTime"`
}

// Pathway owns the file naming and listing logic of one directory under the
// storage root. Its listing is a snapshot taken at the last Refresh; nothing
// watches the filesystem.
type Pathway struct {
	id       string
	settings *Settings
	now      func() time.Time

	mu         sync.RWMutex
	files      []File
	generation uint64
}

// ValidateID reports whether id can be used as a directory leaf name.
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty pathway id", ErrInvalidID)
	}
	if id == "." || id == ".." || strings.ContainsAny(id, `/\`) || filepath.Base(id) != id {
		return fmt.Errorf("%w: %q is not a single path element", ErrInvalidID, id)
	}
	return nil
}

// New returns a pathway with an empty snapshot. Use Load to also scan it.
func New(id string, settings *Settings) (*Pathway, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if settings == nil {
		return nil, fmt.Errorf("CFG_SETTINGS: nil settings")
	}
	return &Pathway{id: id, settings: settings, now: time.Now, files: []File{}}, nil
}

// Load creates the pathway and takes its first snapshot.
func Load(id string, settings *Settings) (*Pathway, error) {
	p, err := New(id, settings)
	if err != nil {
		return nil, err
	}
	if err := p.Refresh(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pathway) ID() string { return p.id }

// Dir is the pathway directory under the current storage root.
func (p *Pathway) Dir() string {
	return filepath.Join(p.settings.Root(), p.id)
}

// Generation increases by one every time the snapshot is replaced.
func (p *Pathway) Generation() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.generation
}

// EnsureDir creates the pathway directory if it is missing.
func (p *Pathway) EnsureDir() (string, error) {
	return ensureDir(p.settings.Root(), p.id)
}

// SavePath ensures the directory exists and returns the path for a manual
// save. An empty name yields a timestamped default.
func (p *Pathway) SavePath(name string) (string, error) {
	opts := p.settings.Options()
	fileName, err := p.resolveName(name, opts)
	if err != nil {
		return "", err
	}
	dir, err := ensureDir(opts.Root, p.id)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// AutoSavePath ensures the directory exists and returns the path of the next
// rotation slot, computed from the current snapshot.
func (p *Pathway) AutoSavePath() (string, error) {
	opts := p.settings.Options()
	dir, err := ensureDir(opts.Root, p.id)
	if err != nil {
		return "", err
	}
	slot := nextSlot(p.AutoSaves(), opts.Slots, opts.Extension)
	return filepath.Join(dir, fmt.Sprintf("%s%d.%s", opts.AutoSavePrefix, slot, opts.Extension)), nil
}

// Files returns the whole snapshot, newest first.
func (p *Pathway) Files() []File {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]File, len(p.files))
	copy(out, p.files)
	return out
}

func (p *Pathway) FileCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.files)
}

// ManualSaves returns snapshot files not carrying the auto-save prefix.
func (p *Pathway) ManualSaves() []File {
	prefix := p.settings.Options().AutoSavePrefix
	return p.filter(func(f File) bool { return !strings.HasPrefix(f.Name, prefix) })
}

// AutoSaves returns snapshot files carrying the auto-save prefix.
func (p *Pathway) AutoSaves() []File {
	prefix := p.settings.Options().AutoSavePrefix
	return p.filter(func(f File) bool { return strings.HasPrefix(f.Name, prefix) })
}

func (p *Pathway) filter(keep func(File) bool) []File {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := []File{}
	for _, f := range p.files {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}

// RecentFile returns the most recently modified file of either kind.
func (p *Pathway) RecentFile() (File, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.files) == 0 {
		return File{}, false
	}
	return p.files[0], true
}

func (p *Pathway) FileExists(name string) bool {
	if name == "" {
		return false
	}
	fileName, err := p.resolveName(name, p.settings.Options())
	if err != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(p.Dir(), fileName))
	return err == nil && !info.IsDir()
}

// DeleteFile removes one file and refreshes the snapshot. It returns false
// without an error when the file does not exist.
func (p *Pathway) DeleteFile(name string) (bool, error) {
	if name == "" {
		return false, fmt.Errorf("%w: empty file name", ErrInvalidName)
	}
	fileName, err := p.resolveName(name, p.settings.Options())
	if err != nil {
		return false, err
	}
	if err := os.Remove(filepath.Join(p.Dir(), fileName)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("FS_DELETE_FILE: %w", err)
	}
	return true, p.Refresh()
}

// DeleteDirectory removes the pathway directory recursively and empties the
// snapshot. It returns false without an error when the directory is absent.
func (p *Pathway) DeleteDirectory() (bool, error) {
	dir := p.Dir()
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("FS_DELETE_DIR: %w", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return false, fmt.Errorf("FS_DELETE_DIR: %w", err)
	}
	p.replace([]File{})
	return true, nil
}

// Refresh re-scans the directory. A missing directory is an empty snapshot.
func (p *Pathway) Refresh() error {
	opts := p.settings.Options()
	files, err := scan(filepath.Join(opts.Root, p.id), opts.Extension)
	if err != nil {
		return err
	}
	p.replace(files)
	return nil
}

func (p *Pathway) replace(files []File) {
	p.mu.Lock()
	p.files = files
	p.generation++
	p.mu.Unlock()
}

func (p *Pathway) resolveName(name string, opts Options) (string, error) {
	if name == "" {
		return fmt.Sprintf("save_%s.%s", p.now().Format(timestampLayout), opts.Extension), nil
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if !strings.HasSuffix(name, "."+opts.Extension) {
		name += "." + opts.Extension
	}
	return name, nil
}

func ensureDir(root, id string) (string, error) {
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("FS_MKDIR: %w", err)
	}
	return dir, nil
}

func scan(dir, ext string) ([]File, error) {
	files := []File{}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return files, nil
		}
		return nil, fmt.Errorf("FS_LIST: %w", err)
	}
	suffix := "." + ext
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("FS_LIST: %w", err)
		}
		files = append(files, File{
			Name:    e.Name(),
			Path:    filepath.Join(dir, e.Name()),
			ModTime: info.ModTime(),
		})
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].Name < files[j].Name
		}
		return files[i].ModTime.After(files[j].ModTime)
	})
	return files, nil
}
