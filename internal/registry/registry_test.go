package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"savepath/internal/audit"
	"savepath/internal/pathway"
)

var baseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestRegistry(t *testing.T, slots int, interval time.Duration) *Registry {
	t.Helper()
	settings, err := pathway.NewSettings(pathway.Options{Root: t.TempDir(), Slots: slots})
	if err != nil {
		t.Fatalf("new settings: %v", err)
	}
	r, err := New(settings, AutoSave{Enabled: true, Interval: interval}, nil)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return r
}

// writer returns a subscriber that writes each requested path with strictly
// increasing modification times.
func writer(t *testing.T) (func(string) error, *[]string) {
	t.Helper()
	var written []string
	n := 0
	return func(path string) error {
		if err := os.WriteFile(path, []byte("state"), 0o644); err != nil {
			return err
		}
		mod := baseTime.Add(time.Duration(n) * time.Minute)
		n++
		written = append(written, filepath.Base(path))
		return os.Chtimes(path, mod, mod)
	}, &written
}

func writeFile(t *testing.T, path string, mod time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func autoNames(p *pathway.Pathway) []string {
	var out []string
	for _, f := range p.AutoSaves() {
		out = append(out, f.Name)
	}
	sort.Strings(out)
	return out
}

func TestNewValidatesAutoSave(t *testing.T) {
	settings, err := pathway.NewSettings(pathway.Options{Root: t.TempDir(), Slots: 3})
	if err != nil {
		t.Fatalf("new settings: %v", err)
	}
	if _, err := New(nil, AutoSave{}, nil); err == nil {
		t.Fatalf("expected nil settings error")
	}
	if _, err := New(settings, AutoSave{Interval: -time.Second}, nil); err == nil || !strings.Contains(err.Error(), "CFG_AUTOSAVE_INTERVAL") {
		t.Fatalf("expected interval error, got %v", err)
	}
	if _, err := New(settings, AutoSave{Clock: "sundial"}, nil); err == nil || !strings.Contains(err.Error(), "CFG_AUTOSAVE_CLOCK") {
		t.Fatalf("expected clock error, got %v", err)
	}
	r, err := New(settings, AutoSave{}, nil)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if r.AutoSave().Clock != ClockScaled {
		t.Fatalf("default clock = %q, want scaled", r.AutoSave().Clock)
	}
}

func TestTickWithoutSelectionNeverAccumulates(t *testing.T) {
	r := newTestRegistry(t, 2, 10*time.Second)
	fired := 0
	r.OnAutoSavePathRequested(func(string) error { fired++; return nil })
	for i := 0; i < 100; i++ {
		path, err := r.Tick(time.Hour)
		if err != nil || path != "" {
			t.Fatalf("tick without selection = %q, %v", path, err)
		}
	}
	if r.Accumulated() != 0 || fired != 0 {
		t.Fatalf("accumulated=%s fired=%d, want 0 and 0", r.Accumulated(), fired)
	}
	if path, err := r.RequestAutoSave(); path != "" || err != nil {
		t.Fatalf("request without selection = %q, %v", path, err)
	}
}

func TestTickFiresOnceIntervalIsReached(t *testing.T) {
	r := newTestRegistry(t, 2, 10*time.Second)
	write, written := writer(t)
	r.OnAutoSavePathRequested(write)
	p, err := r.SetCurrent("campaign")
	if err != nil {
		t.Fatalf("set current: %v", err)
	}

	for i, want := range []string{"", "", "auto_save_1.sav"} {
		path, err := r.Tick(4 * time.Second)
		if err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		got := ""
		if path != "" {
			got = filepath.Base(path)
		}
		if got != want {
			t.Fatalf("tick %d fired %q, want %q", i, got, want)
		}
	}
	if r.Accumulated() != 0 {
		t.Fatalf("accumulator should reset after firing, got %s", r.Accumulated())
	}
	if len(*written) != 1 {
		t.Fatalf("expected exactly one auto-save, got %v", *written)
	}
	if got := autoNames(p); fmt.Sprint(got) != "[auto_save_1.sav]" {
		t.Fatalf("auto saves = %v", got)
	}
}

func TestTickHonoursTriggerConditions(t *testing.T) {
	tests := []struct {
		name  string
		auto  AutoSave
		slots int
	}{
		{"disabled", AutoSave{Enabled: false, Interval: time.Second}, 3},
		{"zero interval", AutoSave{Enabled: true, Interval: 0}, 3},
		{"zero slots", AutoSave{Enabled: true, Interval: time.Second}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(t, tt.slots, time.Second)
			if err := r.SetAutoSave(tt.auto); err != nil {
				t.Fatalf("set auto-save: %v", err)
			}
			fired := 0
			r.OnAutoSavePathRequested(func(string) error { fired++; return nil })
			if _, err := r.SetCurrent("campaign"); err != nil {
				t.Fatalf("set current: %v", err)
			}
			for i := 0; i < 5; i++ {
				if _, err := r.Tick(time.Second); err != nil {
					t.Fatalf("tick: %v", err)
				}
			}
			if fired != 0 {
				t.Fatalf("expected no auto-save, fired %d", fired)
			}
		})
	}
}

func TestTickFrameUsesConfiguredClock(t *testing.T) {
	r := newTestRegistry(t, 3, 10*time.Second)
	if _, err := r.SetCurrent("campaign"); err != nil {
		t.Fatalf("set current: %v", err)
	}
	paused := Frame{Scaled: 0, Unscaled: 3 * time.Second}
	if _, err := r.TickFrame(paused); err != nil {
		t.Fatalf("tick frame: %v", err)
	}
	if r.Accumulated() != 0 {
		t.Fatalf("scaled clock should ignore paused time, got %s", r.Accumulated())
	}

	if err := r.SetAutoSave(AutoSave{Enabled: true, Interval: 10 * time.Second, Clock: ClockUnscaled}); err != nil {
		t.Fatalf("set auto-save: %v", err)
	}
	if _, err := r.TickFrame(paused); err != nil {
		t.Fatalf("tick frame: %v", err)
	}
	if r.Accumulated() != 3*time.Second {
		t.Fatalf("unscaled clock should count paused time, got %s", r.Accumulated())
	}
}

func TestSuccessiveAutoSavesFillThenRotate(t *testing.T) {
	for _, slots := range []int{1, 2, 4} {
		t.Run(fmt.Sprintf("slots=%d", slots), func(t *testing.T) {
			r := newTestRegistry(t, slots, time.Second)
			write, written := writer(t)
			r.OnAutoSavePathRequested(write)
			p, err := r.SetCurrent("campaign")
			if err != nil {
				t.Fatalf("set current: %v", err)
			}
			for i := 0; i < slots; i++ {
				if _, err := r.RequestAutoSave(); err != nil {
					t.Fatalf("request %d: %v", i, err)
				}
			}
			var want []string
			for i := 1; i <= slots; i++ {
				want = append(want, fmt.Sprintf("auto_save_%d.sav", i))
			}
			sort.Strings(want)
			if got := autoNames(p); fmt.Sprint(got) != fmt.Sprint(want) {
				t.Fatalf("after %d requests auto saves = %v, want %v", slots, got, want)
			}

			path, err := r.RequestAutoSave()
			if err != nil {
				t.Fatalf("rotation request: %v", err)
			}
			// The first write is the least recently modified.
			if filepath.Base(path) != (*written)[0] {
				t.Fatalf("rotation reused %s, want %s", filepath.Base(path), (*written)[0])
			}
			if got := autoNames(p); len(got) != slots {
				t.Fatalf("expected %d auto saves after rotation, got %v", slots, got)
			}
		})
	}
}

func TestNotifyHappensBeforeRefresh(t *testing.T) {
	r := newTestRegistry(t, 3, time.Second)
	p, err := r.SetCurrent("campaign")
	if err != nil {
		t.Fatalf("set current: %v", err)
	}
	var genAtNotify uint64
	r.OnAutoSavePathRequested(func(path string) error {
		genAtNotify = p.Generation()
		return os.WriteFile(path, []byte("x"), 0o644)
	})
	if _, err := r.RequestAutoSave(); err != nil {
		t.Fatalf("request: %v", err)
	}
	if p.Generation() != genAtNotify+1 {
		t.Fatalf("expected one refresh after notification, gen %d -> %d", genAtNotify, p.Generation())
	}
	if p.FileCount() != 1 {
		t.Fatalf("refreshed snapshot should see the written file")
	}
}

func TestSubscriberFailureDoesNotCorruptTimer(t *testing.T) {
	settings, err := pathway.NewSettings(pathway.Options{Root: t.TempDir(), Slots: 2})
	if err != nil {
		t.Fatalf("new settings: %v", err)
	}
	logPath := filepath.Join(t.TempDir(), "audit.log")
	r, err := New(settings, AutoSave{Enabled: true, Interval: 5 * time.Second}, audit.New(logPath))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	calls := 0
	r.OnAutoSavePathRequested(func(string) error { return errors.New("write failed") })
	r.OnAutoSavePathRequested(func(string) error { calls++; return nil })
	if _, err := r.SetCurrent("campaign"); err != nil {
		t.Fatalf("set current: %v", err)
	}
	path, err := r.Tick(6 * time.Second)
	if err != nil || path == "" {
		t.Fatalf("tick = %q, %v; want fired", path, err)
	}
	if r.Accumulated() != 0 {
		t.Fatalf("accumulator must reset despite subscriber failure")
	}
	if calls != 1 {
		t.Fatalf("later subscribers must still be notified, calls=%d", calls)
	}

	events, err := audit.ReadAll(logPath)
	if err != nil {
		t.Fatalf("read audit: %v", err)
	}
	found := false
	for _, ev := range events {
		if ev.Operation == "autosave_subscriber" && ev.Status == audit.StatusError && ev.Message == "write failed" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected subscriber failure in audit log, got %+v", events)
	}
}

func TestSetCurrentEmitsEveryTime(t *testing.T) {
	r := newTestRegistry(t, 3, 10*time.Second)
	var changes []string
	r.OnCurrentPathwayChanged(func(p *pathway.Pathway) { changes = append(changes, p.ID()) })

	if _, err := r.CreateOrLoad("A", true); err != nil {
		t.Fatalf("create A: %v", err)
	}
	if _, err := r.CreateOrLoad("B", true); err != nil {
		t.Fatalf("create B: %v", err)
	}
	if fmt.Sprint(changes) != "[A B]" {
		t.Fatalf("changes = %v, want [A B]", changes)
	}
	if r.Current().ID() != "B" {
		t.Fatalf("current = %s, want B", r.Current().ID())
	}

	if _, err := r.Tick(4 * time.Second); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if _, err := r.SetCurrent("B"); err != nil {
		t.Fatalf("reselect B: %v", err)
	}
	if fmt.Sprint(changes) != "[A B B]" {
		t.Fatalf("reselection should emit, changes = %v", changes)
	}
	if r.Accumulated() != 0 {
		t.Fatalf("reselection should reset the timer")
	}
}

func TestCreateOrLoadIsIdempotent(t *testing.T) {
	r := newTestRegistry(t, 3, time.Second)
	emitted := 0
	unsubscribe := r.OnCurrentPathwayChanged(func(*pathway.Pathway) { emitted++ })

	first, err := r.CreateOrLoad("campaign", false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := r.CreateOrLoad("campaign", false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if first != second {
		t.Fatalf("expected the same pathway instance")
	}
	if emitted != 0 || r.Current() != nil {
		t.Fatalf("makeCurrent=false must not select, emitted=%d", emitted)
	}
	if len(r.Pathways()) != 1 {
		t.Fatalf("expected one registered pathway")
	}

	unsubscribe()
	if _, err := r.SetCurrent("campaign"); err != nil {
		t.Fatalf("set current: %v", err)
	}
	if emitted != 0 {
		t.Fatalf("unsubscribed handler was called")
	}
	if _, err := r.CreateOrLoad("../bad", true); err == nil {
		t.Fatalf("expected invalid id error")
	}
}

func TestRefreshAllScansRootSubdirectories(t *testing.T) {
	r := newTestRegistry(t, 3, time.Second)
	root := r.Settings().Root()
	writeFile(t, filepath.Join(root, "alpha", "one.sav"), baseTime)
	writeFile(t, filepath.Join(root, "beta", "auto_save_1.sav"), baseTime)
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, filepath.Join(root, "stray.sav"), baseTime)

	if _, err := r.SetCurrent("transient"); err != nil {
		t.Fatalf("set current: %v", err)
	}
	if err := r.RefreshAll(); err != nil {
		t.Fatalf("refresh all: %v", err)
	}
	if r.Current() != nil {
		t.Fatalf("refresh all should clear the selection")
	}
	var ids []string
	for _, p := range r.Pathways() {
		ids = append(ids, p.ID())
	}
	if fmt.Sprint(ids) != "[alpha beta empty]" {
		t.Fatalf("ids = %v, want [alpha beta empty]", ids)
	}
	beta, ok := r.Get("beta")
	if !ok || len(beta.AutoSaves()) != 1 {
		t.Fatalf("beta should be loaded with its auto save")
	}
}

func TestRefreshAllMissingRootIsEmpty(t *testing.T) {
	r := newTestRegistry(t, 3, time.Second)
	missing := filepath.Join(r.Settings().Root(), "not-yet")
	if err := r.SetStorageRoot(missing); err != nil {
		t.Fatalf("set storage root: %v", err)
	}
	if len(r.Pathways()) != 0 {
		t.Fatalf("expected empty registry")
	}
	if err := r.SetStorageRoot("relative/root"); err == nil {
		t.Fatalf("expected configuration error for relative root")
	}
}

func TestSetStorageRootRescans(t *testing.T) {
	r := newTestRegistry(t, 3, time.Second)
	other := t.TempDir()
	writeFile(t, filepath.Join(other, "elsewhere", "a.sav"), baseTime)
	if _, err := r.SetCurrent("here"); err != nil {
		t.Fatalf("set current: %v", err)
	}
	if err := r.SetStorageRoot(other); err != nil {
		t.Fatalf("set storage root: %v", err)
	}
	if r.Current() != nil {
		t.Fatalf("selection should be dropped on root change")
	}
	if _, ok := r.Get("elsewhere"); !ok {
		t.Fatalf("expected pathway from the new root")
	}
	if _, ok := r.Get("here"); ok {
		t.Fatalf("old pathway should be gone")
	}
}

func TestSelectMostRecent(t *testing.T) {
	r := newTestRegistry(t, 3, time.Second)
	root := r.Settings().Root()

	if p, ok := r.SelectMostRecent(); ok || p != nil {
		t.Fatalf("empty registry should not select")
	}

	writeFile(t, filepath.Join(root, "old", "a.sav"), baseTime)
	writeFile(t, filepath.Join(root, "new", "b.sav"), baseTime.Add(time.Hour))
	writeFile(t, filepath.Join(root, "mid", "auto_save_1.sav"), baseTime.Add(time.Minute))
	if err := os.MkdirAll(filepath.Join(root, "blank"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := r.RefreshAll(); err != nil {
		t.Fatalf("refresh all: %v", err)
	}
	var changed string
	r.OnCurrentPathwayChanged(func(p *pathway.Pathway) { changed = p.ID() })
	p, ok := r.SelectMostRecent()
	if !ok || p.ID() != "new" {
		t.Fatalf("selected %v ok=%v, want new", p, ok)
	}
	if changed != "new" || r.Current().ID() != "new" {
		t.Fatalf("expected change event for new, got %q", changed)
	}
}

func TestSelectMostRecentKeepsSelectionWithoutFiles(t *testing.T) {
	r := newTestRegistry(t, 3, time.Second)
	if _, err := r.SetCurrent("only"); err != nil {
		t.Fatalf("set current: %v", err)
	}
	if _, ok := r.SelectMostRecent(); ok {
		t.Fatalf("no files means no selection change")
	}
	if r.Current() == nil || r.Current().ID() != "only" {
		t.Fatalf("selection should be unchanged")
	}
}

func TestDeleteFileMissingDoesNotRefresh(t *testing.T) {
	r := newTestRegistry(t, 3, time.Second)
	if deleted, err := r.DeleteFile("anything"); deleted || err != nil {
		t.Fatalf("delete without selection = %v, %v", deleted, err)
	}
	p, err := r.SetCurrent("campaign")
	if err != nil {
		t.Fatalf("set current: %v", err)
	}
	gen := p.Generation()
	deleted, err := r.DeleteFile("ghost")
	if deleted || err != nil {
		t.Fatalf("delete missing = %v, %v; want false, nil", deleted, err)
	}
	if p.Generation() != gen {
		t.Fatalf("missing file delete must not refresh")
	}

	writeFile(t, filepath.Join(p.Dir(), "real.sav"), baseTime)
	deleted, err = r.DeleteFile("real")
	if !deleted || err != nil {
		t.Fatalf("delete real = %v, %v", deleted, err)
	}
	if r.Current() != p {
		t.Fatalf("file deletion must keep the selection")
	}
}

func TestDeleteCurrent(t *testing.T) {
	r := newTestRegistry(t, 3, time.Second)
	if deleted, err := r.DeleteCurrent(); deleted || err != nil {
		t.Fatalf("delete without selection = %v, %v", deleted, err)
	}
	root := r.Settings().Root()
	writeFile(t, filepath.Join(root, "keep", "a.sav"), baseTime)
	p, err := r.SetCurrent("doomed")
	if err != nil {
		t.Fatalf("set current: %v", err)
	}
	if deleted, err := r.DeleteCurrent(); deleted || err != nil {
		t.Fatalf("delete of never-created dir = %v, %v; want false, nil", deleted, err)
	}

	writeFile(t, filepath.Join(p.Dir(), "b.sav"), baseTime)
	deleted, err := r.DeleteCurrent()
	if !deleted || err != nil {
		t.Fatalf("delete current = %v, %v", deleted, err)
	}
	if r.Current() != nil {
		t.Fatalf("selection should be lost after delete")
	}
	if _, ok := r.Get("doomed"); ok {
		t.Fatalf("deleted pathway should not be registered")
	}
	if _, ok := r.Get("keep"); !ok {
		t.Fatalf("other pathways should be re-scanned")
	}
	if _, err := os.Stat(p.Dir()); !os.IsNotExist(err) {
		t.Fatalf("directory should be removed")
	}
}

func TestRefreshAllKeepsSelectionConsistentUnderConcurrentSelect(t *testing.T) {
	r := newTestRegistry(t, 3, time.Second)
	root := r.Settings().Root()
	for i := 0; i < 100; i++ {
		writeFile(t, filepath.Join(root, fmt.Sprintf("pw%03d", i), "a.sav"), baseTime)
	}
	writeFile(t, filepath.Join(root, "target", "a.sav"), baseTime)

	for round := 0; round < 25; round++ {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := r.RefreshAll(); err != nil {
				t.Errorf("refresh all: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			time.Sleep(200 * time.Microsecond)
			if _, err := r.SetCurrent("target"); err != nil {
				t.Errorf("set current: %v", err)
			}
		}()
		wg.Wait()

		cur := r.Current()
		if cur == nil {
			continue
		}
		registered, ok := r.Get(cur.ID())
		if !ok || registered != cur {
			t.Fatalf("round %d: current pathway %q is not the registered instance", round, cur.ID())
		}
	}
}

func TestDeleteMissingIsAuditedAsNoop(t *testing.T) {
	settings, err := pathway.NewSettings(pathway.Options{Root: t.TempDir(), Slots: 3})
	if err != nil {
		t.Fatalf("new settings: %v", err)
	}
	logPath := filepath.Join(t.TempDir(), "audit.log")
	r, err := New(settings, AutoSave{Enabled: true, Interval: time.Second}, audit.New(logPath))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if _, err := r.SetCurrent("campaign"); err != nil {
		t.Fatalf("set current: %v", err)
	}
	if deleted, err := r.DeleteFile("ghost"); deleted || err != nil {
		t.Fatalf("delete missing file = %v, %v", deleted, err)
	}
	if deleted, err := r.DeleteCurrent(); deleted || err != nil {
		t.Fatalf("delete missing dir = %v, %v", deleted, err)
	}

	events, err := audit.ReadAll(logPath)
	if err != nil {
		t.Fatalf("read audit: %v", err)
	}
	got := map[string]string{}
	for _, ev := range events {
		if strings.HasPrefix(ev.Operation, "delete_") {
			got[ev.Operation] = ev.Status
		}
	}
	if got["delete_file"] != audit.StatusNoop || got["delete_pathway"] != audit.StatusNoop {
		t.Fatalf("expected noop delete events, got %+v", got)
	}
}
