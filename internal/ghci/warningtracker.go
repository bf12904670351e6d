package ghci

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ghciwatch/ghciwatch/internal/ghcmessage"
	"github.com/ghciwatch/ghciwatch/internal/normalpath"
)

// WarningTracker carries diagnostics across recompilations so warnings
// emitted on one reload survive an unrelated dependency edit that
// triggers the next one.
type WarningTracker struct {
	byPath           map[string][]ghcmessage.GhcDiagnostic
	paths            map[string]normalpath.NormalPath // Key() -> path, for sorted rendering
	changedThisCycle map[string]bool
}

// NewWarningTracker returns an empty tracker.
func NewWarningTracker() *WarningTracker {
	return &WarningTracker{
		byPath: map[string][]ghcmessage.GhcDiagnostic{},
		paths:  map[string]normalpath.NormalPath{},
	}
}

// BeginCycle clears changed_this_cycle and records every path about to
// be reloaded or added.
func (t *WarningTracker) BeginCycle(needsReload, needsAdd []normalpath.NormalPath) {
	t.changedThisCycle = make(map[string]bool, len(needsReload)+len(needsAdd))
	for _, p := range needsReload {
		t.changedThisCycle[p.Key()] = true
		t.paths[p.Key()] = p
	}
	for _, p := range needsAdd {
		t.changedThisCycle[p.Key()] = true
		t.paths[p.Key()] = p
	}
}

// EndCycle applies steps 4-5 of the lifecycle: for each compiled
// module, refresh, clear, or preserve its tracker entry; for every
// removed path, delete its entry.
func (t *WarningTracker) EndCycle(diagnostics []ghcmessage.GhcDiagnostic, compiled []ghcmessage.CompilingModule, needsRemove []normalpath.NormalPath) {
	newByPath := map[string][]ghcmessage.GhcDiagnostic{}
	for _, d := range diagnostics {
		if d.Path == "" {
			continue
		}
		newByPath[d.Path] = append(newByPath[d.Path], d)
	}

	for _, c := range compiled {
		key := c.Path
		if ds, ok := newByPath[key]; ok {
			t.setByDisplayKey(key, ds)
		} else if t.changedByDisplayKey(key) {
			t.clearByDisplayKey(key)
		}
		// else: dependency-driven recompile with no new diagnostics;
		// keep the existing entry untouched.
	}

	for _, p := range needsRemove {
		delete(t.byPath, p.Key())
		delete(t.paths, p.Key())
	}
}

// setByDisplayKey and friends resolve a diagnostic's raw path string
// (as printed by ghci, which may be relative) back to the NormalPath
// key this tracker indexes by, falling back to registering it fresh
// if the cycle never saw this path via BeginCycle (e.g. a
// dependency-only compile the reload planner never classified).
func (t *WarningTracker) keyFor(rawPath string) string {
	for k, p := range t.paths {
		if p.String() == rawPath || p.Absolute() == rawPath {
			return k
		}
	}
	return rawPath
}

func (t *WarningTracker) setByDisplayKey(rawPath string, ds []ghcmessage.GhcDiagnostic) {
	t.byPath[t.keyFor(rawPath)] = ds
}

func (t *WarningTracker) clearByDisplayKey(rawPath string) {
	delete(t.byPath, t.keyFor(rawPath))
}

func (t *WarningTracker) changedByDisplayKey(rawPath string) bool {
	return t.changedThisCycle[t.keyFor(rawPath)]
}

// Diagnostics returns all currently tracked diagnostics, sorted by
// path, for deterministic error-log rendering.
func (t *WarningTracker) Diagnostics() []ghcmessage.GhcDiagnostic {
	keys := make([]string, 0, len(t.byPath))
	for k := range t.byPath {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []ghcmessage.GhcDiagnostic
	for _, k := range keys {
		ds := t.byPath[k]
		sorted := append([]ghcmessage.GhcDiagnostic(nil), ds...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Span.Line < sorted[j].Span.Line })
		out = append(out, sorted...)
	}
	return out
}

// WriteErrorLog renders t's diagnostics, sorted by path, to path using
// GhcDiagnostic's Display form, atomically (write to a sibling temp
// file, then rename) so external readers never see a partial write.
func WriteErrorLog(path string, t *WarningTracker) error {
	ds := t.Diagnostics()

	var content string
	if len(ds) == 0 {
		content = "All good!\n"
	} else {
		for _, d := range ds {
			content += d.String() + "\n"
		}
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".error-log-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp error log: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp error log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp error log: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming error log into place: %w", err)
	}
	return nil
}
