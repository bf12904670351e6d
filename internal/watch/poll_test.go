package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ghciwatch/ghciwatch/internal/fileevent"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func kindsOf(events []fileevent.RawEvent, path string) []fileevent.Kind {
	for _, e := range events {
		if e.Path.Absolute() == path {
			return e.Kinds
		}
	}
	return nil
}

func TestScanAndDiff_DetectsCreateModifyRemove(t *testing.T) {
	dir := t.TempDir()
	kept := filepath.Join(dir, "Kept.hs")
	removed := filepath.Join(dir, "Removed.hs")

	writeFile(t, kept, "module Kept where\n")
	writeFile(t, removed, "module Removed where\n")

	prev := scan([]string{dir})

	// Force a distinguishable mtime for the modify case.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(kept, future, future); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
	if err := os.Remove(removed); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	created := filepath.Join(dir, "Created.hs")
	writeFile(t, created, "module Created where\n")

	cur := scan([]string{dir})
	events := diff(prev, cur, dir)

	if got := kindsOf(events, created); len(got) != 1 || got[0] != fileevent.CreateFile {
		t.Errorf("Created.hs kinds = %v, want [CreateFile]", got)
	}
	if got := kindsOf(events, kept); len(got) != 1 || got[0] != fileevent.ModifyData {
		t.Errorf("Kept.hs kinds = %v, want [ModifyData]", got)
	}
	if got := kindsOf(events, removed); len(got) != 1 || got[0] != fileevent.RemoveFile {
		t.Errorf("Removed.hs kinds = %v, want [RemoveFile]", got)
	}
}

func TestDiff_NoChangesProducesNoEvents(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Stable.hs"), "module Stable where\n")

	states := scan([]string{dir})
	events := diff(states, states, dir)

	if len(events) != 0 {
		t.Errorf("diff of identical scans produced %d events, want 0", len(events))
	}
}

func TestPollBackend_DefaultIntervalIsUsedWhenUnset(t *testing.T) {
	b := &PollBackend{BaseDir: t.TempDir()}
	if b.Interval != 0 {
		t.Fatalf("expected zero-value Interval in this fixture, got %v", b.Interval)
	}
	// Run must fall back to DefaultPollInterval rather than busy-looping on
	// a zero-duration ticker; a zero-duration ticker would panic, so simply
	// starting and stopping it promptly is the observable contract here.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	out, errCh := b.Run(ctx, []string{b.BaseDir})
	select {
	case _, ok := <-out:
		if ok {
			t.Fatal("expected the output channel to close without emitting a batch")
		}
	case err := <-errCh:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
