package hooks

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ghciwatch/ghciwatch/internal/ghci"
)

func TestRunner_ShellHooksRunInDeclarationOrder(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "order")

	r := NewRunner([]Hook{
		{Event: ghci.EventReload, When: ghci.WhenBefore, Kind: KindShell, Command: "sh -c 'echo one >> " + marker + "'"},
		{Event: ghci.EventReload, When: ghci.WhenBefore, Kind: KindShell, Command: "sh -c 'echo two >> " + marker + "'"},
	}, nil)

	r.Run(context.Background(), ghci.EventReload, ghci.WhenBefore)

	got, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("reading marker file: %v", err)
	}
	want := "one\ntwo\n"
	if string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRunner_OnlyMatchingEventAndWhenRun(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "marker")

	r := NewRunner([]Hook{
		{Event: ghci.EventRestart, When: ghci.WhenBefore, Kind: KindShell, Command: "sh -c 'touch " + marker + "'"},
	}, nil)

	r.Run(context.Background(), ghci.EventReload, ghci.WhenBefore)

	if _, err := os.Stat(marker); err == nil {
		t.Fatal("hook for a different event/when ran")
	}
}

func TestRunner_NonZeroExitIsLoggedNotFatal(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "marker")

	r := NewRunner([]Hook{
		{Event: ghci.EventReload, When: ghci.WhenAfter, Kind: KindShell, Command: "sh -c 'exit 1'"},
		{Event: ghci.EventReload, When: ghci.WhenAfter, Kind: KindShell, Command: "sh -c 'touch " + marker + "'"},
	}, nil)

	r.Run(context.Background(), ghci.EventReload, ghci.WhenAfter)

	if _, err := os.Stat(marker); err != nil {
		t.Fatal("a failing hook should not prevent subsequent hooks from running")
	}
}

func TestRunner_AsyncShellHookIsTrackedAndKillable(t *testing.T) {
	r := NewRunner([]Hook{
		{Event: ghci.EventStartup, When: ghci.WhenBefore, Kind: KindShell, Command: "async:sleep 30"},
	}, nil)

	r.Run(context.Background(), ghci.EventStartup, ghci.WhenBefore)

	r.mu.Lock()
	n := len(r.async)
	r.mu.Unlock()
	if n != 1 {
		t.Fatalf("got %d tracked async hooks, want 1", n)
	}

	r.StopAsync()

	r.mu.Lock()
	n = len(r.async)
	r.mu.Unlock()
	if n != 0 {
		t.Fatalf("StopAsync should clear tracked hooks, got %d remaining", n)
	}
}

func TestSplitShellWords(t *testing.T) {
	got, err := splitShellWords(`sh -c 'echo "hi there"'`)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"sh", "-c", `echo "hi there"`}
	if len(got) != len(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("word %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitShellWords_UnterminatedQuoteErrors(t *testing.T) {
	if _, err := splitShellWords(`echo 'unterminated`); err == nil {
		t.Fatal("expected an error for an unterminated quote")
	}
}
