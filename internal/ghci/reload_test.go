package ghci

import (
	"testing"

	"github.com/ghciwatch/ghciwatch/internal/fileevent"
	"github.com/ghciwatch/ghciwatch/internal/glob"
)

func TestPlanReload_ModifyNewHaskellFileNeedsAdd(t *testing.T) {
	modules := NewModuleSet()
	p := path(t, "Foo.hs")

	actions := PlanReload([]fileevent.Event{fileevent.Modify(p)}, modules, Globs{})

	if len(actions.NeedsAdd) != 1 || !actions.NeedsAdd[0].Equal(p) {
		t.Fatalf("got %+v", actions)
	}
	if actions.Kind() != KindReload {
		t.Errorf("Kind() = %v, want KindReload", actions.Kind())
	}
}

func TestPlanReload_ModifyKnownHaskellFileNeedsReload(t *testing.T) {
	modules := NewModuleSet()
	p := path(t, "Foo.hs")
	modules.MarkLoaded(LoadedModule{Path: p})

	actions := PlanReload([]fileevent.Event{fileevent.Modify(p)}, modules, Globs{})

	if len(actions.NeedsReload) != 1 || !actions.NeedsReload[0].Equal(p) {
		t.Fatalf("got %+v", actions)
	}
}

func TestPlanReload_RemoveKnownHaskellFileForcesRestart(t *testing.T) {
	modules := NewModuleSet()
	p := path(t, "Foo.hs")
	modules.MarkLoaded(LoadedModule{Path: p})

	actions := PlanReload([]fileevent.Event{fileevent.Remove(p)}, modules, Globs{})

	if len(actions.NeedsRestart) != 1 || !actions.NeedsRestart[0].Equal(p) {
		t.Fatalf("got %+v", actions)
	}
	if actions.Kind() != KindRestart {
		t.Errorf("Kind() = %v, want KindRestart", actions.Kind())
	}
	if len(actions.NeedsRemove) != 1 {
		t.Errorf("expected NeedsRemove to record the path regardless, got %+v", actions.NeedsRemove)
	}
}

func TestPlanReload_RemoveUnknownFileIsIgnoredForRestart(t *testing.T) {
	modules := NewModuleSet()
	p := path(t, "Untracked.hs")

	actions := PlanReload([]fileevent.Event{fileevent.Remove(p)}, modules, Globs{})

	if len(actions.NeedsRestart) != 0 {
		t.Fatalf("got %+v, want no restart for an untracked removal", actions)
	}
	if actions.Kind() != KindNone {
		t.Errorf("Kind() = %v, want KindNone", actions.Kind())
	}
}

func TestPlanReload_NonHaskellFileFollowsGlobs(t *testing.T) {
	modules := NewModuleSet()
	restartGlobs, err := glob.Compile([]string{"*.cabal"})
	if err != nil {
		t.Fatal(err)
	}
	reloadGlobs, err := glob.Compile([]string{"*.yaml"})
	if err != nil {
		t.Fatal(err)
	}
	globs := Globs{Reload: reloadGlobs, Restart: restartGlobs}

	restartPath := path(t, "project.cabal")
	reloadPath := path(t, "config.yaml")
	ignoredPath := path(t, "README.md")

	actions := PlanReload([]fileevent.Event{
		fileevent.Modify(restartPath),
		fileevent.Modify(reloadPath),
		fileevent.Modify(ignoredPath),
	}, modules, globs)

	if len(actions.NeedsRestart) != 1 || !actions.NeedsRestart[0].Equal(restartPath) {
		t.Errorf("NeedsRestart = %+v", actions.NeedsRestart)
	}
	if len(actions.NeedsReload) != 1 || !actions.NeedsReload[0].Equal(reloadPath) {
		t.Errorf("NeedsReload = %+v", actions.NeedsReload)
	}
	if len(actions.NeedsAdd) != 0 {
		t.Errorf("NeedsAdd = %+v, want empty (README.md matches neither glob)", actions.NeedsAdd)
	}
}

func TestReloadActions_IsEmpty(t *testing.T) {
	var actions ReloadActions
	if !actions.IsEmpty() {
		t.Fatal("zero-value ReloadActions should be empty")
	}
	actions.NeedsAdd = append(actions.NeedsAdd, path(t, "Foo.hs"))
	if actions.IsEmpty() {
		t.Fatal("ReloadActions with a pending add should not be empty")
	}
}
