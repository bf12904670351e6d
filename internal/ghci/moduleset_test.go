package ghci

import (
	"testing"

	"github.com/ghciwatch/ghciwatch/internal/ghcmessage"
	"github.com/ghciwatch/ghciwatch/internal/normalpath"
)

func path(t *testing.T, rel string) normalpath.NormalPath {
	t.Helper()
	return normalpath.New(rel, "/project")
}

func ghcMessageCompiling(name, path string) ghcmessage.GhcMessage {
	return ghcmessage.GhcMessage{
		Kind:      ghcmessage.KindCompiling,
		Compiling: ghcmessage.CompilingModule{Name: name, Path: path},
	}
}

func ghcMessageDiagnosticError(path string) ghcmessage.GhcMessage {
	return ghcmessage.GhcMessage{
		Kind:       ghcmessage.KindDiagnostic,
		Diagnostic: ghcmessage.GhcDiagnostic{Severity: ghcmessage.Error, Path: path, Message: "boom"},
	}
}

func TestModuleSet_MarkLoadedThenFailed(t *testing.T) {
	s := NewModuleSet()
	p := path(t, "Foo.hs")

	s.MarkLoaded(LoadedModule{Path: p, Name: "Foo"})
	if !s.Contains(p) {
		t.Fatal("expected module to be tracked after MarkLoaded")
	}
	if len(s.Loaded()) != 1 || len(s.Failed()) != 0 {
		t.Fatalf("got loaded=%d failed=%d, want 1/0", len(s.Loaded()), len(s.Failed()))
	}

	s.MarkFailed(p)
	if len(s.Loaded()) != 0 || len(s.Failed()) != 1 {
		t.Fatalf("got loaded=%d failed=%d, want 0/1", len(s.Loaded()), len(s.Failed()))
	}
	if s.Failed()[0].Name != "Foo" {
		t.Errorf("expected Name to survive the loaded->failed transition, got %q", s.Failed()[0].Name)
	}
}

func TestModuleSet_MarkLoadedClearsFailed(t *testing.T) {
	s := NewModuleSet()
	p := path(t, "Foo.hs")

	s.MarkFailed(p)
	s.MarkLoaded(LoadedModule{Path: p, Name: "Foo"})

	if len(s.Failed()) != 0 {
		t.Fatalf("expected failed set to be empty, got %d", len(s.Failed()))
	}
	if len(s.Loaded()) != 1 {
		t.Fatalf("expected loaded set to have one entry, got %d", len(s.Loaded()))
	}
}

func TestModuleSet_Remove(t *testing.T) {
	s := NewModuleSet()
	p := path(t, "Foo.hs")
	s.MarkLoaded(LoadedModule{Path: p})

	s.Remove(p)
	if s.Contains(p) {
		t.Fatal("expected module to be untracked after Remove")
	}
}

func TestModuleSet_ReplaceAll(t *testing.T) {
	s := NewModuleSet()
	s.MarkLoaded(LoadedModule{Path: path(t, "Stale.hs")})

	loaded := []LoadedModule{{Path: path(t, "Foo.hs")}}
	failed := []LoadedModule{{Path: path(t, "Bar.hs")}}
	s.ReplaceAll(loaded, failed)

	if s.Contains(path(t, "Stale.hs")) {
		t.Fatal("expected stale entry to be discarded by ReplaceAll")
	}
	if !s.Contains(path(t, "Foo.hs")) || !s.Contains(path(t, "Bar.hs")) {
		t.Fatal("expected replaced entries to be tracked")
	}
}

func TestModuleSet_LoadedSortedByPath(t *testing.T) {
	s := NewModuleSet()
	s.MarkLoaded(LoadedModule{Path: path(t, "Zeta.hs")})
	s.MarkLoaded(LoadedModule{Path: path(t, "Alpha.hs")})

	loaded := s.Loaded()
	if len(loaded) != 2 {
		t.Fatalf("got %d modules, want 2", len(loaded))
	}
	if loaded[0].Path.String() != "Alpha.hs" || loaded[1].Path.String() != "Zeta.hs" {
		t.Errorf("got order %q, %q; want Alpha.hs, Zeta.hs", loaded[0].Path.String(), loaded[1].Path.String())
	}
}

func TestCompilationLog_Append(t *testing.T) {
	var log CompilationLog
	log.Append(ghcMessageCompiling("Foo", "Foo.hs"))
	log.Append(ghcMessageDiagnosticError("Foo.hs"))

	if len(log.Compiled) != 1 || log.Compiled[0].Name != "Foo" {
		t.Errorf("got Compiled=%+v", log.Compiled)
	}
	if len(log.Diagnostics) != 1 {
		t.Errorf("got Diagnostics=%+v", log.Diagnostics)
	}
}
