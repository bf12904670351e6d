// Package ghci owns the interactive compiler subprocess: it speaks the
// sentinel-delimited wire protocol, maintains the set of loaded
// modules, decides whether a batch of file events calls for a reload,
// an add, or a full restart, and carries diagnostics across
// recompilations.
package ghci

import (
	"sort"

	"github.com/ghciwatch/ghciwatch/internal/ghcmessage"
	"github.com/ghciwatch/ghciwatch/internal/normalpath"
)

// LoadedModule is a module known to the running session, identified by
// its source path. Name is the dotted module name when known (taken
// from ghci's "Compiling" lines); ByName records whether the module is
// referenced by that name rather than by path. Once a module is added
// in one form, that form must be used for every subsequent command
// against it (ghci forbids mixing the two).
type LoadedModule struct {
	Path   normalpath.NormalPath
	Name   string
	ByName bool
}

// ModuleSet tracks modules known to the session plus a companion set
// of modules that failed to compile (and so are absent from `:show
// modules` but must still be tracked so future diagnostics continue to
// attach to them correctly).
type ModuleSet struct {
	loaded map[string]LoadedModule // keyed by NormalPath.Key()
	failed map[string]LoadedModule
}

// NewModuleSet returns an empty module set.
func NewModuleSet() *ModuleSet {
	return &ModuleSet{loaded: map[string]LoadedModule{}, failed: map[string]LoadedModule{}}
}

// Sources returns the set of paths known to be loaded, independent of
// failure state.
func (s *ModuleSet) Sources() map[string]bool {
	out := make(map[string]bool, len(s.loaded)+len(s.failed))
	for k := range s.loaded {
		out[k] = true
	}
	for k := range s.failed {
		out[k] = true
	}
	return out
}

// Contains reports whether p is tracked, loaded or failed.
func (s *ModuleSet) Contains(p normalpath.NormalPath) bool {
	k := p.Key()
	_, ok := s.loaded[k]
	if ok {
		return true
	}
	_, ok = s.failed[k]
	return ok
}

// MarkLoaded records m as successfully compiled, moving it out of the
// failed set if it was there.
func (s *ModuleSet) MarkLoaded(m LoadedModule) {
	k := m.Path.Key()
	delete(s.failed, k)
	s.loaded[k] = m
}

// MarkFailed records the module at p as having failed to compile,
// moving it out of the loaded set if it was there. byName/name are
// preserved from the prior entry when known, since a compile failure
// doesn't change which form ghci knows the module by.
func (s *ModuleSet) MarkFailed(p normalpath.NormalPath) {
	k := p.Key()
	m, ok := s.loaded[k]
	if !ok {
		m = LoadedModule{Path: p}
	}
	delete(s.loaded, k)
	s.failed[k] = m
}

// Remove drops p from both sets.
func (s *ModuleSet) Remove(p normalpath.NormalPath) {
	k := p.Key()
	delete(s.loaded, k)
	delete(s.failed, k)
}

// ReplaceAll discards all tracked modules and installs a fresh set,
// used after a full re-derivation from `:show targets`.
func (s *ModuleSet) ReplaceAll(loaded, failed []LoadedModule) {
	s.loaded = make(map[string]LoadedModule, len(loaded))
	s.failed = make(map[string]LoadedModule, len(failed))
	for _, m := range loaded {
		s.loaded[m.Path.Key()] = m
	}
	for _, m := range failed {
		s.failed[m.Path.Key()] = m
	}
}

// Loaded returns the currently loaded modules, sorted by path for
// deterministic iteration.
func (s *ModuleSet) Loaded() []LoadedModule {
	return sortedValues(s.loaded)
}

// Failed returns the currently failed modules, sorted by path.
func (s *ModuleSet) Failed() []LoadedModule {
	return sortedValues(s.failed)
}

func sortedValues(m map[string]LoadedModule) []LoadedModule {
	out := make([]LoadedModule, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path.Less(out[j].Path) })
	return out
}

// ShowPaths is the result of `:show paths`: the interpreter's working
// directory and its ordered module search path list.
type ShowPaths struct {
	WorkingDir  string
	SearchPaths []string
}

// ReloadActions groups the paths a reload cycle must act on, computed
// by PlanReload from a batch of file events against the current
// module set and glob configuration.
type ReloadActions struct {
	NeedsRestart []normalpath.NormalPath
	NeedsReload  []normalpath.NormalPath
	NeedsAdd     []normalpath.NormalPath
	NeedsRemove  []normalpath.NormalPath
}

// IsEmpty reports whether no action at all is required.
func (a ReloadActions) IsEmpty() bool {
	return len(a.NeedsRestart) == 0 && len(a.NeedsReload) == 0 &&
		len(a.NeedsAdd) == 0 && len(a.NeedsRemove) == 0
}

// ReloadKind is what a planned reload will do, published before work
// begins so the supervisor can decide whether to preempt it.
type ReloadKind int

const (
	KindNone ReloadKind = iota
	KindReload
	KindRestart
)

// CompilationLog is the per-reload scratchpad accumulated while
// draining ghci's stdout: the final summary line (if any), every
// diagnostic seen, and every module ghci reported compiling.
type CompilationLog struct {
	Summary     *ghcmessage.CompilationSummary
	Diagnostics []ghcmessage.GhcDiagnostic
	Compiled    []ghcmessage.CompilingModule
}

// Append folds one parsed message into the log.
func (l *CompilationLog) Append(msg ghcmessage.GhcMessage) {
	switch msg.Kind {
	case ghcmessage.KindSummary:
		s := msg.Summary
		l.Summary = &s
	case ghcmessage.KindDiagnostic:
		l.Diagnostics = append(l.Diagnostics, msg.Diagnostic)
	case ghcmessage.KindCompiling:
		l.Compiled = append(l.Compiled, msg.Compiling)
	}
}
