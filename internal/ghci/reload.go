package ghci

import (
	"github.com/ghciwatch/ghciwatch/internal/fileevent"
	"github.com/ghciwatch/ghciwatch/internal/glob"
	"github.com/ghciwatch/ghciwatch/internal/normalpath"
)

// Globs bundles the two independently-configured glob matchers that
// route non-Haskell file changes to a reload or a restart.
type Globs struct {
	Reload  *glob.Matcher
	Restart *glob.Matcher
}

// PlanReload computes the ReloadActions for a batch of file events
// against the current module set, per the reload decision procedure:
// removing a tracked module (loaded or failed) always forces a restart
// (ghci cannot unload a module), whatever the globs say. Every removal
// is recorded in NeedsRemove; removals of untracked paths cause no
// restart. Neither glob matcher is consulted for removals, only for
// modifications of non-Haskell files.
func PlanReload(events []fileevent.Event, modules *ModuleSet, globs Globs) ReloadActions {
	var actions ReloadActions
	sources := modules.Sources()

	for _, ev := range events {
		p := ev.Path
		if ev.IsRemove() {
			actions.NeedsRemove = append(actions.NeedsRemove, p)
			if sources[p.Key()] {
				actions.NeedsRestart = append(actions.NeedsRestart, p)
			}
			continue
		}

		// Modify.
		if normalpath.IsHaskellSourceFile(p.String()) {
			if sources[p.Key()] {
				actions.NeedsReload = append(actions.NeedsReload, p)
			} else {
				actions.NeedsAdd = append(actions.NeedsAdd, p)
			}
			continue
		}

		rel, _ := p.Relative()
		if globs.Restart != nil && globs.Restart.IsWhitelisted(rel) {
			actions.NeedsRestart = append(actions.NeedsRestart, p)
			continue
		}
		if globs.Reload != nil && globs.Reload.IsWhitelisted(rel) {
			actions.NeedsReload = append(actions.NeedsReload, p)
			continue
		}
		// else: ignored.
	}

	return actions
}

// Kind reports which ReloadKind a as-computed ReloadActions represents.
func (a ReloadActions) Kind() ReloadKind {
	switch {
	case len(a.NeedsRestart) > 0:
		return KindRestart
	case len(a.NeedsReload) > 0 || len(a.NeedsAdd) > 0:
		return KindReload
	default:
		return KindNone
	}
}
