// Package supervisor composes the watcher, the ghci driver, and the
// shutdown manager into a single event loop: debounced file events
// drive reload cycles, and a reload already underway can be preempted
// by SIGINT when a new event merges in while it's still safe to do so.
package supervisor

import (
	"context"
	"log/slog"

	"github.com/ghciwatch/ghciwatch/internal/fileevent"
	"github.com/ghciwatch/ghciwatch/internal/ghci"
	"github.com/ghciwatch/ghciwatch/internal/shutdown"
	"github.com/ghciwatch/ghciwatch/internal/watch"
)

// Supervisor owns the top-level event loop.
type Supervisor struct {
	Driver  *ghci.Driver
	Hooks   ghci.HookRunner
	Globs   ghci.Globs
	Backend watch.Backend
	Roots   []string
	Manager *shutdown.Manager
}

// Run drives the event loop until shutdown is requested or the
// watcher channel closes. Each reload runs in its own goroutine so a
// new event can preempt it.
func (s *Supervisor) Run(ctx context.Context) error {
	handle := s.Manager.Handle()
	defer handle.Close()

	events, watchErrs := s.Backend.Run(ctx, s.Roots)

	var pending []fileevent.Event
	var reloadDone chan struct{}
	var reloadCancel context.CancelFunc
	kindCh := s.Driver.ReloadKinds()
	recordedKind := ghci.KindNone

	startReload := func() {
		if len(pending) == 0 {
			return
		}
		actions := ghci.PlanReload(pending, s.Driver.Modules(), s.Globs)
		pending = nil
		recordedKind = ghci.KindNone

		reloadCtx, cancel := context.WithCancel(ctx)
		reloadCancel = cancel
		done := make(chan struct{})
		reloadDone = done
		go func() {
			defer close(done)
			if err := s.Driver.Reload(reloadCtx, actions, s.Hooks); err != nil {
				if reloadCtx.Err() != nil {
					slog.Debug("reload preempted", "err", err)
					return
				}
				slog.Error("reload failed", "err", err)
			}
		}()
	}

	for {
		select {
		case <-handle.OnShutdownRequested():
			if reloadCancel != nil {
				reloadCancel()
			}
			return nil

		case batch, ok := <-events:
			if !ok {
				slog.Error("watcher channel closed")
				handle.RequestShutdown()
				continue
			}
			newEvents := fileevent.Classify(batch)

			if reloadDone == nil {
				pending = mergeEvents(pending, newEvents)
				startReload()
				continue
			}

			switch recordedKind {
			case ghci.KindNone, ghci.KindRestart:
				pending = mergeEvents(pending, newEvents)
			case ghci.KindReload:
				if err := s.Driver.Interrupt(); err != nil {
					slog.Warn("interrupting ghci for preemption", "err", err)
				}
				reloadCancel()
				pending = mergeEvents(pending, newEvents)
			}

		case k, ok := <-kindCh:
			if ok {
				recordedKind = k
			}

		case <-reloadDone:
			reloadDone = nil
			reloadCancel = nil
			startReload()

		case err := <-watchErrs:
			if err != nil {
				slog.Warn("watcher error", "err", err)
			}
		}
	}
}

// mergeEvents implements the event-merging rule: two pending events on
// the same path union, neither lost (a Remove always wins over a
// Modify on the same path, since removal forces the stronger action).
func mergeEvents(pending, fresh []fileevent.Event) []fileevent.Event {
	byPath := map[string]fileevent.Event{}
	order := make([]string, 0, len(pending)+len(fresh))
	add := func(e fileevent.Event) {
		k := e.Path.Key()
		if existing, ok := byPath[k]; ok {
			if existing.IsModify() && e.IsRemove() {
				byPath[k] = e
			}
			return
		}
		byPath[k] = e
		order = append(order, k)
	}
	for _, e := range pending {
		add(e)
	}
	for _, e := range fresh {
		add(e)
	}
	out := make([]fileevent.Event, 0, len(order))
	for _, k := range order {
		out = append(out, byPath[k])
	}
	return out
}
