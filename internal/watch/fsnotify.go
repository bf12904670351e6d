package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ghciwatch/ghciwatch/internal/fileevent"
	"github.com/ghciwatch/ghciwatch/internal/normalpath"
)

// DefaultDebounce is the window used to coalesce a burst of
// filesystem events into one batch.
const DefaultDebounce = 500 * time.Millisecond

// NotifyBackend watches directories using kernel filesystem
// notifications (inotify/kqueue/ReadDirectoryChangesW via fsnotify),
// debouncing bursts into single batches. Grounded on the select-loop
// structure of a debounced fsnotify watcher driving a single consumer.
type NotifyBackend struct {
	BaseDir  string
	Debounce time.Duration
}

// Run implements Backend.
func (b *NotifyBackend) Run(ctx context.Context, roots []string) (<-chan []fileevent.RawEvent, <-chan error) {
	out := make(chan []fileevent.RawEvent)
	errCh := make(chan error, 1)

	debounce := b.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		errCh <- fmt.Errorf("creating file watcher: %w", err)
		close(out)
		return out, errCh
	}

	for _, root := range roots {
		if err := addRecursive(watcher, root); err != nil {
			slog.Warn("could not watch directory", "root", root, "err", err)
		}
	}

	go func() {
		defer close(out)
		defer func() { _ = watcher.Close() }()

		var timer *time.Timer
		var timerCh <-chan time.Time
		pending := map[string]*fileevent.RawEvent{}

		flush := func() {
			if len(pending) == 0 {
				return
			}
			batch := make([]fileevent.RawEvent, 0, len(pending))
			for _, e := range pending {
				batch = append(batch, *e)
			}
			pending = map[string]*fileevent.RawEvent{}
			select {
			case out <- batch:
			case <-ctx.Done():
			}
		}

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				raw := classifyFsnotifyEvent(ev, b.BaseDir)
				pending[raw.Path.Key()] = &raw
				if timer == nil {
					timer = time.NewTimer(debounce)
					timerCh = timer.C
				} else {
					if !timer.Stop() {
						select {
						case <-timerCh:
						default:
						}
					}
					timer.Reset(debounce)
				}

			case <-timerCh:
				timer = nil
				timerCh = nil
				flush()

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				select {
				case errCh <- fmt.Errorf("watcher error: %w", err):
				default:
				}
			}
		}
	}()

	return out, errCh
}

func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := w.Add(path); err != nil {
				slog.Debug("cannot watch directory", "path", path, "err", err)
			}
		}
		return nil
	})
}

func classifyFsnotifyEvent(ev fsnotify.Event, base string) fileevent.RawEvent {
	var kinds []fileevent.Kind
	if ev.Has(fsnotify.Create) {
		kinds = append(kinds, fileevent.CreateFile)
	}
	if ev.Has(fsnotify.Write) {
		kinds = append(kinds, fileevent.ModifyData)
	}
	if ev.Has(fsnotify.Rename) {
		kinds = append(kinds, fileevent.ModifyName)
	}
	if ev.Has(fsnotify.Remove) {
		kinds = append(kinds, fileevent.RemoveFile)
	}
	if ev.Has(fsnotify.Chmod) {
		kinds = append(kinds, fileevent.Metadata)
	}

	after := statType(ev.Name)
	return fileevent.RawEvent{
		Path:  normalpath.New(ev.Name, base),
		Kinds: kinds,
		After: after,
	}
}
