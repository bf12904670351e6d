package watch

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/ghciwatch/ghciwatch/internal/fileevent"
	"github.com/ghciwatch/ghciwatch/internal/normalpath"
)

// DefaultPollInterval is used when PollBackend.Interval is unset.
const DefaultPollInterval = time.Second

// PollBackend watches directories by repeatedly scanning the tree and
// diffing mtimes, for filesystems where kernel notifications are
// unavailable or unreliable (network mounts, some containers). One
// poll interval is itself the debounce window: every scan produces at
// most one batch.
type PollBackend struct {
	BaseDir  string
	Interval time.Duration
}

type fileState struct {
	modTime time.Time
	size    int64
}

// Run implements Backend.
func (b *PollBackend) Run(ctx context.Context, roots []string) (<-chan []fileevent.RawEvent, <-chan error) {
	out := make(chan []fileevent.RawEvent)
	errCh := make(chan error, 1)

	interval := b.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	go func() {
		defer close(out)

		prev := scan(roots)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cur := scan(roots)
				batch := diff(prev, cur, b.BaseDir)
				prev = cur
				if len(batch) == 0 {
					continue
				}
				select {
				case out <- batch:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, errCh
}

func scan(roots []string) map[string]fileState {
	states := map[string]fileState{}
	for _, root := range roots {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			states[path] = fileState{modTime: info.ModTime(), size: info.Size()}
			return nil
		})
	}
	return states
}

func diff(prev, cur map[string]fileState, base string) []fileevent.RawEvent {
	var events []fileevent.RawEvent

	for path, s := range cur {
		old, existed := prev[path]
		switch {
		case !existed:
			events = append(events, fileevent.RawEvent{
				Path:  normalpath.New(path, base),
				Kinds: []fileevent.Kind{fileevent.CreateFile},
				After: fileevent.TypeFile,
			})
		case old != s:
			events = append(events, fileevent.RawEvent{
				Path:  normalpath.New(path, base),
				Kinds: []fileevent.Kind{fileevent.ModifyData},
				After: fileevent.TypeFile,
			})
		}
	}

	for path := range prev {
		if _, ok := cur[path]; !ok {
			events = append(events, fileevent.RawEvent{
				Path:  normalpath.New(path, base),
				Kinds: []fileevent.Kind{fileevent.RemoveFile},
				After: fileevent.TypeAbsent,
			})
		}
	}

	return events
}
