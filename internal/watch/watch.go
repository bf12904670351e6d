// Package watch implements the filesystem watcher interface behind
// the supervisor's event loop: produce debounced batches of raw
// events for the classifier in internal/fileevent. Two backends exist
// — a notification-based one (fsnotify) and a polling fallback — so
// the classifier is written once against the abstract Backend
// interface.
package watch

import (
	"context"

	"github.com/ghciwatch/ghciwatch/internal/fileevent"
)

// Backend produces batches of raw filesystem events. Batches arrive
// already debounced: backends are expected to coalesce bursts within
// window before sending.
type Backend interface {
	// Run watches the given root directories until ctx is cancelled,
	// sending one batch per debounce window on the returned channel.
	// Run returns at once; the batch channel is closed when watching
	// stops.
	Run(ctx context.Context, roots []string) (<-chan []fileevent.RawEvent, <-chan error)
}
