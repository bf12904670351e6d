// Package shutdown implements a centralized cooperative cancellation
// manager: tasks register with a name, learn when shutdown has been
// requested, and the manager waits for them all to drain (or forces
// an abort on a second SIGINT, or a timeout).
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrShutdownRequested is returned by a task's function to signal that
// it stopped because shutdown was requested, not because it failed.
// The manager does not count this as a task failure.
var ErrShutdownRequested = errors.New("shutdown requested")

// Manager tracks spawned tasks and broadcasts shutdown.
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	tasks   []*task
	wg      sync.WaitGroup
	drops   int // outstanding Handle clones
	dropped chan struct{}

	abortOnce sync.Once
	abort     chan struct{}
}

type task struct {
	name string
	err  error
}

// New constructs a Manager with one initial Handle reference (the
// caller's own); callers that hand Handles to other goroutines should
// call Handle.Clone for each and Close it when done.
func New() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{ctx: ctx, cancel: cancel, drops: 1, dropped: make(chan struct{}), abort: make(chan struct{})}
	return m
}

// Handle lets a task observe and request shutdown. Cloning is cheap;
// each clone holds a drop-guard that must be Closed, and the drain
// wait completes only once every clone has been.
type Handle struct {
	m *Manager
}

// Handle returns a Handle referencing m. Its drop-guard is the
// initial reference held since New(); Close it when the top-level
// caller no longer needs to observe shutdown.
func (m *Manager) Handle() *Handle { return &Handle{m: m} }

// Clone returns a new Handle sharing m, incrementing the outstanding
// drop-guard count.
func (h *Handle) Clone() *Handle {
	h.m.mu.Lock()
	h.m.drops++
	h.m.mu.Unlock()
	return &Handle{m: h.m}
}

// Close releases this Handle's drop-guard. Once every clone (including
// the original) has been closed, WaitForShutdown's drain condition can
// be satisfied.
func (h *Handle) Close() {
	h.m.mu.Lock()
	h.m.drops--
	remaining := h.m.drops
	h.m.mu.Unlock()
	if remaining == 0 {
		close(h.m.dropped)
	}
}

// OnShutdownRequested returns a channel that closes when shutdown has
// been requested — a suspension point a task selects on alongside its
// own work.
func (h *Handle) OnShutdownRequested() <-chan struct{} { return h.m.ctx.Done() }

// RequestShutdown broadcasts the shutdown signal to every task.
func (h *Handle) RequestShutdown() { h.m.cancel() }

// Spawn registers and starts a task running f in its own goroutine. f
// receives the manager's context, cancelled when shutdown is
// requested. Its name is preserved for diagnostics in the aggregate
// error WaitForShutdown may return.
func (m *Manager) Spawn(name string, f func(ctx context.Context) error) {
	t := &task{name: name}
	m.mu.Lock()
	m.tasks = append(m.tasks, t)
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		t.err = f(m.ctx)
	}()
}

// WaitForShutdown completes when either all spawned tasks (and all
// Handle clones) have drained, a second SIGINT forces an immediate
// abort, or timeout expires. It returns an aggregate error naming
// every task that failed with something other than
// ErrShutdownRequested.
func (m *Manager) WaitForShutdown(timeout time.Duration) error {
	drained := make(chan struct{})
	go func() {
		m.wg.Wait()
		<-m.dropped
		close(drained)
	}()

	select {
	case <-drained:
	case <-m.abort:
		slog.Warn("shutdown forced, abandoning outstanding tasks")
	case <-time.After(timeout):
		slog.Warn("shutdown drain timed out, abandoning outstanding tasks", "timeout", timeout)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var failures []string
	for _, t := range m.tasks {
		if t.err != nil && !errors.Is(t.err, ErrShutdownRequested) {
			failures = append(failures, fmt.Sprintf("%s: %v", t.name, t.err))
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return fmt.Errorf("tasks failed during shutdown: %v", failures)
}

// ForceAbort cancels the manager's context and unblocks any in-flight
// WaitForShutdown immediately, bypassing the drain wait; a caller
// observing two sequential SIGINTs calls this instead of a graceful
// RequestShutdown.
func (m *Manager) ForceAbort() {
	m.cancel()
	m.abortOnce.Do(func() { close(m.abort) })
}
