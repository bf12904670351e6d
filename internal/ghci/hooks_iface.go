package ghci

import (
	"context"

	"github.com/ghciwatch/ghciwatch/internal/ghcmessage"
	"github.com/ghciwatch/ghciwatch/internal/reader"
)

// HookEvent is one of the four points in the reload lifecycle a hook
// can be attached to.
type HookEvent int

const (
	EventStartup HookEvent = iota
	EventReload
	EventRestart
	EventTest
)

// HookWhen is when within an event a hook runs. Test hooks always use
// WhenDuring; the others use WhenBefore/WhenAfter.
type HookWhen int

const (
	WhenBefore HookWhen = iota
	WhenDuring
	WhenAfter
)

// HookRunner is the driver's view of the hook runner (internal/hooks):
// just enough to let the reload cycle trigger phases without the ghci
// package depending on hooks (which itself depends on ghci to execute
// Ghci-kind hook commands).
type HookRunner interface {
	Run(ctx context.Context, event HookEvent, when HookWhen)
}

// RunGhciLine writes one verbatim line to ghci's stdin and consumes
// exactly one prompt in response. Used by the hook runner to execute
// Ghci-kind hook commands, which must be written one line per prompt
// (multi-line definitions are the caller's responsibility to wrap in
// :{ / :}).
func (d *Driver) RunGhciLine(ctx context.Context, line string) ([]ghcmessage.GhcMessage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.write(line + "\n"); err != nil {
		return nil, err
	}
	return d.readChunk(ctx, reader.Write)
}
