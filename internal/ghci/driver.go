package ghci

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ghciwatch/ghciwatch/internal/ghcmessage"
	"github.com/ghciwatch/ghciwatch/internal/normalpath"
	"github.com/ghciwatch/ghciwatch/internal/procgroup"
	"github.com/ghciwatch/ghciwatch/internal/reader"
)

func interruptProcess(p *process) error {
	return procgroup.Interrupt(p.Pid())
}

func statExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// QuitTimeout is how long Quit waits for a graceful exit before
// escalating to SIGKILL.
const QuitTimeout = 10 * time.Second

// Options configures a Driver for one session.
type Options struct {
	Command      string   // shell command line used to launch ghci
	SetupCmds    []string // user setup commands run during initialize()
	BaseDir      string   // base directory NormalPaths are rendered relative to
	ErrorLogPath string   // destination for the rendered warning tracker; empty disables it
	Terminal     io.Writer
	Hooks        HookRunner // startup hooks; reload/restart hooks are passed to Reload directly
}

// Driver owns one ghci subprocess for its lifetime: the stdin writer,
// the stdout reader, the module set, and the warning tracker. All
// operations against the session are serialized through mu, so
// concurrent callers observe FIFO ordering against the single
// interpreter.
type Driver struct {
	opts Options

	mu      sync.Mutex
	proc    *process
	stdoutR *reader.Reader
	sync    syncCounter
	modules *ModuleSet
	paths   ShowPaths
	tracker *WarningTracker

	reloadKindCh chan ReloadKind
}

// New constructs a Driver; it does not spawn the subprocess until
// Initialize is called.
func New(opts Options) *Driver {
	return &Driver{
		opts:    opts,
		modules: NewModuleSet(),
		tracker: NewWarningTracker(),
	}
}

// SetHooks installs the hook runner used for startup hooks. It must be
// called before Initialize; reload/restart hooks are passed to Reload
// directly instead, since they run under the same caller's lock.
func (d *Driver) SetHooks(h HookRunner) { d.opts.Hooks = h }

// Modules returns the driver's current module set.
func (d *Driver) Modules() *ModuleSet { return d.modules }

// Tracker returns the driver's warning tracker.
func (d *Driver) Tracker() *WarningTracker { return d.tracker }

// ReloadKinds returns a channel on which the driver publishes, before
// each reload begins doing work, which ReloadKind that reload will be.
// The supervisor reads this to decide whether to preempt.
func (d *Driver) ReloadKinds() <-chan ReloadKind {
	if d.reloadKindCh == nil {
		d.reloadKindCh = make(chan ReloadKind, 1)
	}
	return d.reloadKindCh
}

func (d *Driver) publishKind(k ReloadKind) {
	if d.reloadKindCh == nil {
		return
	}
	select {
	case d.reloadKindCh <- k:
	default:
	}
}

// Initialize spawns ghci, installs the prompt sentinel, and runs the
// user's setup commands.
func (d *Driver) Initialize(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.opts.Hooks != nil {
		d.opts.Hooks.Run(ctx, EventStartup, WhenBefore)
	}

	proc, err := spawnGhci(d.opts.Command)
	if err != nil {
		return err
	}
	d.proc = proc
	d.stdoutR = reader.New(proc.stdout, d.opts.Terminal)

	if err := d.installPromptSentinel(ctx, reader.Hide); err != nil {
		return err
	}

	for _, setup := range d.opts.SetupCmds {
		if err := d.write(setup + "\n"); err != nil {
			return err
		}
		if _, err := d.readChunk(ctx, reader.Write); err != nil {
			return fmt.Errorf("running setup command %q: %w", setup, err)
		}
	}

	sp, err := d.showPathsLocked(ctx)
	if err != nil {
		return err
	}
	d.paths = sp

	if d.opts.Hooks != nil {
		d.opts.Hooks.Run(ctx, EventStartup, WhenAfter)
	}
	return nil
}

// installPromptSentinel runs the two-command startup sequence that
// switches ghci's prompt (and continuation prompt) to PromptSentinel.
// The first command's response is searched for the sentinel anywhere in
// the line rather than at line start: that single read absorbs all of
// the project's initial compilation output, and the point where the new
// prompt is first printed need not land at true line start. The second
// command's response behaves like any other command from then on.
func (d *Driver) installPromptSentinel(ctx context.Context, behavior reader.WriteBehavior) error {
	if err := d.write(fmt.Sprintf(":set prompt %s\n", PromptSentinel)); err != nil {
		return err
	}
	if _, err := d.stdoutR.ReadUntil(ctx, PromptSentinel, reader.Anywhere, behavior); err != nil {
		return fmt.Errorf("installing prompt: %w", err)
	}
	if err := d.write(fmt.Sprintf(":set prompt-cont %s\n", PromptSentinel)); err != nil {
		return err
	}
	if _, err := d.readChunk(ctx, behavior); err != nil {
		return fmt.Errorf("installing prompt-cont: %w", err)
	}
	return nil
}

func (d *Driver) write(s string) error {
	_, err := io.WriteString(d.proc.stdin, s)
	if err != nil {
		return fmt.Errorf("writing to ghci stdin: %w", err)
	}
	return nil
}

// readChunk reads up to the next prompt sentinel and parses it.
func (d *Driver) readChunk(ctx context.Context, behavior reader.WriteBehavior) ([]ghcmessage.GhcMessage, error) {
	chunk, err := d.stdoutR.ReadUntil(ctx, PromptSentinel, reader.LineStart, behavior)
	if err != nil {
		return nil, err
	}
	return ghcmessage.Parse(chunk), nil
}

// Reload runs one full reload cycle for events: restart short-circuits
// everything else; otherwise hooks, adds, a reload, a sync,
// module-set/tracker updates, test hooks, and after-reload hooks.
func (d *Driver) Reload(ctx context.Context, actions ReloadActions, hooks HookRunner) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.publishKind(actions.Kind())

	d.tracker.BeginCycle(actions.NeedsReload, actions.NeedsAdd)

	if len(actions.NeedsRestart) > 0 {
		if hooks != nil {
			hooks.Run(ctx, EventRestart, WhenBefore)
		}
		if err := d.restartLocked(ctx); err != nil {
			return err
		}
		if hooks != nil {
			hooks.Run(ctx, EventRestart, WhenAfter)
		}
		d.tracker.EndCycle(nil, nil, actions.NeedsRemove)
		return nil
	}

	if hooks != nil {
		hooks.Run(ctx, EventReload, WhenBefore)
	}

	var log CompilationLog

	for _, p := range actions.NeedsAdd {
		if err := d.write(":add " + p.String() + "\n"); err != nil {
			return err
		}
		msgs, err := d.readChunk(ctx, reader.Write)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			log.Append(m)
		}
	}

	if len(actions.NeedsReload) > 0 {
		if err := d.write(":reload\n"); err != nil {
			return err
		}
		msgs, err := d.readChunk(ctx, reader.Write)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			log.Append(m)
		}
	}

	if err := d.syncLocked(ctx); err != nil {
		return err
	}

	d.applyCompilationLog(log)
	if err := d.rederiveModuleSetLocked(ctx); err != nil {
		slog.Warn("re-deriving module set after reload", "err", err)
	}

	anySucceeded := log.Summary == nil || log.Summary.Result == ghcmessage.Ok
	if anySucceeded {
		d.runEvalComments(ctx, log.Compiled)
		if hooks != nil {
			hooks.Run(ctx, EventTest, WhenDuring)
		}
	} else if hooks != nil {
		slog.Debug("skipping test hooks, reload did not succeed")
	}

	if hooks != nil {
		hooks.Run(ctx, EventReload, WhenAfter)
	}

	d.tracker.EndCycle(log.Diagnostics, log.Compiled, actions.NeedsRemove)
	if d.opts.ErrorLogPath != "" {
		if err := WriteErrorLog(d.opts.ErrorLogPath, d.tracker); err != nil {
			slog.Warn("writing error log", "err", err)
		}
	}
	return nil
}

// applyCompilationLog updates the module set from the deltas observed
// in one reload's messages: Compiling moves a path failed→loaded, an
// error diagnostic with a path moves it loaded→failed.
func (d *Driver) applyCompilationLog(log CompilationLog) {
	for _, c := range log.Compiled {
		p := normalpath.New(c.Path, d.opts.BaseDir)
		d.modules.MarkLoaded(LoadedModule{Path: p, Name: c.Name})
	}
	for _, diag := range log.Diagnostics {
		if diag.Severity != ghcmessage.Error || diag.Path == "" {
			continue
		}
		p := normalpath.New(diag.Path, d.opts.BaseDir)
		d.modules.MarkFailed(p)
	}
}

func (d *Driver) restartLocked(ctx context.Context) error {
	if d.proc != nil {
		_ = d.proc.Quit(QuitTimeout)
	}
	proc, err := spawnGhci(d.opts.Command)
	if err != nil {
		return fmt.Errorf("restarting ghci: %w", err)
	}
	d.proc = proc
	d.stdoutR = reader.New(proc.stdout, d.opts.Terminal)
	d.modules = NewModuleSet()

	if err := d.installPromptSentinel(ctx, reader.Hide); err != nil {
		return fmt.Errorf("restarting ghci: %w", err)
	}
	for _, setup := range d.opts.SetupCmds {
		if err := d.write(setup + "\n"); err != nil {
			return err
		}
		if _, err := d.readChunk(ctx, reader.Write); err != nil {
			return err
		}
	}
	sp, err := d.showPathsLocked(ctx)
	if err != nil {
		return err
	}
	d.paths = sp
	return d.rederiveModuleSetLocked(ctx)
}

// AddModule issues `:add <path>`.
func (d *Driver) AddModule(ctx context.Context, p normalpath.NormalPath) ([]ghcmessage.GhcMessage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.write(":add " + p.String() + "\n"); err != nil {
		return nil, err
	}
	return d.readChunk(ctx, reader.Write)
}

// RemoveModule issues `:unadd <path>`.
func (d *Driver) RemoveModule(ctx context.Context, p normalpath.NormalPath) ([]ghcmessage.GhcMessage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.write(":unadd " + p.String() + "\n"); err != nil {
		return nil, err
	}
	msgs, err := d.readChunk(ctx, reader.Write)
	if err == nil {
		d.modules.Remove(p)
	}
	return msgs, err
}

// InterpretModule issues `:add *<m>` to force interpreted (not
// compiled) loading of a module, needed to evaluate expressions in its
// scope.
func (d *Driver) InterpretModule(ctx context.Context, moduleName string) ([]ghcmessage.GhcMessage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.write(":add *" + moduleName + "\n"); err != nil {
		return nil, err
	}
	return d.readChunk(ctx, reader.Write)
}

// Eval evaluates expr in the scope of module, bracketing it with
// :module + and :module - so the module's bindings are only
// temporarily in scope.
func (d *Driver) Eval(ctx context.Context, moduleName, expr string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.evalLocked(ctx, moduleName, expr)
}

func (d *Driver) evalLocked(ctx context.Context, moduleName, expr string) (string, error) {
	if err := d.write(":module + *" + moduleName + "\n"); err != nil {
		return "", err
	}
	if _, err := d.readChunk(ctx, reader.Hide); err != nil {
		return "", err
	}

	if err := d.write(expr + "\n"); err != nil {
		return "", err
	}
	result, err := d.stdoutR.ReadUntil(ctx, PromptSentinel, reader.LineStart, reader.NoFinalLine)
	if err != nil {
		return "", err
	}

	if err := d.write(":module - *" + moduleName + "\n"); err != nil {
		return "", err
	}
	if _, err := d.readChunk(ctx, reader.Hide); err != nil {
		return "", err
	}

	return result, nil
}

// runEvalComments runs the eval comments found in each newly compiled
// module's source, ghcid-style, writing the command and its result to
// the session terminal. A module whose source can't be read is skipped
// with a warning; this never fails the reload.
func (d *Driver) runEvalComments(ctx context.Context, compiled []ghcmessage.CompilingModule) {
	for _, c := range compiled {
		if c.Name == "" || c.Path == "" {
			continue
		}
		src, err := os.ReadFile(c.Path)
		if err != nil {
			slog.Debug("eval comments: could not read module source", "path", c.Path, "err", err)
			continue
		}
		for _, cmd := range ParseEvalCommands(string(src)) {
			result, err := d.evalLocked(ctx, c.Name, cmd.Command)
			if err != nil {
				slog.Warn("eval comment failed", "path", c.Path, "line", cmd.Line, "err", err)
				continue
			}
			if d.opts.Terminal != nil {
				fmt.Fprintf(d.opts.Terminal, "%s:%d: %s\n%s", c.Path, cmd.Line, cmd.DisplayCommand, result)
			}
		}
	}
}

// ShowPaths issues `:show paths` and parses the response.
func (d *Driver) ShowPaths(ctx context.Context) (ShowPaths, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sp, err := d.showPathsLocked(ctx)
	if err == nil {
		d.paths = sp
	}
	return sp, err
}

var (
	cwdLineRe        = regexp.MustCompile(`^Current working directory: (.+)$`)
	searchPathLineRe = regexp.MustCompile(`^\s*(\S.*\S|\S)\s*$`)
)

func (d *Driver) showPathsLocked(ctx context.Context) (ShowPaths, error) {
	if err := d.write(":show paths\n"); err != nil {
		return ShowPaths{}, err
	}
	raw, err := d.stdoutR.ReadUntil(ctx, PromptSentinel, reader.LineStart, reader.Hide)
	if err != nil {
		return ShowPaths{}, err
	}
	return parseShowPaths(raw), nil
}

// parseShowPaths interprets `:show paths` output: a "Current working
// directory: <dir>" line, then a blank line, then "Module search
// paths:" followed by one indented path per line.
func parseShowPaths(raw string) ShowPaths {
	var sp ShowPaths
	inSearchPaths := false
	for _, line := range strings.Split(raw, "\n") {
		if m := cwdLineRe.FindStringSubmatch(line); m != nil {
			sp.WorkingDir = m[1]
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), "Module search paths") {
			inSearchPaths = true
			continue
		}
		if inSearchPaths {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			sp.SearchPaths = append(sp.SearchPaths, trimmed)
		}
	}
	return sp
}

// ShowTargets issues `:show targets` and resolves each line (a source
// path or a dotted module name) to an absolute path using the current
// ShowPaths.
func (d *Driver) ShowTargets(ctx context.Context) ([]normalpath.NormalPath, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.showTargetsLocked(ctx)
}

func (d *Driver) showTargetsLocked(ctx context.Context) ([]normalpath.NormalPath, error) {
	if err := d.write(":show targets\n"); err != nil {
		return nil, err
	}
	raw, err := d.stdoutR.ReadUntil(ctx, PromptSentinel, reader.LineStart, reader.Hide)
	if err != nil {
		return nil, err
	}

	var out []normalpath.NormalPath
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if resolved, ok := ResolveTarget(line, d.paths); ok {
			out = append(out, normalpath.New(resolved, d.opts.BaseDir))
		} else {
			slog.Debug("show targets: could not resolve target", "target", line)
		}
	}
	return out, nil
}

// ResolveTarget resolves one `:show targets` line to a source path. A
// line that is already a Haskell source path is returned as-is; a
// dotted module name A.B.C is tried as
// <search_path>/A/B/C.<ext> for each search path (in order) and each
// Haskell source extension (in priority order); the first existing
// file wins. The lookup itself lives in resolveModuleTarget, which
// takes the existence check as a parameter; ResolveTarget passes one
// backed by os.Stat.
func ResolveTarget(target string, paths ShowPaths) (string, bool) {
	if normalpath.IsHaskellSourceFile(target) {
		return target, true
	}
	return resolveModuleTarget(target, paths, statExists)
}

func resolveModuleTarget(target string, paths ShowPaths, exists func(string) bool) (string, bool) {
	rel := strings.ReplaceAll(target, ".", string(filepath.Separator))
	for _, sp := range paths.SearchPaths {
		for _, ext := range normalpath.HaskellExtensions() {
			candidate := filepath.Join(sp, rel+"."+ext)
			if exists(candidate) {
				return candidate, true
			}
		}
	}
	return "", false
}

// rederiveModuleSetLocked re-derives the module set from `:show
// targets` (resolved to absolute paths via `:show paths`). Between
// full re-derivations the driver applies deltas from parsed messages;
// this keeps the module set correct even for files ghci silently drops
// from its target set, which is only ever visible this way.
func (d *Driver) rederiveModuleSetLocked(ctx context.Context) error {
	sp, err := d.showPathsLocked(ctx)
	if err != nil {
		return err
	}
	d.paths = sp

	targets, err := d.showTargetsLocked(ctx)
	if err != nil {
		return err
	}

	failed := d.modules.Failed()
	failedSet := make(map[string]bool, len(failed))
	for _, m := range failed {
		failedSet[m.Path.Key()] = true
	}

	var loaded, stillFailed []LoadedModule
	for _, t := range targets {
		if failedSet[t.Key()] {
			stillFailed = append(stillFailed, LoadedModule{Path: t})
		} else {
			loaded = append(loaded, LoadedModule{Path: t})
		}
	}
	d.modules.ReplaceAll(loaded, stillFailed)
	return nil
}

// Sync confirms all pending stdin has been consumed: it allocates a
// fresh sync sentinel, asks ghci to print it, and reads until that
// string is seen at line start followed by the prompt sentinel.
func (d *Driver) Sync(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.syncLocked(ctx)
}

func (d *Driver) syncLocked(ctx context.Context) error {
	sentinel, expr := d.sync.next()
	if err := d.write(expr + "\n"); err != nil {
		return err
	}
	if _, err := d.stdoutR.ReadUntil(ctx, sentinel, reader.LineStart, reader.Hide); err != nil {
		return fmt.Errorf("waiting for sync sentinel: %w", err)
	}
	if _, err := d.stdoutR.ReadUntil(ctx, PromptSentinel, reader.LineStart, reader.Hide); err != nil {
		return fmt.Errorf("waiting for prompt after sync: %w", err)
	}
	return nil
}

// Quit issues `:quit` and waits for the subprocess to exit, escalating
// to SIGKILL after QuitTimeout.
func (d *Driver) Quit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.proc == nil {
		return nil
	}
	return d.proc.Quit(QuitTimeout)
}

// Interrupt preempts the in-progress command by sending SIGINT to the
// ghci process group; the interpreter abandons the current command and
// returns to its prompt.
func (d *Driver) Interrupt() error {
	d.mu.Lock()
	proc := d.proc
	d.mu.Unlock()
	if proc == nil {
		return nil
	}
	return interruptProcess(proc)
}

// Done reports process exit, for the supervisor to detect a crashed
// subprocess.
func (d *Driver) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.proc.Done()
}
