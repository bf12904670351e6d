// Command ghciwatch supervises a long-running `ghci` session: it loads
// a Haskell project, watches the filesystem for changes, and reloads
// or restarts the session as files change, the way ghcid and ghciwatch
// do, but built around a supervisor event loop that can preempt a
// reload already in progress.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ghciwatch/ghciwatch/internal/config"
	"github.com/ghciwatch/ghciwatch/internal/ghci"
	"github.com/ghciwatch/ghciwatch/internal/glob"
	"github.com/ghciwatch/ghciwatch/internal/hooks"
	"github.com/ghciwatch/ghciwatch/internal/shutdown"
	"github.com/ghciwatch/ghciwatch/internal/supervisor"
	"github.com/ghciwatch/ghciwatch/internal/watch"
)

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:   "ghciwatch",
	Short: "Load, watch, and reload a Haskell project in a running ghci session",
	RunE:  run,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	if err := config.BindFlags(rootCmd, v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if err := config.ReadConfigFile(v, ""); err != nil {
		return err
	}
	opts, err := config.Load(v)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	baseDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	reloadGlobs, err := glob.Compile(opts.ReloadGlobs)
	if err != nil {
		return fmt.Errorf("compiling reload globs: %w", err)
	}
	restartGlobs, err := glob.Compile(opts.RestartGlobs)
	if err != nil {
		return fmt.Errorf("compiling restart globs: %w", err)
	}

	driver := ghci.New(ghci.Options{
		Command:      opts.Command,
		SetupCmds:    opts.SetupCmds,
		BaseDir:      baseDir,
		ErrorLogPath: opts.ErrorLogPath,
		Terminal:     os.Stdout,
	})

	hookRunner := hooks.NewRunner(buildHooks(opts), driver)
	defer hookRunner.StopAsync()
	driver.SetHooks(hookRunner)

	ctx := context.Background()

	if err := driver.Initialize(ctx); err != nil {
		return fmt.Errorf("starting ghci: %w", err)
	}

	var backend watch.Backend
	if opts.Poll {
		backend = &watch.PollBackend{BaseDir: baseDir, Interval: opts.PollInterval}
	} else {
		backend = &watch.NotifyBackend{BaseDir: baseDir, Debounce: opts.Debounce}
	}

	manager := shutdown.New()
	sup := &supervisor.Supervisor{
		Driver:  driver,
		Hooks:   hookRunner,
		Globs:   ghci.Globs{Reload: reloadGlobs, Restart: restartGlobs},
		Backend: backend,
		Roots:   opts.WatchRoots,
		Manager: manager,
	}

	manager.Spawn("supervisor", sup.Run)

	shutdownSignal := manager.Handle()
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		shutdownSignal.RequestShutdown()
		<-sigCh
		manager.ForceAbort()
	}()

	if err := manager.WaitForShutdown(30 * time.Second); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return driver.Quit()
}

// buildHooks flattens the per-event-per-kind flag groups into the
// ordered hook list the runner dispatches from.
func buildHooks(opts config.Options) []hooks.Hook {
	var out []hooks.Hook
	add := func(event ghci.HookEvent, when ghci.HookWhen, kind hooks.Kind, commands []string) {
		for _, c := range commands {
			out = append(out, hooks.Hook{Event: event, When: when, Kind: kind, Command: c})
		}
	}
	add(ghci.EventStartup, ghci.WhenBefore, hooks.KindShell, opts.BeforeStartupShell)
	add(ghci.EventStartup, ghci.WhenAfter, hooks.KindShell, opts.AfterStartupShell)
	add(ghci.EventStartup, ghci.WhenAfter, hooks.KindGhci, opts.AfterStartupGhci)
	add(ghci.EventReload, ghci.WhenBefore, hooks.KindShell, opts.BeforeReloadShell)
	add(ghci.EventReload, ghci.WhenBefore, hooks.KindGhci, opts.BeforeReloadGhci)
	add(ghci.EventReload, ghci.WhenAfter, hooks.KindShell, opts.AfterReloadShell)
	add(ghci.EventReload, ghci.WhenAfter, hooks.KindGhci, opts.AfterReloadGhci)
	add(ghci.EventRestart, ghci.WhenBefore, hooks.KindShell, opts.BeforeRestartShell)
	add(ghci.EventRestart, ghci.WhenAfter, hooks.KindShell, opts.AfterRestartShell)
	add(ghci.EventTest, ghci.WhenDuring, hooks.KindShell, opts.TestShell)
	add(ghci.EventTest, ghci.WhenDuring, hooks.KindGhci, opts.TestGhci)
	return out
}
