// Package config loads supervisor options from flags, environment
// variables (GHCIWATCH_*), and a .ghciwatch.yaml file, merged by
// viper the way the command-line tools in this ecosystem layer their
// configuration.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Options is the fully-resolved configuration for one supervisor run.
type Options struct {
	Command      string
	SetupCmds    []string
	WatchRoots   []string
	BaseDir      string
	ErrorLogPath string
	ReloadGlobs  []string
	RestartGlobs []string
	Poll         bool
	PollInterval time.Duration
	Debounce     time.Duration
	Verbose      bool

	BeforeStartupShell []string
	AfterStartupShell  []string
	BeforeReloadShell  []string
	AfterReloadShell   []string
	BeforeRestartShell []string
	AfterRestartShell  []string
	TestShell          []string
	AfterStartupGhci   []string
	BeforeReloadGhci   []string
	AfterReloadGhci    []string
	TestGhci           []string
}

// BindFlags registers the persistent flags cmd accepts and binds each
// to a viper key of the same name, so flags, environment (GHCIWATCH_*)
// and .ghciwatch.yaml all resolve through one precedence chain.
func BindFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := cmd.PersistentFlags()
	flags.String("command", "cabal repl", "shell command used to launch ghci")
	flags.StringSlice("setup-ghci", nil, "ghci command run once at startup, after the prompt sentinel is installed")
	flags.StringSlice("watch", []string{"."}, "directories to watch for changes")
	flags.String("error-file", "", "path to write the persistent error log to")
	flags.StringSlice("reload-glob", nil, "glob patterns that trigger a reload ('!' prefix ignores)")
	flags.StringSlice("restart-glob", nil, "glob patterns that trigger a restart ('!' prefix ignores)")
	flags.Bool("poll", false, "use a polling watcher instead of filesystem notifications")
	flags.Duration("poll-interval", 0, "polling interval, if --poll is set")
	flags.Duration("debounce", 0, "debounce window for batching file events")
	flags.BoolP("verbose", "v", false, "verbose logging")

	flags.StringSlice("before-startup-shell", nil, "shell command run before ghci starts ('async:' prefix runs it detached)")
	flags.StringSlice("after-startup-shell", nil, "shell command run after ghci starts")
	flags.StringSlice("before-reload-shell", nil, "shell command run before a reload ('async:' prefix runs it detached)")
	flags.StringSlice("after-reload-shell", nil, "shell command run after a reload")
	flags.StringSlice("before-restart-shell", nil, "shell command run before a restart")
	flags.StringSlice("after-restart-shell", nil, "shell command run after a restart")
	flags.StringSlice("test-shell", nil, "shell command run after a successful reload, ghcid-style")
	flags.StringSlice("after-startup-ghci", nil, "ghci command run after ghci starts, following --setup-ghci")
	flags.StringSlice("before-reload-ghci", nil, "ghci command run before a reload")
	flags.StringSlice("after-reload-ghci", nil, "ghci command run after a reload")
	flags.StringSlice("test-ghci", nil, "ghci command run after a successful reload, ghcid-style")

	if err := v.BindPFlags(flags); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	v.SetEnvPrefix("GHCIWATCH")
	v.AutomaticEnv()
	return nil
}

// Load resolves Options from v, which must already have had a
// configuration file read into it (or none, if absent) and flags
// bound via BindFlags.
func Load(v *viper.Viper) (Options, error) {
	opts := Options{
		Command:      v.GetString("command"),
		SetupCmds:    v.GetStringSlice("setup-ghci"),
		WatchRoots:   v.GetStringSlice("watch"),
		ErrorLogPath: v.GetString("error-file"),
		ReloadGlobs:  v.GetStringSlice("reload-glob"),
		RestartGlobs: v.GetStringSlice("restart-glob"),
		Poll:         v.GetBool("poll"),
		PollInterval: v.GetDuration("poll-interval"),
		Debounce:     v.GetDuration("debounce"),
		Verbose:      v.GetBool("verbose"),

		BeforeStartupShell: v.GetStringSlice("before-startup-shell"),
		AfterStartupShell:  v.GetStringSlice("after-startup-shell"),
		BeforeReloadShell:  v.GetStringSlice("before-reload-shell"),
		AfterReloadShell:   v.GetStringSlice("after-reload-shell"),
		BeforeRestartShell: v.GetStringSlice("before-restart-shell"),
		AfterRestartShell:  v.GetStringSlice("after-restart-shell"),
		TestShell:          v.GetStringSlice("test-shell"),
		AfterStartupGhci:   v.GetStringSlice("after-startup-ghci"),
		BeforeReloadGhci:   v.GetStringSlice("before-reload-ghci"),
		AfterReloadGhci:    v.GetStringSlice("after-reload-ghci"),
		TestGhci:           v.GetStringSlice("test-ghci"),
	}
	if opts.Command == "" {
		return Options{}, fmt.Errorf("config: command must not be empty")
	}
	return opts, nil
}

// ReadConfigFile looks for .ghciwatch.yaml in searchPath (when
// non-empty) and in the working directory, merging it under flag/env
// precedence. Parent directories are not searched. A missing file is
// not an error.
func ReadConfigFile(v *viper.Viper, searchPath string) error {
	v.SetConfigName(".ghciwatch")
	v.SetConfigType("yaml")
	if searchPath != "" {
		v.AddConfigPath(searchPath)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("reading .ghciwatch.yaml: %w", err)
	}
	return nil
}
