package ghci

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ghciwatch/ghciwatch/internal/procgroup"
)

// process manages one ghci subprocess: its own process group, piped
// stdio, and exit notification. Lifecycle mirrors the idb_companion
// wrapper this supervisor is descended from: a done channel closed on
// exit, with the exit error latched before the close.
type process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	done    chan struct{}
	exitErr error
}

// spawnGhci starts the user-configured ghci command line, split
// sh-style, in its own process group with stdin/stdout/stderr piped.
// The child inherits the environment plus GHC_NO_UNICODE=1, forcing
// ASCII-only quoting in diagnostics so the parser never has to deal
// with locale-dependent quote characters.
func spawnGhci(command string) (*process, error) {
	args, err := splitShellWords(command)
	if err != nil {
		return nil, fmt.Errorf("parsing ghci command %q: %w", command, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("empty ghci command")
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Env = append(os.Environ(), "GHC_NO_UNICODE=1")
	cmd.SysProcAttr = procgroup.Attr()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening ghci stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening ghci stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("opening ghci stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting ghci (%q): %w", command, err)
	}

	p := &process{cmd: cmd, stdin: stdin, stdout: stdout, stderr: stderr, done: make(chan struct{})}
	go func() {
		p.exitErr = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// Pid returns the process group leader's PID.
func (p *process) Pid() int { return p.cmd.Process.Pid }

// Done is closed when the subprocess exits.
func (p *process) Done() <-chan struct{} { return p.done }

// Err blocks until the subprocess exits and returns its exit error.
func (p *process) Err() error {
	<-p.done
	return p.exitErr
}

// Quit writes :quit, waits up to timeout for a graceful exit, and
// escalates to SIGKILL on the process group if the child hasn't
// exited by then.
func (p *process) Quit(timeout time.Duration) error {
	_, _ = io.WriteString(p.stdin, ":quit\n")
	_ = p.stdin.Close()

	select {
	case <-p.done:
		return p.exitErr
	case <-time.After(timeout):
	}

	if err := procgroup.Kill(p.Pid()); err != nil {
		return err
	}
	<-p.done
	return p.exitErr
}

// splitShellWords splits a command line sh-style: double- and
// single-quoted spans preserve interior whitespace; no variable
// expansion or globbing is performed.
func splitShellWords(s string) ([]string, error) {
	var words []string
	var cur strings.Builder
	inWord := false
	var quote rune

	flush := func() {
		if inWord {
			words = append(words, cur.String())
			cur.Reset()
			inWord = false
		}
	}

	for i := 0; i < len(s); i++ {
		c := rune(s[i])
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			} else {
				cur.WriteRune(c)
			}
		case c == '\'' || c == '"':
			quote = c
			inWord = true
		case c == ' ' || c == '\t':
			flush()
		default:
			inWord = true
			cur.WriteRune(c)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	flush()
	return words, nil
}
