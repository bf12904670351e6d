// Package procgroup places a spawned subprocess in its own process
// group and delivers signals to that group, so a SIGINT aimed at an
// interactive child (ghci) reaches any helper processes it has spawned
// too, and so a supervisor SIGINT doesn't also kill the child before
// it's asked to.
package procgroup

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// Attr returns the SysProcAttr that places a new child in its own
// process group, with that group's ID equal to the child's PID.
func Attr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// Signal delivers sig to every process in the group led by pid.
// pid must be the PID of a process started with Attr(), which makes
// it the group leader.
func Signal(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return fmt.Errorf("procgroup: invalid pid %d", pid)
	}
	if err := unix.Kill(-pid, sig); err != nil {
		return fmt.Errorf("signaling process group %d with %v: %w", pid, sig, err)
	}
	return nil
}

// Interrupt sends SIGINT to the group, used to preempt an in-progress
// ghci command and return it to its prompt without tearing it down.
func Interrupt(pid int) error {
	return Signal(pid, syscall.SIGINT)
}

// Kill sends SIGKILL to the group, the escalation when a process fails
// to honor a graceful quit within its timeout.
func Kill(pid int) error {
	return Signal(pid, syscall.SIGKILL)
}

// Terminate sends SIGTERM to the group.
func Terminate(pid int) error {
	return Signal(pid, syscall.SIGTERM)
}
