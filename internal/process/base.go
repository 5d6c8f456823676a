package process

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/giantswarm/browserenv/internal/sentinel"
)

// ErrAlreadyStarted is returned when Start is called on a process that is
// already running. Callers must Stop the process before starting it again.
const ErrAlreadyStarted = sentinel.Error("process already started")

// ErrNilCmd is returned when SetupAndStart is called with a nil *exec.Cmd.
const ErrNilCmd = sentinel.Error("cmd must not be nil")

// ErrEmptyCmdPath is returned when SetupAndStart is called with an empty cmd.Path.
const ErrEmptyCmdPath = sentinel.Error("cmd.Path must not be empty")

// BaseProcess provides common process lifecycle management.
// Embed this in package-specific process types to reuse Stop and Close methods.
//
// BaseProcess is not safe for concurrent use. Callers must serialize access
// to SetupAndStart, Stop and Close. HasExited, Exited and ExitCode only read
// channels and fields published before the exited channel is closed, so they
// may be called from any goroutine while the process is running.
type BaseProcess struct {
	cmd      *exec.Cmd
	waitDone <-chan error    // receives cmd.Wait result; started once in SetupAndStart
	exited   <-chan struct{} // closed when process exits; readable by multiple goroutines
	// state is published by the Wait goroutine before exited is closed.
	state       atomic.Pointer[os.ProcessState]
	name        string        // Process name for logging (e.g., "chrome", "Xvfb")
	log         *slog.Logger  // Logger for operational messages
	stopTimeout time.Duration // Timeout for auto-stop in Close; zero uses DefaultStopTimeout
	killGrace   time.Duration // Wait after force-kill; zero uses DefaultKillGracePeriod
}

// NewBaseProcess creates a BaseProcess with the given name, logger, and stop
// timeout. The stopTimeout is used by Close as a safety-net timeout when
// auto-stopping a process that was not explicitly stopped. If stopTimeout is
// zero, DefaultStopTimeout is used as a fallback. If logger is nil,
// slog.Default() is used. Panics if name is empty.
func NewBaseProcess(name string, logger *slog.Logger, stopTimeout time.Duration) BaseProcess {
	if name == "" {
		panic("browserenv: process name must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return BaseProcess{name: name, log: logger, stopTimeout: stopTimeout}
}

// Stop terminates the process with the given timeout.
// After Stop returns, IsStarted reports false regardless of whether the stop
// succeeded, because the process is no longer in a known-running state.
// Safe to call when the process was never started or was already stopped.
func (b *BaseProcess) Stop(timeout time.Duration) error {
	if b.cmd == nil || b.cmd.Process == nil {
		b.reset()
		return nil
	}
	pid := b.cmd.Process.Pid
	grace := b.killGrace
	if grace <= 0 {
		grace = DefaultKillGracePeriod
	}
	err := stopWithDone(b.cmd, b.waitDone, b.exited, timeout, grace, b.name)
	if err != nil {
		b.log.Warn("process stop failed; process may be orphaned",
			"process", b.name, "pid", pid, "error", err)
	} else {
		b.log.Debug("process stopped", "process", b.name, "pid", pid, "exit", describeExit(b.state.Load()))
	}
	b.reset()
	return err
}

// SetKillGrace sets how long Stop waits for the process to be reaped after
// the force-kill. Non-positive values restore DefaultKillGracePeriod.
func (b *BaseProcess) SetKillGrace(d time.Duration) {
	b.killGrace = d
}

func (b *BaseProcess) reset() {
	b.cmd = nil
	b.waitDone = nil
	b.exited = nil
}

// Close stops the process automatically if Stop was not called first.
// Callers should always call Stop before Close; the auto-stop is a safety
// net, not an intended code path.
func (b *BaseProcess) Close() {
	if b.cmd == nil {
		return
	}
	b.log.Warn("process.Close called without Stop; stopping automatically",
		"process", b.name)
	timeout := b.stopTimeout
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}
	if err := b.Stop(timeout); err != nil {
		b.log.Warn("auto-stop during Close failed",
			"process", b.name, "error", err)
	}
}

// Logger returns the logger used by this process.
func (b *BaseProcess) Logger() *slog.Logger {
	return b.log
}

// Name returns the process name used in logs and errors.
func (b *BaseProcess) Name() string {
	return b.name
}

// Exited returns a channel that is closed when the process exits. It is safe
// to select on from any number of goroutines. Returns nil if the process has
// not been started or has already been stopped.
func (b *BaseProcess) Exited() <-chan struct{} {
	return b.exited
}

// IsStarted reports whether the process has been started and not yet stopped.
func (b *BaseProcess) IsStarted() bool {
	return b.cmd != nil
}

// HasExited reports, without blocking, whether a started process has exited.
// Returns false when the process was never started.
func (b *BaseProcess) HasExited() bool {
	if b.exited == nil {
		return false
	}
	select {
	case <-b.exited:
		return true
	default:
		return false
	}
}

// IsRunning reports whether the process has been started, not stopped, and
// has not exited on its own.
func (b *BaseProcess) IsRunning() bool {
	return b.IsStarted() && !b.HasExited()
}

// PID returns the OS process id, or 0 when no process is held.
func (b *BaseProcess) PID() int {
	if b.cmd == nil || b.cmd.Process == nil {
		return 0
	}
	return b.cmd.Process.Pid
}

// ExitCode returns the exit code of the last process that exited. It is -1
// while the process is running, when it was killed by a signal, or when no
// process has exited yet.
func (b *BaseProcess) ExitCode() int {
	state := b.state.Load()
	if state == nil {
		return -1
	}
	return state.ExitCode()
}

// SetupAndStart starts cmd in its own session with output discarded.
// The cmd must already have its Path, Args and Env set.
//
// A single goroutine calling cmd.Wait is started here so that exactly one Wait
// call is made per process. The resulting channel is consumed by Stop.
//
// Returns ErrAlreadyStarted if the process is already running. Callers must
// Stop the process before calling SetupAndStart again.
func (b *BaseProcess) SetupAndStart(cmd *exec.Cmd) error {
	if cmd == nil {
		return ErrNilCmd
	}
	if cmd.Path == "" {
		return ErrEmptyCmdPath
	}
	if b.cmd != nil {
		return ErrAlreadyStarted
	}

	// Nil Stdout/Stderr connect the child to the null device.
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	configureSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s process: %w", b.name, err)
	}
	b.cmd = cmd
	b.state.Store(nil)

	// cmd.Wait must be called exactly once per started process. Two channels
	// are created:
	//   - done (buffered 1): receives the Wait error, consumed once by Stop.
	//   - exited (closed): broadcast signal readable by any number of
	//     goroutines (readiness loops, liveness checks).
	done := make(chan error, 1)
	exited := make(chan struct{})
	go func() {
		err := cmd.Wait()
		b.state.Store(cmd.ProcessState)
		done <- err
		close(exited)
	}()
	b.waitDone = done
	b.exited = exited

	b.log.Debug("process started", "process", b.name, "pid", cmd.Process.Pid)
	return nil
}
