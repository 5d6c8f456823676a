package process

import (
	"fmt"
	"os"
	"os/exec"
	"time"
)

// DefaultStopTimeout is the default time a process is given to exit after the
// termination request, before it is force-killed. It is used by Close when no
// explicit stop timeout is configured.
const DefaultStopTimeout = 5 * time.Second

// DefaultKillGracePeriod is how long Stop waits for the process to be reaped
// after the force-kill has been sent. A kill cannot be caught, so the process
// normally disappears almost immediately.
const DefaultKillGracePeriod = 3 * time.Second

// ExitError reports that a managed process exited on its own with a known
// exit code.
type ExitError struct {
	Name string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Name, e.Code)
}

// drainDone reads from the done channel with the given timeout as a hard
// upper bound.
//
// Returns true and the cmd.Wait error if the channel delivered in time,
// or false and a nil error if the timeout elapsed.
func drainDone(done <-chan error, timeout time.Duration) (bool, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case err := <-done:
		return true, err
	case <-t.C:
		return false, nil
	}
}

// stopWithDone runs the terminate-then-kill shutdown sequence using the done
// channel fed by the single cmd.Wait goroutine started in SetupAndStart.
//
// Shutdown flow:
//  1. If the process already exited, drain done and return.
//  2. Request termination and wait up to timeout for the process to exit.
//  3. Force-kill and wait up to grace for it to be reaped.
//
// Any exit counts as success, whatever its status; only a process that could
// not be reaped yields an error. stopWithDone does not nil cmd or the done
// channel. The caller clears those references after it returns.
func stopWithDone(cmd *exec.Cmd, done <-chan error, exited <-chan struct{}, timeout, grace time.Duration, name string) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if done == nil {
		return fmt.Errorf("%s: done channel must not be nil", name)
	}

	select {
	case <-exited:
		_, _ = drainDone(done, grace)
		return nil
	default:
	}

	if err := terminate(cmd.Process); err != nil {
		// The process may have exited between the check above and the signal.
		if ok, _ := drainDone(done, grace); ok {
			return nil
		}
	} else if ok, _ := drainDone(done, timeout); ok {
		return nil
	}

	_ = forceKill(cmd.Process) // an already finished process returns an error here
	if ok, _ := drainDone(done, grace); !ok {
		return fmt.Errorf("%s: process %d did not exit after kill", name, cmd.Process.Pid)
	}
	return nil
}

// describeExit renders a process exit for logs: "exit status N",
// "signal: killed" and so on.
func describeExit(state *os.ProcessState) string {
	if state == nil {
		return "unknown"
	}
	return state.String()
}
