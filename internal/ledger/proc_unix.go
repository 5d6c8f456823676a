//go:build unix

package ledger

import (
	"errors"

	"golang.org/x/sys/unix"
)

// processAlive reports whether pid exists. EPERM means it exists but
// belongs to another user.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// killGroup kills the session started for a browser, which includes its
// renderer and GPU helpers. Browsers are spawned as session leaders, so
// their pid is also their process group id.
func killGroup(pid int) error {
	if err := unix.Kill(-pid, unix.SIGKILL); err == nil {
		return nil
	}
	err := unix.Kill(pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
