//go:build windows

package process

import (
	"os"
	"os/exec"
	"syscall"
)

// configureSysProcAttr places cmd in a new process group so console control
// events sent to the orchestrator are not forwarded to it.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// terminate has no graceful variant on Windows; the process is killed.
func terminate(p *os.Process) error {
	return p.Kill()
}

func forceKill(p *os.Process) error {
	return p.Kill()
}
