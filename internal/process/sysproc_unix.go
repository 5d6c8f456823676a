//go:build unix

package process

import (
	"os"
	"os/exec"
	"syscall"
)

// configureSysProcAttr detaches cmd into a new session. Signals delivered to
// the orchestrator's process group (e.g. Ctrl-C in a terminal) therefore do
// not reach managed processes; they are only terminated through Stop.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}

// terminate sends SIGTERM to the process group led by p. The group includes
// helper processes the child forked, such as browser renderers.
func terminate(p *os.Process) error {
	return signalGroup(p, syscall.SIGTERM)
}

func forceKill(p *os.Process) error {
	return signalGroup(p, syscall.SIGKILL)
}

func signalGroup(p *os.Process, sig syscall.Signal) error {
	if err := syscall.Kill(-p.Pid, sig); err == nil {
		return nil
	}
	return p.Signal(sig)
}
