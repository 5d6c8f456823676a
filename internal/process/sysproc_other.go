//go:build !unix && !windows

package process

import (
	"os"
	"os/exec"
)

// configureSysProcAttr is a no-op on platforms without session or process
// group support.
func configureSysProcAttr(_ *exec.Cmd) {}

func terminate(p *os.Process) error {
	return p.Signal(os.Interrupt)
}

func forceKill(p *os.Process) error {
	return p.Kill()
}
