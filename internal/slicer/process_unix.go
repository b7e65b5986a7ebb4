//go:build unix

package slicer

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup puts the slicer in its own process group so that a
// timeout kills helper processes too.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
