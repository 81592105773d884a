//go:build !windows
// +build !windows

package common

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcGroup places the child in its own process group so a timeout
// kill reaches any helpers the tool spawns.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	pgid, err := unix.Getpgid(cmd.Process.Pid)
	if err != nil {
		return cmd.Process.Kill()
	}
	return unix.Kill(-pgid, unix.SIGKILL)
}
