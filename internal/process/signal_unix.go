//go:build !windows

package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// killProcess sends SIGKILL to the child's process group, falling back to the
// child alone when the group cannot be signaled.
func killProcess(cmd *exec.Cmd) error {
	pid := cmd.Process.Pid
	err := syscall.Kill(-pid, syscall.SIGKILL)
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.ESRCH) {
		return os.ErrProcessDone
	}
	return cmd.Process.Kill()
}
