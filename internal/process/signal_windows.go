//go:build windows

package process

import "os/exec"

// killProcess terminates the child via TerminateProcess.
func killProcess(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
