//go:build !windows

package worker

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr places the worker in its own process group so a
// group signal does not reach the supervisor.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateProcess sends a graceful termination request.
func terminateProcess(pid int) error {
	return syscall.Kill(pid, syscall.SIGTERM)
}

// killProcess forcibly tears the worker down.
func killProcess(pid int) error {
	return syscall.Kill(pid, syscall.SIGKILL)
}
