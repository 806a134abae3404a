//go:build !windows

package runner

import (
	"os/exec"
	"syscall"
)

func configure(cmd *exec.Cmd, _ bool) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killTree(pid int) {
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}
