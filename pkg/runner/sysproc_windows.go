//go:build windows

package runner

import (
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/windows"
)

// configure hides the console window of captured commands and puts every
// child in its own process group so a timeout can take down its tree.
func configure(cmd *exec.Cmd, capture bool) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    capture,
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP,
	}
}

// killTree terminates a process and all its child processes.
func killTree(pid int) {
	_ = exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run()
}
