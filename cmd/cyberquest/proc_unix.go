//go:build unix

package main

import (
	"os/exec"
	"syscall"
)

// configureDaemonProcess puts the daemon in its own process group.
func configureDaemonProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
