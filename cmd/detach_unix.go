//go:build !windows

package cmd

import (
	"os/exec"
	"syscall"
)

// setSysProcAttr puts the detached watch in its own process group so it
// survives the terminal that started it.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
