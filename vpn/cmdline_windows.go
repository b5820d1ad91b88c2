//go:build windows

package vpn

import (
	"os/exec"
	"syscall"
)

// setCommandLine hands the child the command line built by
// windowsCommandLine instead of the default escaping of os/exec.
func setCommandLine(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CmdLine: windowsCommandLine(cmd.Args)}
}
