//go:build !windows

package vpn

import "os/exec"

func setCommandLine(cmd *exec.Cmd) {}
