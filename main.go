// Package main provides the entry point for vpnht, which installs and
// controls an optional OpenVPN tunnel on mac, linux and windows.
//
// Usage:
//
//	vpnht [command] [--verbose]
//
// Commands include install, connect, disconnect, status, ip and watch.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yllada/vpnht/cli"
	"github.com/yllada/vpnht/common"
)

// Build-time variables injected via ldflags (-X main.appVersion=x.y.z)
var (
	appVersion = "dev"
	buildTime  = "unknown"
	commitSHA  = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	root := cli.NewRootCommand(cli.BuildInfo{
		Version:   appVersion,
		BuildTime: buildTime,
		Commit:    commitSHA,
	})
	err := root.ExecuteContext(ctx)
	stop()
	common.CloseLogger()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
