// Package common provides shared constants, types, utilities, and interfaces
// used throughout vpnht.
//
// This package serves as the foundation for cross-cutting concerns:
//
//   - Constants: file names, settings keys, default endpoints and timeouts
//   - Errors: Sentinel errors, including the failure reasons reported to the UI
//   - Interfaces: Abstractions for settings, credential storage, notifications and logging
//   - Logger: Leveled logging to stdout and a rotating file
//   - Utils: Common utility functions for paths and files
//
// # Usage
//
//	common.LogInfo("openvpn launched (pid file %s)", pidPath)
//
//	if errors.Is(err, common.ErrNoPIDFound) {
//	    // nothing to stop
//	}
package common
