// Package common provides shared constants, types, and utilities
// used across vpnht.
package common

import "errors"

// Sentinel errors for tunnel operations.
// These can be checked with errors.Is() for proper error handling.
var (
	// Tunnel errors.
	ErrNoPIDFound      = errors.New("no_pid_found")
	ErrConfigNotFound  = errors.New("openvpn_config_not_found")
	ErrCommandNotFound = errors.New("openvpn_command_not_found")
	ErrRunas           = errors.New("error_runas")
	ErrDisabled        = errors.New("vpn disabled by user")
	ErrNotInstalled    = errors.New("vpn not installed")
	ErrTimeout         = errors.New("operation timed out")

	// Platform errors.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrElevationFailed     = errors.New("elevated command failed")
	ErrNoCredential        = errors.New("no elevation credential provided")

	// Artifact errors.
	ErrDownloadFailed = errors.New("download failed")
	ErrInvalidConfig  = errors.New("invalid openvpn configuration")

	// Credential errors.
	ErrCredentialsNotFound = errors.New("credentials not found")

	// Configuration errors.
	ErrConfigLoad = errors.New("failed to load configuration")
	ErrConfigSave = errors.New("failed to save configuration")
)

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
