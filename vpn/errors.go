package vpn

import (
	"errors"

	"github.com/yllada/vpnht/common"
)

// Errors re-exported from common for convenience.
var (
	ErrNoPIDFound          = common.ErrNoPIDFound
	ErrConfigNotFound      = common.ErrConfigNotFound
	ErrCommandNotFound     = common.ErrCommandNotFound
	ErrRunas               = common.ErrRunas
	ErrDisabled            = common.ErrDisabled
	ErrNotInstalled        = common.ErrNotInstalled
	ErrUnsupportedPlatform = common.ErrUnsupportedPlatform
	ErrElevationFailed     = common.ErrElevationFailed
	ErrDownloadFailed      = common.ErrDownloadFailed
)

var reasons = []error{
	common.ErrNoPIDFound,
	common.ErrConfigNotFound,
	common.ErrCommandNotFound,
	common.ErrRunas,
}

// Reason returns the short failure reason the UI layer keys its messages
// on (for example "no_pid_found"), or the full error text for failures
// without a dedicated reason.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r) {
			return r.Error()
		}
	}
	return err.Error()
}
