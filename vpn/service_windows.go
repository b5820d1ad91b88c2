//go:build windows

package vpn

import (
	"context"
	"fmt"

	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

type scmQuerier struct {
	name string
}

func newServiceQuerier(name string) ServiceQuerier {
	return &scmQuerier{name: name}
}

// State queries the service control manager. A service that is not
// installed reports "NOT_INSTALLED".
func (q *scmQuerier) State(ctx context.Context) (string, error) {
	scm, err := mgr.Connect()
	if err != nil {
		return "", fmt.Errorf("failed to connect to service manager: %w", err)
	}
	defer scm.Disconnect()

	s, err := scm.OpenService(q.name)
	if err != nil {
		return "NOT_INSTALLED", nil
	}
	defer s.Close()

	status, err := s.Query()
	if err != nil {
		return "", fmt.Errorf("failed to query service: %w", err)
	}

	switch status.State {
	case svc.Stopped:
		return "STOPPED", nil
	case svc.StartPending:
		return "START_PENDING", nil
	case svc.StopPending:
		return "STOP_PENDING", nil
	case svc.Running:
		return "RUNNING", nil
	case svc.ContinuePending:
		return "CONTINUE_PENDING", nil
	case svc.PausePending:
		return "PAUSE_PENDING", nil
	case svc.Paused:
		return "PAUSED", nil
	default:
		return "UNKNOWN", nil
	}
}
