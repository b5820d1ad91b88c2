package vpn

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/yllada/vpnht/common"
)

// ServiceQuerier reports the state of the Windows tunnel service using
// the service manager's state names (RUNNING, STOPPED, ...).
type ServiceQuerier interface {
	State(ctx context.Context) (string, error)
}

// LivenessFunc reports whether pid belongs to a live tunnel process.
type LivenessFunc func(ctx context.Context, pid int) bool

// ProcessLiveness checks that pid exists and that its executable name
// contains binaryName. A process whose name cannot be read counts as live.
func ProcessLiveness(binaryName string) LivenessFunc {
	return func(ctx context.Context, pid int) bool {
		if pid <= 0 {
			return false
		}
		p, err := process.NewProcessWithContext(ctx, int32(pid))
		if err != nil {
			return false
		}
		running, err := p.IsRunningWithContext(ctx)
		if err != nil || !running {
			return false
		}
		name, err := p.NameWithContext(ctx)
		if err != nil {
			common.LogDebug("Cannot read name of pid %d: %v", pid, err)
			return true
		}
		return strings.Contains(strings.ToLower(name), binaryName)
	}
}

// TunnelState is the tracker's view of the tunnel. PID is non-zero when a
// PID record was found, even if the process turned out to be dead.
type TunnelState struct {
	Running bool
	PID     int
}

// Tracker derives tunnel liveness from the OS and stops the tunnel.
type Tracker struct {
	cfg         InstallConfig
	elevator    Elevator
	service     ServiceQuerier
	serviceName string
	alive       LivenessFunc
}

// NewTracker creates a tracker for cfg. Stop and StartService go through
// elevator.
func NewTracker(cfg InstallConfig, elevator Elevator, serviceName string) *Tracker {
	if serviceName == "" {
		serviceName = common.WindowsServiceName
	}
	return &Tracker{
		cfg:         cfg,
		elevator:    elevator,
		service:     newServiceQuerier(serviceName),
		serviceName: serviceName,
		alive:       ProcessLiveness("openvpn"),
	}
}

// ReadPID returns the recorded PID, or false when there is no usable record.
func (t *Tracker) ReadPID() (int, bool) {
	data, err := os.ReadFile(t.cfg.PIDPath())
	if err != nil {
		return 0, false
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, false
	}
	pid, err := strconv.Atoi(text)
	if err != nil || pid <= 0 {
		common.LogWarn("Ignoring malformed PID file %s: %q", t.cfg.PIDPath(), text)
		return 0, false
	}
	return pid, true
}

// RemovePID deletes the PID record, ignoring a missing file.
func (t *Tracker) RemovePID() {
	if err := os.Remove(t.cfg.PIDPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		common.LogWarn("Failed to remove PID file: %v", err)
	}
}

// Status derives the tunnel state from the OS.
func (t *Tracker) Status(ctx context.Context) (TunnelState, error) {
	if t.cfg.Platform == PlatformWindows {
		state, err := t.service.State(ctx)
		if err != nil {
			return TunnelState{}, err
		}
		return TunnelState{Running: strings.Contains(state, "RUNNING")}, nil
	}

	pid, ok := t.ReadPID()
	if !ok {
		return TunnelState{}, nil
	}
	if !t.alive(ctx, pid) {
		common.LogDebug("Removing stale PID file for pid %d", pid)
		t.RemovePID()
		return TunnelState{PID: pid}, nil
	}
	return TunnelState{Running: true, PID: pid}, nil
}

// IsRunning reports whether the tunnel process or service is alive.
func (t *Tracker) IsRunning(ctx context.Context) (bool, error) {
	state, err := t.Status(ctx)
	return state.Running, err
}

// StartService starts the Windows tunnel service.
func (t *Tracker) StartService(ctx context.Context) error {
	return t.controlService(ctx, "start")
}

// Stop terminates the tunnel. Without a PID record it returns ErrNoPIDFound.
func (t *Tracker) Stop(ctx context.Context) error {
	if t.cfg.Platform == PlatformWindows {
		return t.controlService(ctx, "stop")
	}

	pid, ok := t.ReadPID()
	if !ok {
		return ErrNoPIDFound
	}

	if err := t.elevator.RunElevated(ctx, "kill", "-9", strconv.Itoa(pid)); err != nil {
		if t.alive(ctx, pid) {
			return fmt.Errorf("failed to stop openvpn (pid %d): %w", pid, err)
		}
		common.LogDebug("kill %d failed but process is gone: %v", pid, err)
	}
	t.RemovePID()
	return nil
}

func (t *Tracker) controlService(ctx context.Context, verb string) error {
	netExe := t.cfg.SystemBinary("net.exe")
	if !common.FileExists(netExe) {
		return fmt.Errorf("%w: %s", ErrCommandNotFound, netExe)
	}
	if err := t.elevator.RunElevated(ctx, netExe, verb, t.serviceName); err != nil {
		return fmt.Errorf("failed to %s service %s: %w", verb, t.serviceName, err)
	}
	return nil
}
