package vpn

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yllada/vpnht/common"
)

// Event is a tunnel lifecycle notification for the UI layer.
type Event int

const (
	// EventRefresh is emitted when the start-up check finds the tunnel
	// already running.
	EventRefresh Event = iota
	// EventConnected follows a successful Connect.
	EventConnected
	// EventDisconnected follows a successful Disconnect.
	EventDisconnected
)

// String returns the event name.
func (e Event) String() string {
	switch e {
	case EventRefresh:
		return "refresh"
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// IPSource looks up the public IP address.
type IPSource interface {
	Probe(ctx context.Context) (string, error)
}

// TunnelTracker derives tunnel state from the OS and controls the tunnel.
type TunnelTracker interface {
	Status(ctx context.Context) (TunnelState, error)
	Stop(ctx context.Context) error
	StartService(ctx context.Context) error
	RemovePID()
}

// Options configures a Manager.
type Options struct {
	Config   InstallConfig
	Settings common.SettingsStore
	Elevator Elevator
	Tracker  TunnelTracker
	Prober   IPSource
	// Installer runs Install. Optional when Install is never called.
	Installer *Installer
	// AuthDirs creates the private directory holding the auth file.
	AuthDirs *TempDirs
	OnEvent  func(Event)
}

// ConnectOptions tunes a single Connect call.
type ConnectOptions struct {
	// RespectDisabled makes Connect fail with ErrDisabled while the
	// disabled flag is set.
	RespectDisabled bool
}

// Manager drives the tunnel lifecycle. Install, Connect and Disconnect are
// serialized; state reads may happen concurrently.
type Manager struct {
	cfg       InstallConfig
	settings  common.SettingsStore
	elevator  Elevator
	tracker   TunnelTracker
	prober    IPSource
	installer *Installer
	authDirs  *TempDirs
	onEvent   func(Event)

	opMu sync.Mutex

	mu      sync.RWMutex
	running bool
	ip      string

	refreshes sync.WaitGroup
}

// NewManager creates a Manager from opts.
func NewManager(opts Options) *Manager {
	authDirs := opts.AuthDirs
	if authDirs == nil {
		authDirs = NewTempDirs("")
	}
	return &Manager{
		cfg:       opts.Config,
		settings:  opts.Settings,
		elevator:  opts.Elevator,
		tracker:   opts.Tracker,
		prober:    opts.Prober,
		installer: opts.Installer,
		authDirs:  authDirs,
		onEvent:   opts.OnEvent,
	}
}

// Config returns the install configuration.
func (m *Manager) Config() InstallConfig {
	return m.cfg
}

// Running returns the cached running hint.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// IP returns the last probed public IP.
func (m *Manager) IP() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ip
}

// IsInstalled reports whether the client binaries are present and a full
// install has completed.
func (m *Manager) IsInstalled() bool {
	if !m.cfg.HaveBinaries() {
		return false
	}
	installed, err := m.settings.GetBool(common.SettingInstalled)
	if err != nil {
		common.LogWarn("Failed to read installed flag: %v", err)
		return false
	}
	return installed
}

// IsDisabled reports whether the user permanently disabled the tunnel.
func (m *Manager) IsDisabled() bool {
	disabled, err := m.settings.GetBool(common.SettingDisabled)
	if err != nil {
		common.LogWarn("Failed to read disabled flag: %v", err)
		return false
	}
	return disabled
}

// IsRunning re-derives the running state from the OS.
func (m *Manager) IsRunning(ctx context.Context) (bool, error) {
	return m.checkRunning(ctx, false)
}

// CheckOnStart is IsRunning for application start-up; it emits
// EventRefresh when the tunnel is already up.
func (m *Manager) CheckOnStart(ctx context.Context) (bool, error) {
	return m.checkRunning(ctx, true)
}

func (m *Manager) checkRunning(ctx context.Context, startup bool) (bool, error) {
	if !m.IsInstalled() {
		return false, nil
	}

	state, err := m.tracker.Status(ctx)
	if err != nil {
		common.LogWarn("Failed to query tunnel state: %v", err)
		return false, err
	}

	m.mu.Lock()
	m.running = state.Running
	m.mu.Unlock()

	if state.PID != 0 {
		m.refreshIP()
	}
	if startup && state.Running {
		m.emit(EventRefresh)
	}
	return state.Running, nil
}

// Install downloads and installs the client for this platform.
func (m *Manager) Install(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.installer == nil {
		return fmt.Errorf("no installer configured")
	}
	return m.installer.Install(ctx)
}

// Connect starts the tunnel with the stored credentials.
func (m *Manager) Connect(ctx context.Context, opts ConnectOptions) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if opts.RespectDisabled && m.IsDisabled() {
		return ErrDisabled
	}

	configPath := m.cfg.ConfigPath()
	if !common.FileExists(configPath) {
		return fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
	}

	authPath, err := m.writeAuth()
	if err != nil {
		return err
	}

	if m.cfg.Platform == PlatformWindows {
		err = m.connectService(ctx, configPath, authPath)
	} else {
		err = m.connectDaemon(ctx, configPath, authPath)
	}
	if err != nil {
		common.LogError("Connect failed: %v", err)
		return err
	}

	m.mu.Lock()
	m.running = true
	m.mu.Unlock()

	common.LogInfo("VPN connected")
	m.refreshIP()
	m.emit(EventConnected)
	return nil
}

func (m *Manager) writeAuth() (string, error) {
	username, err := m.settings.GetString(common.SettingUsername)
	if err != nil {
		return "", fmt.Errorf("failed to read username: %w", err)
	}
	password, err := m.settings.GetString(common.SettingPassword)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	dir, err := m.authDirs.Mkdir("vpnht-auth-")
	if err != nil {
		return "", err
	}
	// The tunnel rereads the file on reconnect.
	m.authDirs.Release(dir)
	return writeAuthFile(dir, username, password)
}

func (m *Manager) connectDaemon(ctx context.Context, configPath, authPath string) error {
	binary := m.cfg.BinaryPath()
	if !m.cfg.HaveBinaries() {
		return fmt.Errorf("%w: %s", ErrCommandNotFound, binary)
	}

	m.tracker.RemovePID()
	return m.elevator.RunElevated(ctx, binary, daemonArgs(m.cfg, configPath, authPath)...)
}

func daemonArgs(cfg InstallConfig, configPath, authPath string) []string {
	args := []string{
		"--daemon",
		"--writepid", cfg.PIDPath(),
		"--log-append", cfg.LogPath(),
	}
	if cfg.Platform == PlatformLinux {
		args = append(args, "--dev", "tun0")
	}
	return append(args, "--config", configPath, "--auth-user-pass", authPath)
}

func (m *Manager) connectService(ctx context.Context, configPath, authPath string) error {
	if err := writeServiceConfig(configPath, m.cfg.ServiceConfigPath(), authPath); err != nil {
		return err
	}
	return m.tracker.StartService(ctx)
}

// Disconnect stops the tunnel. It is a no-op when the tunnel is not
// believed to be running.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if !m.Running() {
		return nil
	}

	err := m.tracker.Stop(ctx)
	if err != nil && !errors.Is(err, ErrNoPIDFound) {
		common.LogError("Disconnect failed: %v", err)
		return err
	}

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()

	if err != nil {
		return err
	}

	common.LogInfo("VPN disconnected")
	m.refreshIP()
	m.emit(EventDisconnected)
	return nil
}

// GetIP probes the public IP and caches it. On failure the cached value
// is kept.
func (m *Manager) GetIP(ctx context.Context) (string, error) {
	if m.prober == nil {
		return "", fmt.Errorf("no ip prober configured")
	}
	ip, err := m.prober.Probe(ctx)
	if err != nil {
		common.LogDebug("IP probe failed: %v", err)
		return "", err
	}

	m.mu.Lock()
	m.ip = ip
	m.mu.Unlock()
	return ip, nil
}

// Wait blocks until background IP refreshes have finished.
func (m *Manager) Wait() {
	m.refreshes.Wait()
}

func (m *Manager) refreshIP() {
	if m.prober == nil {
		return
	}
	m.refreshes.Add(1)
	go func() {
		defer m.refreshes.Done()
		if ip, err := m.GetIP(context.Background()); err == nil {
			common.LogDebug("Public IP is %s", ip)
		}
	}()
}

func (m *Manager) emit(e Event) {
	if m.onEvent != nil {
		m.onEvent(e)
	}
}
