// Package cli provides the vpnht command-line interface and wires the
// tunnel manager to its configuration, settings and credential stores.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/yllada/vpnht/common"
	"github.com/yllada/vpnht/config"
	"github.com/yllada/vpnht/keyring"
	"github.com/yllada/vpnht/notify"
	"github.com/yllada/vpnht/settings"
	"github.com/yllada/vpnht/vpn"
)

// CLI represents the command-line interface.
type CLI struct {
	out      io.Writer
	cfg      *config.Config
	manager  *vpn.Manager
	settings common.SettingsStore
	closers  []func() error
}

// Options configures New.
type Options struct {
	// ConfigPath overrides the default config file location.
	ConfigPath string
	Out        io.Writer
}

// New loads the configuration and builds the tunnel manager with its
// settings store, keyring, elevator and notifier.
func New(opts Options) (*CLI, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.ConfigPath != "" {
		cfg, err = config.LoadFrom(opts.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	install, err := vpn.ResolveInstallConfig(runtime.GOOS, runtime.GOARCH, os.Getenv)
	if err != nil {
		return nil, err
	}

	configDir, err := common.GetConfigDir()
	if err != nil {
		return nil, err
	}
	secrets := keyring.New(configDir)
	if secrets.UsesLocalStorage() {
		common.LogDebug("System keyring unavailable, using encrypted file storage")
	}

	store, err := settings.OpenDefault(secrets)
	if err != nil {
		return nil, err
	}

	session := vpn.NewSession(vpn.NewTerminalPrompter())
	elevator, err := vpn.NewElevator(install, session, cfg.ElevationTimeout)
	if err != nil {
		store.Close()
		return nil, err
	}

	client := &http.Client{}
	temp := vpn.NewTempDirs("")
	fetcher := vpn.NewFetcher(client, temp, cfg.DownloadTimeout)
	notifier := notify.New(cfg.Notifications)

	manager := vpn.NewManager(vpn.Options{
		Config:    install,
		Settings:  store,
		Elevator:  elevator,
		Tracker:   vpn.NewTracker(install, elevator, cfg.ServiceName),
		Prober:    vpn.NewIPProber(client, cfg.IPEndpoint, cfg.ProbeTimeout),
		Installer: vpn.NewInstaller(install, cfg.ArtifactBaseURL, fetcher, elevator, store),
		AuthDirs:  temp,
		OnEvent:   notify.EventHandler(notifier),
	})

	c := newCLI(opts.Out, cfg, manager, store)
	c.closers = append(c.closers, temp.Cleanup, store.Close)
	if closer, ok := notifier.(io.Closer); ok {
		c.closers = append(c.closers, closer.Close)
	}
	return c, nil
}

func newCLI(out io.Writer, cfg *config.Config, manager *vpn.Manager, store common.SettingsStore) *CLI {
	if out == nil {
		out = os.Stdout
	}
	return &CLI{out: out, cfg: cfg, manager: manager, settings: store}
}

// Close waits for background work and releases resources.
func (c *CLI) Close() error {
	c.manager.Wait()

	var errs []error
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Status prints the installation and tunnel state.
func (c *CLI) Status(ctx context.Context) error {
	installed := c.manager.IsInstalled()
	running, err := c.manager.IsRunning(ctx)
	if err != nil {
		common.LogWarn("Could not determine tunnel state: %v", err)
	}

	ip, err := c.manager.GetIP(ctx)
	if err != nil {
		ip = c.manager.IP()
	}

	fmt.Fprintln(c.out, titleStyle.Render("vpnht status"))
	fmt.Fprintln(c.out, statusLine("Installed", yesNo(installed), boolStyle(installed)))
	fmt.Fprintln(c.out, statusLine("Disabled", yesNo(c.manager.IsDisabled()), dimStyle))
	if running {
		fmt.Fprintln(c.out, statusLine("Tunnel", "running", okStyle))
	} else {
		fmt.Fprintln(c.out, statusLine("Tunnel", "stopped", dimStyle))
	}
	fmt.Fprintln(c.out, statusLine("Public IP", emptyDash(ip), dimStyle))
	fmt.Fprintln(c.out, statusLine("Path", c.manager.Config().InstallPath, dimStyle))
	return nil
}

// Install downloads and installs the tunnel client.
func (c *CLI) Install(ctx context.Context, force bool) error {
	if c.manager.IsInstalled() && !force {
		fmt.Fprintln(c.out, "OpenVPN is already installed. Use --force to reinstall.")
		return nil
	}

	fmt.Fprintf(c.out, "Installing OpenVPN into %s...\n", c.manager.Config().InstallPath)
	if err := c.manager.Install(ctx); err != nil {
		return fmt.Errorf("installation failed: %w", err)
	}
	fmt.Fprintln(c.out, okStyle.Render("✓ Installed"))
	return nil
}

// Connect starts the tunnel with the saved credentials.
func (c *CLI) Connect(ctx context.Context) error {
	if !c.manager.IsInstalled() {
		return fmt.Errorf("%w: run 'vpnht install' first", common.ErrNotInstalled)
	}

	running, err := c.manager.IsRunning(ctx)
	if err == nil && running {
		fmt.Fprintln(c.out, "The tunnel is already running.")
		return nil
	}

	username, err := c.settings.GetString(common.SettingUsername)
	if err != nil {
		return err
	}
	if username == "" {
		return fmt.Errorf("no saved credentials. Use 'vpnht credentials set' first")
	}

	fmt.Fprintln(c.out, "Connecting...")
	if err := c.manager.Connect(ctx, vpn.ConnectOptions{RespectDisabled: true}); err != nil {
		if errors.Is(err, common.ErrDisabled) {
			return fmt.Errorf("the tunnel is disabled. Use 'vpnht enable' first")
		}
		return fmt.Errorf("connection failed (%s): %w", vpn.Reason(err), err)
	}

	fmt.Fprintln(c.out, okStyle.Render("✓ Connected"))
	return nil
}

// Disconnect stops the tunnel if it is running.
func (c *CLI) Disconnect(ctx context.Context) error {
	running, err := c.manager.IsRunning(ctx)
	if err != nil {
		return err
	}
	if !running {
		fmt.Fprintln(c.out, "No active tunnel.")
		return nil
	}

	fmt.Fprintln(c.out, "Disconnecting...")
	if err := c.manager.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect (%s): %w", vpn.Reason(err), err)
	}
	fmt.Fprintln(c.out, okStyle.Render("✓ Disconnected"))
	return nil
}

// ShowIP prints the current public IP address.
func (c *CLI) ShowIP(ctx context.Context) error {
	ip, err := c.manager.GetIP(ctx)
	if err != nil {
		return fmt.Errorf("failed to look up public IP: %w", err)
	}
	fmt.Fprintln(c.out, ip)
	return nil
}

// Watch reports tunnel state changes until ctx is cancelled.
func (c *CLI) Watch(ctx context.Context, autoReconnect bool) error {
	monitorConfig := vpn.DefaultMonitorConfig()
	monitorConfig.Interval = c.cfg.WatchInterval
	monitorConfig.AutoReconnect = autoReconnect

	monitor := vpn.NewMonitor(c.manager, monitorConfig)
	monitor.SetOnChange(func(oldState, newState vpn.MonitorState) {
		fmt.Fprintf(c.out, "%s %s -> %s\n",
			dimStyle.Render(time.Now().Format(time.TimeOnly)), oldState, stateStyle(newState).Render(newState.String()))
	})

	if _, err := c.manager.CheckOnStart(ctx); err != nil {
		common.LogWarn("Could not determine tunnel state: %v", err)
	}

	monitor.Start(ctx)
	<-ctx.Done()
	monitor.Stop()
	return nil
}

// SetCredentials saves the tunnel username and password.
func (c *CLI) SetCredentials(username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required")
	}
	if err := c.settings.SetString(common.SettingUsername, username); err != nil {
		return fmt.Errorf("failed to save username: %w", err)
	}
	if err := c.settings.SetString(common.SettingPassword, password); err != nil {
		return fmt.Errorf("failed to save password: %w", err)
	}
	fmt.Fprintln(c.out, okStyle.Render("✓ Credentials saved"))
	return nil
}

// SetDisabled sets the permanent disabled flag.
func (c *CLI) SetDisabled(disabled bool) error {
	if err := c.settings.SetBool(common.SettingDisabled, disabled); err != nil {
		return fmt.Errorf("failed to update disabled flag: %w", err)
	}
	if disabled {
		fmt.Fprintln(c.out, "The tunnel is disabled.")
	} else {
		fmt.Fprintln(c.out, "The tunnel is enabled.")
	}
	return nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func emptyDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
