package vpn

import (
	"context"
	"fmt"

	"github.com/yllada/vpnht/common"
)

// nsisDirFlag sets the target directory of the silent Windows installer.
// It must be the last argument.
const nsisDirFlag = "/D="

// Installer fetches and places the tunnel client, its helper and config.
type Installer struct {
	cfg      InstallConfig
	baseURL  string
	fetcher  ArtifactFetcher
	elevator Elevator
	settings common.SettingsStore
}

// NewInstaller creates an installer pulling artifacts from baseURL.
func NewInstaller(cfg InstallConfig, baseURL string, fetcher ArtifactFetcher, elevator Elevator, settings common.SettingsStore) *Installer {
	if baseURL == "" {
		baseURL = common.DefaultArtifactBaseURL
	}
	return &Installer{
		cfg:      cfg,
		baseURL:  baseURL,
		fetcher:  fetcher,
		elevator: elevator,
		settings: settings,
	}
}

type installStep struct {
	name string
	run  func(ctx context.Context) error
}

// Install runs the platform's install chain. Every artifact is downloaded
// before anything is placed, and the installed flag is set last.
func (i *Installer) Install(ctx context.Context) error {
	steps, err := i.steps()
	if err != nil {
		return err
	}

	common.LogInfo("Installing OpenVPN for %s/%s into %s", i.cfg.Platform, i.cfg.Arch, i.cfg.InstallPath)
	for _, step := range steps {
		common.LogDebug("Install step: %s", step.name)
		if err := step.run(ctx); err != nil {
			common.LogError("Install step %s failed: %v", step.name, err)
			return fmt.Errorf("install %s: %w", step.name, err)
		}
	}

	if err := i.settings.SetBool(common.SettingInstalled, true); err != nil {
		return fmt.Errorf("failed to mark installed: %w", err)
	}
	common.LogInfo("OpenVPN installed")
	return nil
}

func (i *Installer) steps() ([]installStep, error) {
	var helperDir, clientDir, configPath, setupPath string

	fetchHelper := installStep{"fetch helper", func(ctx context.Context) (err error) {
		helperDir, err = i.fetchTarball(ctx, i.cfg.HelperArtifactURL)
		return err
	}}
	fetchClient := installStep{"fetch client", func(ctx context.Context) (err error) {
		clientDir, err = i.fetchTarball(ctx, i.cfg.ClientArtifactURL)
		return err
	}}
	fetchConfig := installStep{"fetch config", func(ctx context.Context) (err error) {
		configPath, err = i.fetchConfig(ctx)
		return err
	}}
	fetchSetup := installStep{"fetch installer", func(ctx context.Context) error {
		url, err := i.cfg.ClientArtifactURL(i.baseURL)
		if err != nil {
			return err
		}
		setupPath, err = i.fetcher.FetchFile(ctx, url, "openvpn-install.exe")
		return err
	}}
	placeHelper := installStep{"place helper", func(ctx context.Context) error {
		return movePath(helperDir, i.cfg.HelperDir())
	}}
	placeClient := installStep{"place client", func(ctx context.Context) error {
		return moveContents(clientDir, i.cfg.InstallPath)
	}}
	placeConfig := installStep{"place config", func(ctx context.Context) error {
		return movePath(configPath, i.cfg.ConfigPath())
	}}
	runSetup := installStep{"run installer", func(ctx context.Context) error {
		return i.elevator.RunElevated(ctx, setupPath,
			"/S", "SELECT_SERVICE=1", "/SELECT_SHORTCUTS=0", "/SELECT_OPENVPNGUI=0",
			nsisDirFlag+i.cfg.InstallPath)
	}}

	switch i.cfg.Platform {
	case PlatformMac:
		return []installStep{fetchHelper, fetchClient, fetchConfig, placeHelper, placeClient, placeConfig}, nil
	case PlatformLinux:
		return []installStep{fetchClient, fetchConfig, placeClient, placeConfig}, nil
	case PlatformWindows:
		return []installStep{fetchHelper, fetchConfig, fetchSetup, placeHelper, placeConfig, runSetup}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, i.cfg.Platform)
	}
}

func (i *Installer) fetchTarball(ctx context.Context, artifactURL func(string) (string, error)) (string, error) {
	url, err := artifactURL(i.baseURL)
	if err != nil {
		return "", err
	}
	return i.fetcher.FetchTarball(ctx, url)
}

func (i *Installer) fetchConfig(ctx context.Context) (string, error) {
	url, err := i.cfg.ConfigArtifactURL(i.baseURL)
	if err != nil {
		return "", err
	}
	path, err := i.fetcher.FetchFile(ctx, url, common.ClientConfigName)
	if err != nil {
		return "", err
	}
	if err := validateClientConfig(path); err != nil {
		return "", err
	}
	return path, nil
}

