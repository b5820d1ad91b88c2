package vpn

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/yllada/vpnht/common"
)

// Platform is one of the three supported host OS families.
type Platform string

const (
	PlatformMac     Platform = "mac"
	PlatformLinux   Platform = "linux"
	PlatformWindows Platform = "windows"
)

// PlatformFromGOOS maps a Go GOOS value to a Platform.
func PlatformFromGOOS(goos string) (Platform, error) {
	switch goos {
	case "darwin":
		return PlatformMac, nil
	case "linux":
		return PlatformLinux, nil
	case "windows":
		return PlatformWindows, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPlatform, goos)
	}
}

// artifactToken is the platform name used in artifact file names.
func (p Platform) artifactToken() string {
	if p == PlatformWindows {
		return "win32"
	}
	return string(p)
}

// Arch is the architecture token used in artifact file names.
type Arch string

const (
	ArchX86 Arch = "x86"
	ArchX64 Arch = "x64"
)

// ArchFromGOARCH maps a Go GOARCH value to an artifact architecture token.
func ArchFromGOARCH(goarch string) Arch {
	switch goarch {
	case "386":
		return ArchX86
	case "amd64":
		return ArchX64
	default:
		return Arch(goarch)
	}
}

// InstallConfig describes where the tunnel client lives on this host.
// It is derived from the environment on demand and never persisted.
type InstallConfig struct {
	Platform    Platform
	Arch        Arch
	InstallPath string
	// SystemDir is the Windows System32 directory (windows only).
	SystemDir string
}

// ResolveInstallConfig derives the install configuration for goos/goarch
// from the environment. The result depends only on its inputs.
func ResolveInstallConfig(goos, goarch string, getenv func(string) string) (InstallConfig, error) {
	platform, err := PlatformFromGOOS(goos)
	if err != nil {
		return InstallConfig{}, err
	}

	homeVar := "HOME"
	if platform == PlatformWindows {
		homeVar = "USERPROFILE"
	}
	home := getenv(homeVar)
	if home == "" {
		return InstallConfig{}, fmt.Errorf("cannot resolve install path: %s is not set", homeVar)
	}

	cfg := InstallConfig{
		Platform:    platform,
		Arch:        ArchFromGOARCH(goarch),
		InstallPath: filepath.Clean(filepath.Join(home, common.InstallDirName)),
	}
	if platform == PlatformWindows {
		cfg.SystemDir = filepath.Join(systemDrive(getenv)+string(filepath.Separator), "Windows", "System32")
	}
	return cfg, nil
}

// systemDrive returns %SystemDrive%, else the drive of %SystemRoot%, else C:.
func systemDrive(getenv func(string) string) string {
	if drive := getenv("SystemDrive"); drive != "" {
		return drive
	}
	if root := strings.Split(getenv("SystemRoot"), `\`)[0]; root != "" {
		return root
	}
	return "C:"
}

// BinaryPath is the tunnel client executable.
func (c InstallConfig) BinaryPath() string {
	if c.Platform == PlatformWindows {
		return filepath.Join(c.InstallPath, "bin", "openvpn.exe")
	}
	return filepath.Join(c.InstallPath, "openvpn")
}

// HaveBinaries reports whether the tunnel client executable is present.
func (c InstallConfig) HaveBinaries() bool {
	info, err := os.Stat(c.BinaryPath())
	return err == nil && !info.IsDir()
}

// ConfigPath is the client configuration placed by the installer.
func (c InstallConfig) ConfigPath() string {
	return filepath.Join(c.InstallPath, common.ClientConfigName)
}

// PIDPath is the file the tunnel client writes its PID to.
func (c InstallConfig) PIDPath() string {
	return filepath.Join(c.InstallPath, common.PIDFileName)
}

// LogPath is the tunnel client's append-only log.
func (c InstallConfig) LogPath() string {
	return filepath.Join(c.InstallPath, common.TunnelLogFileName)
}

// ServiceConfigPath is the copy of the config read by the Windows service.
func (c InstallConfig) ServiceConfigPath() string {
	return filepath.Join(c.InstallPath, common.ServiceConfigDir, common.ServiceConfigName)
}

// HelperDir holds the extracted elevation helper.
func (c InstallConfig) HelperDir() string {
	return filepath.Join(c.InstallPath, common.HelperDirName)
}

// HelperPath is the elevation helper executable.
func (c InstallConfig) HelperPath() string {
	name := "runas"
	if c.Platform == PlatformWindows {
		name = "runas.exe"
	}
	return filepath.Join(c.HelperDir(), name)
}

// SystemBinary returns the path of a System32 executable (windows only).
func (c InstallConfig) SystemBinary(name string) string {
	return filepath.Join(c.SystemDir, name)
}

// HelperArtifactURL is the elevation helper tarball. The helper only ships
// as a 32-bit build on mac and windows.
func (c InstallConfig) HelperArtifactURL(base string) (string, error) {
	arch := c.Arch
	if c.Platform == PlatformMac || c.Platform == PlatformWindows {
		arch = ArchX86
	}
	return url.JoinPath(base, fmt.Sprintf("runas-%s-%s.tar.gz", c.Platform.artifactToken(), arch))
}

// ClientArtifactURL is the tunnel client tarball (mac, linux) or the
// silent installer executable (windows).
func (c InstallConfig) ClientArtifactURL(base string) (string, error) {
	switch c.Platform {
	case PlatformMac:
		return url.JoinPath(base, "openvpn-mac.tar.gz")
	case PlatformLinux:
		return url.JoinPath(base, fmt.Sprintf("openvpn-linux-%s.tar.gz", c.Arch))
	case PlatformWindows:
		return url.JoinPath(base, fmt.Sprintf("openvpn-windows-%s.exe", c.Arch))
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPlatform, c.Platform)
	}
}

// ConfigArtifactURL is the shared client configuration.
func (c InstallConfig) ConfigArtifactURL(base string) (string, error) {
	return url.JoinPath(base, common.ClientConfigName)
}
