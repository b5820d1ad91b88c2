// Package common provides shared constants, types, and utilities
// used across vpnht.
package common

import "time"

// Application metadata.
const (
	// AppName is the display name of the application.
	AppName = "vpnht"
	// ConfigDirName is the name of the configuration directory.
	ConfigDirName = "vpnht"
)

// File names used by the application.
const (
	ConfigFileName      = "config.yaml"
	SettingsFileName    = "settings.db"
	CredentialsFileName = ".credentials"
	LogFileName         = "vpnht.log"
)

// Files kept under the tunnel install path.
const (
	InstallDirName     = ".openvpn"
	PIDFileName        = "vpnht.pid"
	TunnelLogFileName  = "vpnht.log"
	ClientConfigName   = "openvpn.conf"
	ServiceConfigDir   = "config"
	ServiceConfigName  = "openvpn.ovpn"
	HelperDirName      = "runas"
	WindowsServiceName = "OpenVPNService"
)

// Settings keys shared with the host application.
const (
	SettingInstalled = "vpn"
	SettingDisabled  = "vpnDisabledPerm"
	SettingUsername  = "vpnUsername"
	SettingPassword  = "vpnPassword"
)

// Default endpoints.
const (
	DefaultArtifactBaseURL = "https://s3-eu-west-1.amazonaws.com/vpnht"
	DefaultIPEndpoint      = "http://curlmyip.com/"
)

// Default timeouts and intervals.
const (
	// DownloadTimeout bounds a single artifact download.
	DownloadTimeout = 10 * time.Minute
	// ElevationTimeout bounds a single elevated command.
	ElevationTimeout = 2 * time.Minute
	// ProbeTimeout bounds a public IP lookup.
	ProbeTimeout = 15 * time.Second
	// MonitorInterval is how often the watcher re-checks the tunnel.
	MonitorInterval = 30 * time.Second
)
