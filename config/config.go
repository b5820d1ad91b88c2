// Package config provides configuration management for vpnht.
// It handles loading, saving, and validating application settings.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yllada/vpnht/common"
)

// Config represents the application configuration.
// All settings are persisted to a YAML file in the user's config directory.
type Config struct {
	// ArtifactBaseURL is where tarballs, installers and openvpn.conf are fetched from.
	ArtifactBaseURL string `yaml:"artifact_base_url"`
	// IPEndpoint answers a GET with the caller's public IP as plain text.
	IPEndpoint string `yaml:"ip_endpoint"`
	// ServiceName is the Windows service that runs the tunnel.
	ServiceName string `yaml:"service_name"`
	// DownloadTimeout bounds a single artifact download.
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	// ElevationTimeout bounds a single elevated command.
	ElevationTimeout time.Duration `yaml:"elevation_timeout"`
	// ProbeTimeout bounds a public IP lookup.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	// WatchInterval is how often `vpnht watch` re-checks the tunnel.
	WatchInterval time.Duration `yaml:"watch_interval"`
	// Notifications enables desktop notifications for tunnel events.
	Notifications bool `yaml:"notifications"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ArtifactBaseURL:  common.DefaultArtifactBaseURL,
		IPEndpoint:       common.DefaultIPEndpoint,
		ServiceName:      common.WindowsServiceName,
		DownloadTimeout:  common.DownloadTimeout,
		ElevationTimeout: common.ElevationTimeout,
		ProbeTimeout:     common.ProbeTimeout,
		WatchInterval:    common.MonitorInterval,
		Notifications:    true,
	}
}

// Load loads the configuration from the default config file.
// If the file doesn't exist, it is created with default values.
func Load() (*Config, error) {
	configPath, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadFrom loads the configuration from path, writing defaults when the
// file is missing.
func LoadFrom(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.SaveTo(configPath); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfigLoad, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	config := *DefaultConfig()
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("error parsing configuration: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validate rejects unusable URLs and falls back to defaults for
// non-positive durations and empty names.
func (c *Config) validate() error {
	for name, raw := range map[string]string{
		"artifact_base_url": c.ArtifactBaseURL,
		"ip_endpoint":       c.IPEndpoint,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("%s: %q is not an http(s) URL", name, raw)
		}
	}

	defaults := DefaultConfig()
	if c.ServiceName == "" {
		c.ServiceName = defaults.ServiceName
	}
	if c.DownloadTimeout <= 0 {
		c.DownloadTimeout = defaults.DownloadTimeout
	}
	if c.ElevationTimeout <= 0 {
		c.ElevationTimeout = defaults.ElevationTimeout
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = defaults.ProbeTimeout
	}
	if c.WatchInterval <= 0 {
		c.WatchInterval = defaults.WatchInterval
	}
	return nil
}

// SaveTo writes the configuration to path.
func (c *Config) SaveTo(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("error serializing configuration: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfigSave, err)
	}

	return nil
}

// Path returns the default config file path.
func Path() (string, error) {
	dir, err := common.ConfigDir()
	if err != nil {
		return "", fmt.Errorf("error getting config directory: %w", err)
	}
	return filepath.Join(dir, common.ConfigFileName), nil
}
