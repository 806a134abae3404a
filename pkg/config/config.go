// pkg/config/config.go - configuration settings for provision.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up next to the executable.
const FileName = "provision.yaml"

// PolicyRegistryPath holds machine policy values used when no file exists.
const PolicyRegistryPath = `SOFTWARE\Provision\Config`

// errNoPolicy is returned by the policy loader when no policy key exists.
var errNoPolicy = errors.New("no policy configuration")

// Configuration holds the configurable options for provision in YAML format
type Configuration struct {
	ManifestPath    string `yaml:"ManifestPath"`    // JSON or YAML manifest, relative to Workspace
	Workspace       string `yaml:"Workspace"`       // Root that manifest paths are relative to
	InstallationDir string `yaml:"InstallationDir"` // Target for copy_files and archives
	LogLevel        string `yaml:"LogLevel"`
	Online          bool   `yaml:"Online"`
	Silent          bool   `yaml:"Silent"`
	EventsJSON      bool   `yaml:"EventsJSON"` // Write events.jsonl next to the run log

	InstallerTimeoutMinutes int `yaml:"InstallerTimeoutMinutes"` // 0 waits forever
	DownloadTimeoutMinutes  int `yaml:"DownloadTimeoutMinutes"`
	DownloadRetries         int `yaml:"DownloadRetries"` // Attempts per download, 1 = no retry
	VersionTimeoutSeconds   int `yaml:"VersionTimeoutSeconds"`

	// Without SSL_CA_CERTIFICATE_FILE or SSL_CA_CERTIFICATES_PATH downloads
	// skip TLS verification unless this is false.
	AllowInsecureDownloads bool `yaml:"AllowInsecureDownloads"`

	// Path the configuration was read from, empty for defaults or policy.
	Source string `yaml:"-"`
}

// GetDefaultConfig provides default configuration values.
func GetDefaultConfig() *Configuration {
	workspace := "."
	if exe, err := os.Executable(); err == nil {
		workspace = filepath.Dir(exe)
	}
	return &Configuration{
		ManifestPath:            "manifest.json",
		Workspace:               workspace,
		LogLevel:                "INFO",
		Online:                  true,
		EventsJSON:              true,
		InstallerTimeoutMinutes: 0,
		DownloadTimeoutMinutes:  5,
		DownloadRetries:         1,
		VersionTimeoutSeconds:   60,
		AllowInsecureDownloads:  true,
	}
}

// DefaultConfigPath returns provision.yaml next to the running executable.
func DefaultConfigPath() string {
	exe, err := os.Executable()
	if err != nil {
		return FileName
	}
	return filepath.Join(filepath.Dir(exe), FileName)
}

// LoadConfig loads the configuration from a YAML file. An empty path means
// DefaultConfigPath. If the file doesn't exist, machine policy values from the
// registry are used, and failing those the defaults.
func LoadConfig(path string) (*Configuration, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}

	config := GetDefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) || explicit {
			return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
		}
		if err := loadFromPolicy(PolicyRegistryPath, config); err != nil && !errors.Is(err, errNoPolicy) {
			return nil, fmt.Errorf("failed to load policy configuration: %w", err)
		}
		return config, config.Validate()
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %s: %w", path, err)
	}
	config.Source = path
	return config, config.Validate()
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(config *Configuration, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to serialize configuration: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create configuration directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}

// Validate rejects values that would make a run misbehave.
func (c *Configuration) Validate() error {
	switch {
	case c.InstallerTimeoutMinutes < 0:
		return fmt.Errorf("InstallerTimeoutMinutes must not be negative")
	case c.DownloadTimeoutMinutes < 0:
		return fmt.Errorf("DownloadTimeoutMinutes must not be negative")
	case c.DownloadRetries < 0:
		return fmt.Errorf("DownloadRetries must not be negative")
	case c.VersionTimeoutSeconds < 0:
		return fmt.Errorf("VersionTimeoutSeconds must not be negative")
	}
	return nil
}

// ResolvedManifestPath returns ManifestPath made absolute against Workspace.
func (c *Configuration) ResolvedManifestPath() string {
	if filepath.IsAbs(c.ManifestPath) {
		return c.ManifestPath
	}
	return filepath.Join(c.Workspace, c.ManifestPath)
}

// InstallerTimeout is the per-installer limit, zero for none.
func (c *Configuration) InstallerTimeout() time.Duration {
	return time.Duration(c.InstallerTimeoutMinutes) * time.Minute
}

// DownloadTimeout is the overall request timeout for one download.
func (c *Configuration) DownloadTimeout() time.Duration {
	if c.DownloadTimeoutMinutes == 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.DownloadTimeoutMinutes) * time.Minute
}

// VersionTimeout bounds every version command a precheck runs.
func (c *Configuration) VersionTimeout() time.Duration {
	if c.VersionTimeoutSeconds == 0 {
		return 60 * time.Second
	}
	return time.Duration(c.VersionTimeoutSeconds) * time.Second
}
