// pkg/manifest/manifest.go - the provisioning manifest: what to install, how to
// detect it, and how to remove it.

package manifest

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the manifest leaves a field empty.
const (
	DefaultLogsDir          = "SetupLogs"
	DefaultUninstallLogsDir = "UninstallLogs"
	DefaultLogFile          = "install.log"
	DefaultMaxFileSize      = int64(1) << 30
	DefaultDelimiter        = " "
	DefaultUninstallValue   = "UninstallString"
)

// Manifest is the whole provisioning document.
type Manifest struct {
	DefaultPaths DefaultPaths `json:"default_paths" yaml:"default_paths"`
	Software     []Software   `json:"software_installations,omitempty" yaml:"software_installations,omitempty" validate:"dive"`
	Archives     []Archive    `json:"archive_installations,omitempty" yaml:"archive_installations,omitempty" validate:"dive"`

	// Path the manifest was read from.
	Source string `json:"-" yaml:"-"`
}

// DefaultPaths holds workspace-relative locations shared by every entry.
type DefaultPaths struct {
	LocalInstallersPath string   `json:"local_installers_path" yaml:"local_installers_path" validate:"required"`
	LogsDir             string   `json:"logs_dir,omitempty" yaml:"logs_dir,omitempty"`
	UninstallLogsDir    string   `json:"uninstall_logs_dir,omitempty" yaml:"uninstall_logs_dir,omitempty"`
	InstallationDir     string   `json:"installation_dir,omitempty" yaml:"installation_dir,omitempty"`
	VenvPath            string   `json:"venv_path,omitempty" yaml:"venv_path,omitempty"`
	SamplesDir          string   `json:"samples_dir,omitempty" yaml:"samples_dir,omitempty"`
	DeleteFiles         []string `json:"delete_files,omitempty" yaml:"delete_files,omitempty"`
	CopyFiles           []string `json:"copy_files,omitempty" yaml:"copy_files,omitempty"`
}

// Software is one installable product.
type Software struct {
	Name                 string          `json:"name" yaml:"name" validate:"required"`
	TargetVersion        string          `json:"target_version,omitempty" yaml:"target_version,omitempty"`
	Installation         Installation    `json:"installation" yaml:"installation"`
	Prechecks            Prechecks       `json:"prechecks,omitempty" yaml:"prechecks,omitempty"`
	Uninstallation       *Uninstallation `json:"uninstallation,omitempty" yaml:"uninstallation,omitempty"`
	Logs                 Logs            `json:"logs,omitempty" yaml:"logs,omitempty"`
	PostInstall          []PostInstall   `json:"post_install,omitempty" yaml:"post_install,omitempty" validate:"dive"`
	BlockingApplications []string        `json:"blocking_applications,omitempty" yaml:"blocking_applications,omitempty" validate:"dive,required"`
}

// Installation locates an installer and describes how to run it.
type Installation struct {
	InstallerPath     string   `json:"installer_path,omitempty" yaml:"installer_path,omitempty"`
	InstallerExe      string   `json:"installer_exe" yaml:"installer_exe" validate:"required"`
	InstallFlags      []string `json:"install_flags,omitempty" yaml:"install_flags,omitempty"`
	QuietInstallFlags []string `json:"quiet_install_flags,omitempty" yaml:"quiet_install_flags,omitempty"`
	InstallCommand    []string `json:"install_command,omitempty" yaml:"install_command,omitempty"`
	DownloadURL       string   `json:"download_url,omitempty" yaml:"download_url,omitempty" validate:"omitempty,url"`
	Checksum          string   `json:"checksum,omitempty" yaml:"checksum,omitempty" validate:"omitempty,hexadecimal,len=64"`
	MaxFileSize       int64    `json:"max_file_size,omitempty" yaml:"max_file_size,omitempty" validate:"gte=0"`
}

// Prechecks lists the evidence sources enabled for an entry.
type Prechecks struct {
	Registry    *RegistryCheck    `json:"registry,omitempty" yaml:"registry,omitempty"`
	Command     *CommandCheck     `json:"command_check,omitempty" yaml:"command_check,omitempty"`
	Directory   *DirectoryCheck   `json:"directory_check,omitempty" yaml:"directory_check,omitempty"`
	RegistryDir *RegistryDirCheck `json:"registry_dir_check,omitempty" yaml:"registry_dir_check,omitempty"`
	RegistryCmd *RegistryCmdCheck `json:"registry_cmd_check,omitempty" yaml:"registry_cmd_check,omitempty"`
}

// RegistryCheck reads a version-bearing value from explicit keys and/or
// from the installed-program index entry with the given display name.
type RegistryCheck struct {
	RegistryKeys  []string `json:"registry_keys,omitempty" yaml:"registry_keys,omitempty"`
	RegistryValue string   `json:"registry_value,omitempty" yaml:"registry_value,omitempty"`
	CheckName     string   `json:"check_name_in_installed_softwares,omitempty" yaml:"check_name_in_installed_softwares,omitempty"`
	ExactMatch    bool     `json:"exact_match,omitempty" yaml:"exact_match,omitempty"`
}

// CommandCheck runs a command and reads the version from its first line.
type CommandCheck struct {
	Command    []string `json:"command,omitempty" yaml:"command,omitempty"`
	Options    []string `json:"options,omitempty" yaml:"options,omitempty"`
	Delimiter  string   `json:"delimiter,omitempty" yaml:"delimiter,omitempty"`
	ExactMatch bool     `json:"exact_match,omitempty" yaml:"exact_match,omitempty"`
}

// DirectoryCheck treats the existence of paths as the desired version.
type DirectoryCheck struct {
	FilePaths  []string `json:"file_paths,omitempty" yaml:"file_paths,omitempty"`
	AnyPath    bool     `json:"any_path,omitempty" yaml:"any_path,omitempty"`
	ExactMatch bool     `json:"exact_match,omitempty" yaml:"exact_match,omitempty"`
}

// RegistryDirCheck resolves registry values to directories and checks
// that any of them exists.
type RegistryDirCheck struct {
	RegistryCheck `yaml:",inline"`
	AppendPath    string `json:"append_path,omitempty" yaml:"append_path,omitempty"`
}

// RegistryCmdCheck resolves registry values to executables and asks each
// one for its version.
type RegistryCmdCheck struct {
	RegistryDirCheck `yaml:",inline"`
	CommandOptions   []string `json:"command_options,omitempty" yaml:"command_options,omitempty"`
}

// Uninstallation describes how to remove an entry: either a fixed command
// or discovery of UninstallString values in the registry.
type Uninstallation struct {
	AllVersions bool               `json:"all_versions,omitempty" yaml:"all_versions,omitempty"`
	Command     *UninstallCommand  `json:"command,omitempty" yaml:"command,omitempty"`
	Registry    *UninstallRegistry `json:"registry,omitempty" yaml:"registry,omitempty"`
}

// UninstallCommand is an explicit uninstaller.
type UninstallCommand struct {
	UninstallCommand    []string `json:"uninstall_command,omitempty" yaml:"uninstall_command,omitempty"`
	InstallerPath       string   `json:"installer_path,omitempty" yaml:"installer_path,omitempty"`
	InstallerExe        string   `json:"installer_exe,omitempty" yaml:"installer_exe,omitempty"`
	UninstallFlags      []string `json:"uninstall_flags,omitempty" yaml:"uninstall_flags,omitempty"`
	QuietUninstallFlags []string `json:"quiet_uninstall_flags,omitempty" yaml:"quiet_uninstall_flags,omitempty"`
	Checksum            string   `json:"checksum,omitempty" yaml:"checksum,omitempty" validate:"omitempty,hexadecimal,len=64"`
	DownloadURL         string   `json:"download_url,omitempty" yaml:"download_url,omitempty" validate:"omitempty,url"`
	MaxFileSize         int64    `json:"max_file_size,omitempty" yaml:"max_file_size,omitempty" validate:"gte=0"`
}

// UninstallRegistry discovers uninstall strings in the registry.
type UninstallRegistry struct {
	CheckNames          []InstalledName `json:"check_name_in_installed_softwares,omitempty" yaml:"check_name_in_installed_softwares,omitempty" validate:"dive"`
	RegistryValue       string          `json:"registry_value,omitempty" yaml:"registry_value,omitempty"`
	RegistryKeys        []string        `json:"registry_keys,omitempty" yaml:"registry_keys,omitempty"`
	UninstallFlags      []string        `json:"uninstall_flags,omitempty" yaml:"uninstall_flags,omitempty"`
	QuietUninstallFlags []string        `json:"quiet_uninstall_flags,omitempty" yaml:"quiet_uninstall_flags,omitempty"`
}

// InstalledName names a sub-product in the installed-program index,
// optionally pinned to one version.
type InstalledName struct {
	Name    string `json:"name" yaml:"name" validate:"required"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
}

// Logs asks an installer to write its own log file.
type Logs struct {
	FileName string `json:"file_name,omitempty" yaml:"file_name,omitempty"`
	Option   string `json:"option,omitempty" yaml:"option,omitempty"`
}

// PostInstall is one hook run after a successful install.
type PostInstall struct {
	Command           []string `json:"command" yaml:"command" validate:"required,min=1,dive,required"`
	FallbackCommand   []string `json:"fallback_command,omitempty" yaml:"fallback_command,omitempty"`
	RunOnFileContents string   `json:"run_on_file_contents,omitempty" yaml:"run_on_file_contents,omitempty"`
}

// Archive is a zip file extracted into the installation directory.
type Archive struct {
	Name          string              `json:"name" yaml:"name" validate:"required"`
	TargetVersion string              `json:"target_version,omitempty" yaml:"target_version,omitempty"`
	Installation  ArchiveInstallation `json:"installation" yaml:"installation"`
}

// ArchiveInstallation locates an archive and says where it goes.
type ArchiveInstallation struct {
	SourcePath     string          `json:"source_path,omitempty" yaml:"source_path,omitempty"`
	SourceFile     string          `json:"source_file" yaml:"source_file" validate:"required"`
	DestinationDir string          `json:"destination_dir,omitempty" yaml:"destination_dir,omitempty"`
	Members        []ArchiveMember `json:"members,omitempty" yaml:"members,omitempty"`
	DownloadURL    string          `json:"download_url,omitempty" yaml:"download_url,omitempty" validate:"omitempty,url"`
	Checksum       string          `json:"checksum,omitempty" yaml:"checksum,omitempty" validate:"omitempty,hexadecimal,len=64"`
	MaxFileSize    int64           `json:"max_file_size,omitempty" yaml:"max_file_size,omitempty" validate:"gte=0"`
	SkipTopDir     bool            `json:"skip_top_dir,omitempty" yaml:"skip_top_dir,omitempty"`
}

// ArchiveMember selects an archive entry. A trailing "/" selects a whole
// directory. In the manifest it is either a plain path string or an object.
type ArchiveMember struct {
	Path         string `json:"path" yaml:"path" validate:"required"`
	KeepOnlyBase bool   `json:"keep_only_base,omitempty" yaml:"keep_only_base,omitempty"`
}

// UnmarshalJSON accepts "dir/" as well as {"path": "dir/", "keep_only_base": true}.
func (m *ArchiveMember) UnmarshalJSON(data []byte) error {
	var path string
	if err := json.Unmarshal(data, &path); err == nil {
		*m = ArchiveMember{Path: path}
		return nil
	}
	type plain ArchiveMember
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("archive member must be a string or an object: %w", err)
	}
	*m = ArchiveMember(p)
	return nil
}

// UnmarshalYAML accepts a scalar path or a mapping.
func (m *ArchiveMember) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*m = ArchiveMember{Path: node.Value}
		return nil
	}
	type plain ArchiveMember
	var p plain
	if err := node.Decode(&p); err != nil {
		return fmt.Errorf("archive member must be a string or a mapping: %w", err)
	}
	*m = ArchiveMember(p)
	return nil
}

// ByName returns the software entry with the given name, case-insensitively.
func (m *Manifest) ByName(name string) (*Software, bool) {
	key := normalize(name)
	for i := range m.Software {
		if normalize(m.Software[i].Name) == key {
			return &m.Software[i], true
		}
	}
	return nil, false
}

// Names returns the software entry names in manifest order.
func (m *Manifest) Names() []string {
	names := make([]string, len(m.Software))
	for i, sw := range m.Software {
		names[i] = sw.Name
	}
	return names
}
