// pkg/manifest/load.go - reading and validating manifest files.

package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	perrors "github.com/windowsadmins/provision/pkg/errors"
	"github.com/windowsadmins/provision/pkg/logging"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate
)

// validatorInstance returns the shared validator, reporting fields by their
// manifest key names.
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
		validateInst = v
	})
	return validateInst
}

// Load reads a manifest from a .json, .yaml or .yml file, applies defaults
// and validates it. Every problem is reported as an errors.ConfigError.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, perrors.NewConfigError("manifest", fmt.Sprintf("manifest not found: %s", path), err)
		}
		return nil, perrors.NewConfigError("manifest", fmt.Sprintf("failed to read %s", path), err)
	}

	m, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	m.Source = path
	logging.Debug("Manifest loaded", "path", path, "software", len(m.Software), "archives", len(m.Archives))
	return m, nil
}

// Parse decodes manifest bytes. ext selects the format; anything other than
// .yaml/.yml is treated as JSON. Keys the tool does not know are ignored;
// the misspelled keys of older manifests are accepted under their current names.
func Parse(data []byte, ext string) (*Manifest, error) {
	var m Manifest
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, perrors.NewConfigError("manifest", "invalid YAML", err)
		}
		if doc.Kind != 0 {
			renameLegacyYAML(&doc)
			if err := doc.Decode(&m); err != nil {
				return nil, perrors.NewConfigError("manifest", "invalid YAML", err)
			}
		}
	default:
		renamed, err := renameLegacyJSON(data)
		if err != nil {
			return nil, perrors.NewConfigError("manifest", "invalid JSON", err)
		}
		if err := json.Unmarshal(renamed, &m); err != nil {
			return nil, perrors.NewConfigError("manifest", "invalid JSON", err)
		}
	}

	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	if m.DefaultPaths.LogsDir == "" {
		m.DefaultPaths.LogsDir = DefaultLogsDir
	}
	if m.DefaultPaths.UninstallLogsDir == "" {
		m.DefaultPaths.UninstallLogsDir = DefaultUninstallLogsDir
	}
	for i := range m.Software {
		sw := &m.Software[i]
		if sw.Installation.MaxFileSize == 0 {
			sw.Installation.MaxFileSize = DefaultMaxFileSize
		}
		if strings.TrimSpace(sw.Logs.FileName) == "" {
			sw.Logs.FileName = DefaultLogFile
		}
		if c := sw.Prechecks.Command; c != nil && c.Delimiter == "" {
			c.Delimiter = DefaultDelimiter
		}
		if u := sw.Uninstallation; u != nil {
			if u.Command != nil && u.Command.MaxFileSize == 0 {
				u.Command.MaxFileSize = DefaultMaxFileSize
			}
			if u.Registry != nil && u.Registry.RegistryValue == "" {
				u.Registry.RegistryValue = DefaultUninstallValue
			}
		}
	}
	for i := range m.Archives {
		if m.Archives[i].Installation.MaxFileSize == 0 {
			m.Archives[i].Installation.MaxFileSize = DefaultMaxFileSize
		}
	}
}

// Validate checks struct tags and the rules that span entries.
func (m *Manifest) Validate() error {
	if err := validatorInstance().Struct(m); err != nil {
		return convertValidationError(err)
	}

	seen := map[string]int{}
	for i, sw := range m.Software {
		key := normalize(sw.Name)
		if j, dup := seen[key]; dup {
			return perrors.NewConfigError(
				fmt.Sprintf("software_installations[%d].name", i),
				fmt.Sprintf("duplicate software name %q (also at index %d)", sw.Name, j), nil)
		}
		seen[key] = i

		if u := sw.Uninstallation; u != nil {
			field := fmt.Sprintf("software_installations[%d].uninstallation", i)
			switch {
			case u.Command != nil && u.Registry != nil:
				return perrors.NewConfigError(field, "set either command or registry, not both", nil)
			case u.Command == nil && u.Registry == nil:
				return perrors.NewConfigError(field, "one of command or registry is required", nil)
			case u.Command != nil && u.Command.InstallerExe == "" && len(u.Command.UninstallCommand) == 0:
				return perrors.NewConfigError(field+".command", "installer_exe or uninstall_command is required", nil)
			case u.Registry != nil && len(u.Registry.CheckNames) == 0 && len(u.Registry.RegistryKeys) == 0:
				return perrors.NewConfigError(field+".registry",
					"check_name_in_installed_softwares or registry_keys is required", nil)
			}
		}
	}

	names := map[string]int{}
	for i, ar := range m.Archives {
		key := normalize(ar.Name)
		if j, dup := names[key]; dup {
			return perrors.NewConfigError(
				fmt.Sprintf("archive_installations[%d].name", i),
				fmt.Sprintf("duplicate archive name %q (also at index %d)", ar.Name, j), nil)
		}
		names[key] = i
	}
	return nil
}

// convertValidationError turns the first validator failure into a ConfigError
// naming the manifest field.
func convertValidationError(err error) error {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		fe := ves[0]
		field := manifestFieldName(fe)
		msg := fmt.Sprintf("%s failed validation for tag '%s'", field, fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s failed validation for tag '%s=%s'", field, fe.Tag(), fe.Param())
		}
		return perrors.NewConfigError(field, msg, err)
	}
	return perrors.NewConfigError("manifest", err.Error(), err)
}

func manifestFieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return ns
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
