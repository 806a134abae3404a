package precheck

import (
	"context"
	"strings"

	"github.com/windowsadmins/provision/pkg/manifest"
	"github.com/windowsadmins/provision/pkg/registry"
	"github.com/windowsadmins/provision/pkg/utils"
)

// Registry reads a version from the installed-program index and/or from
// explicit registry keys.
type Registry struct {
	target
	check manifest.RegistryCheck
	env   *Environment
}

// NewRegistry builds a standalone registry check, e.g. for uninstall discovery.
func NewRegistry(name, desired string, check manifest.RegistryCheck, env *Environment) *Registry {
	return &Registry{target: target{name: name, desired: desired, exact: check.ExactMatch}, check: check, env: env}
}

// Kind implements Precheck.
func (r *Registry) Kind() string { return "registry" }

// Enabled implements Precheck.
func (r *Registry) Enabled() bool {
	return r.check.RegistryValue != "" && (len(r.check.RegistryKeys) > 0 || strings.TrimSpace(r.check.CheckName) != "")
}

// Entries returns the configured value from every matching index entry
// (restricted by filters) followed by the value under each explicit key.
func (r *Registry) Entries(filters map[string]string) []string {
	var out []string
	if name := strings.TrimSpace(r.check.CheckName); name != "" {
		for _, e := range r.env.Installed.Lookup(name, filters) {
			if v := e.Value(r.check.RegistryValue); v != "" {
				out = append(out, v)
			}
		}
	}
	if r.env.Registry != nil {
		for _, key := range r.check.RegistryKeys {
			out = append(out, registry.KeyValues(r.env.Registry, utils.ExpandEnv(key), r.check.RegistryValue)...)
		}
	}
	return out
}

// VersionsFound implements Precheck.
func (r *Registry) VersionsFound(context.Context) (bool, []string) {
	found := r.Entries(nil)
	return r.satisfied(found), found
}

// RegistryDir resolves registry values to paths and treats the existence of
// any of them as the desired version.
type RegistryDir struct {
	target
	check manifest.RegistryDirCheck
	env   *Environment
}

// Kind implements Precheck.
func (r *RegistryDir) Kind() string { return "registry_dir_check" }

// Enabled implements Precheck.
func (r *RegistryDir) Enabled() bool {
	return (&Registry{check: r.check.RegistryCheck}).Enabled()
}

func (r *RegistryDir) paths() []string {
	return resolvePaths(NewRegistry(r.name, r.desired, r.check.RegistryCheck, r.env).Entries(nil), r.check.AppendPath)
}

// VersionsFound implements Precheck.
func (r *RegistryDir) VersionsFound(ctx context.Context) (bool, []string) {
	dir := &Directory{
		target: r.target,
		check:  manifest.DirectoryCheck{FilePaths: r.paths(), AnyPath: true},
		env:    r.env,
	}
	return dir.VersionsFound(ctx)
}

// RegistryCmd resolves registry values to executables and runs each one to
// read its version. Any executable reporting the desired version or newer
// satisfies the check; exact_match is not applied here.
type RegistryCmd struct {
	target
	check manifest.RegistryCmdCheck
	env   *Environment
}

// Kind implements Precheck.
func (r *RegistryCmd) Kind() string { return "registry_cmd_check" }

// Enabled implements Precheck.
func (r *RegistryCmd) Enabled() bool {
	return (&Registry{check: r.check.RegistryCheck}).Enabled()
}

// VersionsFound implements Precheck.
func (r *RegistryCmd) VersionsFound(ctx context.Context) (bool, []string) {
	exes := resolvePaths(NewRegistry(r.name, r.desired, r.check.RegistryCheck, r.env).Entries(nil), r.check.AppendPath)
	satisfied := false
	var versions []string
	for _, exe := range exes {
		cmd := &Command{
			target: target{name: r.name, desired: r.desired},
			check: manifest.CommandCheck{
				Command:   []string{exe},
				Options:   r.check.CommandOptions,
				Delimiter: manifest.DefaultDelimiter,
			},
			env: r.env,
		}
		ok, found := cmd.VersionsFound(ctx)
		satisfied = satisfied || ok
		versions = append(versions, found...)
	}
	return satisfied, versions
}

// resolvePaths appends suffix to every registry-provided directory.
func resolvePaths(dirs []string, suffix string) []string {
	if suffix == "" {
		return dirs
	}
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		out = append(out, utils.AbsolutePath(strings.TrimRight(d, `\`), suffix))
	}
	return out
}
