// pkg/installer/uninstall.go - resolving uninstall descriptors into one or
// more command lines.

package installer

import (
	"context"
	"fmt"
	"path/filepath"

	perrors "github.com/windowsadmins/provision/pkg/errors"
	"github.com/windowsadmins/provision/pkg/logging"
	"github.com/windowsadmins/provision/pkg/manifest"
	"github.com/windowsadmins/provision/pkg/precheck"
	"github.com/windowsadmins/provision/pkg/runner"
	"github.com/windowsadmins/provision/pkg/utils"
)

const displayVersion = "DisplayVersion"

// Uninstallation resolves one entry's uninstall descriptor.
type Uninstallation struct {
	manifest.Uninstallation
	Name    string
	Desired string
	Locator *Locator
	Env     *precheck.Environment
}

// Commands returns the deduplicated uninstall commands. Explicit mode yields
// one command; registry mode yields one per discovered uninstall string.
func (u *Uninstallation) Commands(ctx context.Context, logOption []string, silent bool) ([]runner.Command, error) {
	switch {
	case u.Command != nil:
		cmd, err := u.explicit(ctx, logOption, silent)
		if err != nil {
			return nil, err
		}
		return []runner.Command{cmd}, nil
	case u.Registry != nil:
		return u.fromRegistry(logOption, silent)
	}
	return nil, nil
}

func (u *Uninstallation) explicit(ctx context.Context, logOption []string, silent bool) (runner.Command, error) {
	c := u.Command
	args := append([]string{}, c.UninstallCommand...)
	var dir string
	if c.InstallerExe != "" {
		exe, err := u.Locator.Resolve(ctx, Source{
			Name:     u.Name,
			Path:     c.InstallerPath,
			File:     c.InstallerExe,
			Checksum: c.Checksum,
			URL:      c.DownloadURL,
			MaxSize:  c.MaxFileSize,
		})
		if err != nil {
			return runner.Command{}, err
		}
		args = append(args, exe)
		dir = filepath.Dir(exe)
	}
	if silent {
		args = append(args, c.QuietUninstallFlags...)
	} else {
		args = append(args, c.UninstallFlags...)
	}
	args = append(args, logOption...)
	return runner.Command{Args: args, Dir: dir}, nil
}

func (u *Uninstallation) fromRegistry(logOption []string, silent bool) ([]runner.Command, error) {
	r := u.Registry
	value := r.RegistryValue
	if value == "" {
		value = manifest.DefaultUninstallValue
	}

	var entries []string
	if len(r.CheckNames) == 0 {
		entries = precheck.NewRegistry(u.Name, u.Desired, manifest.RegistryCheck{
			RegistryKeys:  r.RegistryKeys,
			RegistryValue: value,
			ExactMatch:    true,
		}, u.Env).Entries(nil)
	}
	for _, cn := range r.CheckNames {
		for _, v := range u.versionsFor(cn) {
			var filters map[string]string
			if v != "" {
				filters = map[string]string{displayVersion: v}
			}
			entries = append(entries, precheck.NewRegistry(cn.Name, v, manifest.RegistryCheck{
				RegistryKeys:  r.RegistryKeys,
				RegistryValue: value,
				CheckName:     cn.Name,
				ExactMatch:    true,
			}, u.Env).Entries(filters)...)
		}
	}

	var vectors [][]string
	for _, entry := range entries {
		args := utils.SplitCommandLine(entry)
		if len(args) == 0 {
			continue
		}
		if silent {
			args = append(args, r.QuietUninstallFlags...)
		} else {
			args = append(args, r.UninstallFlags...)
		}
		args = append(args, logOption...)
		vectors = append(vectors, args)
	}
	vectors = utils.DedupCommands(vectors)
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: no %s found in the registry for %s", perrors.ErrNotFound, value, u.Name)
	}

	commands := make([]runner.Command, 0, len(vectors))
	for _, args := range vectors {
		commands = append(commands, runner.Command{Args: args})
	}
	logging.Debug("Uninstall commands resolved", "software", u.Name, "count", len(commands))
	return commands, nil
}

// versionsFor returns the versions of a sub-product to remove: the pinned or
// desired version, or every installed version when all_versions is set.
func (u *Uninstallation) versionsFor(cn manifest.InstalledName) []string {
	want := cn.Version
	if want == "" {
		want = u.Desired
	}
	if !u.AllVersions {
		return []string{want}
	}
	found := precheck.NewRegistry(cn.Name, want, manifest.RegistryCheck{
		RegistryKeys:  u.Registry.RegistryKeys,
		RegistryValue: displayVersion,
		CheckName:     cn.Name,
	}, u.Env).Entries(nil)

	seen := map[string]struct{}{}
	var out []string
	for _, v := range found {
		if _, dup := seen[v]; !dup {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
