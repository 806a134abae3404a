// pkg/process/process.go - functions for processing install, uninstall,
// post-install and archive actions for every manifest entry.

package process

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/windowsadmins/provision/pkg/blocking"
	perrors "github.com/windowsadmins/provision/pkg/errors"
	"github.com/windowsadmins/provision/pkg/installer"
	"github.com/windowsadmins/provision/pkg/logging"
	"github.com/windowsadmins/provision/pkg/manifest"
	"github.com/windowsadmins/provision/pkg/precheck"
	"github.com/windowsadmins/provision/pkg/runner"
	"github.com/windowsadmins/provision/pkg/scripts"
	"github.com/windowsadmins/provision/pkg/utils"
	"github.com/windowsadmins/provision/pkg/version"
)

// Batch holds what every entry of one run shares. Entries are processed
// one at a time; a Batch is not safe for concurrent use.
type Batch struct {
	Locator          *installer.Locator
	Env              *precheck.Environment // installed-program snapshot, registry, version runner
	Runner           runner.Runner         // installers, uninstallers and hooks
	Blocking         *blocking.Checker
	LogsDir          string
	Silent           bool
	Force            bool
	InstallerTimeout time.Duration
}

func (b *Batch) logs(sw manifest.Software) installer.Logs {
	return installer.Logs{Logs: sw.Logs, Dir: b.LogsDir}
}

// checkBlocking fails while any of the entry's blocking applications runs.
func (b *Batch) checkBlocking(sw manifest.Software) error {
	if b.Blocking == nil || len(sw.BlockingApplications) == 0 {
		return nil
	}
	if running := b.Blocking.RunningApps(sw.Name, sw.BlockingApplications); len(running) > 0 {
		return fmt.Errorf("%w: %v", perrors.ErrBlocked, running)
	}
	return nil
}

func (b *Batch) run(ctx context.Context, cmd runner.Command) error {
	if cmd.Timeout == 0 {
		cmd.Timeout = b.InstallerTimeout
	}
	logging.Info("Running command", "command", cmd.String(), "dir", cmd.Dir)
	_, err := b.Runner.Run(ctx, cmd)
	return err
}

// SoftwareInstall installs one manifest entry.
type SoftwareInstall struct {
	sw    manifest.Software
	b     *Batch
	inst  *installer.Installation
	check *precheck.Set
}

// NewSoftwareInstall prepares the install of sw.
func (b *Batch) NewSoftwareInstall(sw manifest.Software) *SoftwareInstall {
	return &SoftwareInstall{
		sw:    sw,
		b:     b,
		inst:  &installer.Installation{Installation: sw.Installation, Name: sw.Name, Locator: b.Locator},
		check: precheck.NewSet(sw.Name, sw.TargetVersion, sw.Prechecks, b.Env, nil),
	}
}

// InstallRequired reports whether the installer has to run. Forced runs
// always install; otherwise the prechecks decide.
func (s *SoftwareInstall) InstallRequired(ctx context.Context) bool {
	if s.b.Force {
		logging.Info("Forced reinstall", "software", s.sw.Name)
		return true
	}
	res := s.check.VersionsFound(ctx)
	if res.Enabled == 0 {
		logging.Info("No prechecks defined, skipping unless forced", "software", s.sw.Name)
		return false
	}
	if res.Satisfied {
		logging.Info("Desired version already installed", "software", s.sw.Name,
			"target_version", s.sw.TargetVersion, "found", res.Versions)
		return false
	}
	if s.sw.TargetVersion != "" && version.AllOlder(res.Versions, s.sw.TargetVersion) {
		logging.Info("Older version found, upgrading", "software", s.sw.Name,
			"found", res.Versions, "target_version", s.sw.TargetVersion)
	}
	return true
}

// Workspace is the directory post-install hooks run in.
func (s *SoftwareInstall) Workspace() string {
	return s.b.Locator.Dir(s.inst.Source())
}

// Install runs the installer when required, then the post-install hooks.
// It reports whether anything was changed.
func (s *SoftwareInstall) Install(ctx context.Context) (bool, error) {
	if !s.InstallRequired(ctx) {
		return false, nil
	}
	name := s.sw.Name
	if err := s.b.checkBlocking(s.sw); err != nil {
		logging.LogInstallFailed(name, s.sw.TargetVersion, err)
		return false, perrors.NewEntryError(name, "install", err)
	}

	logs := s.b.logs(s.sw)
	cmd, err := s.inst.Command(ctx, logs.Option(), s.b.Silent)
	if err != nil {
		logging.LogInstallFailed(name, s.sw.TargetVersion, err)
		return false, perrors.NewEntryError(name, "install", err)
	}

	start := time.Now()
	logging.LogInstallStart(name, s.sw.TargetVersion)
	if err := s.b.run(ctx, cmd); err != nil {
		logging.Error("Installation failed, please check the log file", "software", name,
			"command", cmd.String(), "log_file", logs.File(), "error", err)
		logging.LogInstallFailed(name, s.sw.TargetVersion, err)
		return true, perrors.NewEntryError(name, "install", err)
	}

	if err := s.PostProcess(ctx); err != nil {
		logging.LogInstallFailed(name, s.sw.TargetVersion, err)
		return true, perrors.NewEntryError(name, "post_install", err)
	}
	logging.LogInstallComplete(name, s.sw.TargetVersion, time.Since(start))
	return true, nil
}

// PostProcess runs the entry's post-install hooks in order.
func (s *SoftwareInstall) PostProcess(ctx context.Context) error {
	if len(s.sw.PostInstall) == 0 {
		return nil
	}
	hooks := make([]*scripts.Hook, 0, len(s.sw.PostInstall))
	for _, p := range s.sw.PostInstall {
		hooks = append(hooks, &scripts.Hook{
			PostInstall: p,
			Software:    s.sw.Name,
			Workspace:   s.Workspace(),
			Runner:      s.b.Runner,
			Timeout:     s.b.InstallerTimeout,
		})
	}
	return scripts.RunAll(ctx, hooks)
}

// SoftwareUninstall removes one manifest entry.
type SoftwareUninstall struct {
	sw    manifest.Software
	b     *Batch
	check *precheck.Set
}

// NewSoftwareUninstall prepares the removal of sw. Unless all_versions is
// set, every precheck matches the target version exactly.
func (b *Batch) NewSoftwareUninstall(sw manifest.Software) *SoftwareUninstall {
	exact := sw.Uninstallation == nil || !sw.Uninstallation.AllVersions
	return &SoftwareUninstall{
		sw:    sw,
		b:     b,
		check: precheck.NewSet(sw.Name, sw.TargetVersion, sw.Prechecks, b.Env, &exact),
	}
}

// UninstallRequired reports whether anything has to be removed. Without
// prechecks the uninstall resolver alone decides.
func (u *SoftwareUninstall) UninstallRequired(ctx context.Context) bool {
	if u.sw.Uninstallation == nil {
		logging.Info("No uninstallation defined", "software", u.sw.Name)
		return false
	}
	res := u.check.VersionsFound(ctx)
	switch {
	case res.Enabled == 0:
		return true
	case !u.sw.Uninstallation.AllVersions && res.Satisfied:
		return true
	case u.sw.Uninstallation.AllVersions && len(res.Versions) > 0:
		return true
	}
	logging.Info("Software is not installed", "software", u.sw.Name, "target_version", u.sw.TargetVersion)
	return false
}

// Uninstall runs every resolved uninstall command. All commands are
// attempted; the entry fails if any of them does.
func (u *SoftwareUninstall) Uninstall(ctx context.Context) (bool, error) {
	if !u.UninstallRequired(ctx) {
		return false, nil
	}
	name := u.sw.Name
	if err := u.b.checkBlocking(u.sw); err != nil {
		logging.LogUninstallFailed(name, err)
		return false, perrors.NewEntryError(name, "uninstall", err)
	}

	un := &installer.Uninstallation{
		Uninstallation: *u.sw.Uninstallation,
		Name:           name,
		Desired:        u.sw.TargetVersion,
		Locator:        u.b.Locator,
		Env:            u.b.Env,
	}
	logs := u.b.logs(u.sw)
	cmds, err := un.Commands(ctx, logs.Option(), u.b.Silent)
	if err != nil {
		logging.LogUninstallFailed(name, err)
		return false, perrors.NewEntryError(name, "uninstall", err)
	}

	start := time.Now()
	logging.LogUninstallStart(name)
	var errs []error
	for _, cmd := range cmds {
		if err := u.b.run(ctx, cmd); err != nil {
			logging.Error("Uninstallation failed, please check the log file", "software", name,
				"command", cmd.String(), "log_file", logs.File(), "error", err)
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		logging.LogUninstallFailed(name, err)
		return true, perrors.NewEntryError(name, "uninstall", err)
	}
	logging.LogUninstallComplete(name, time.Since(start))
	return true, nil
}

// ArchiveInstall extracts one archive entry.
type ArchiveInstall struct {
	ar   manifest.Archive
	b    *Batch
	inst *installer.ArchiveInstallation
}

// NewArchiveInstall prepares the extraction of ar below installationDir.
func (b *Batch) NewArchiveInstall(ar manifest.Archive, installationDir string) *ArchiveInstall {
	return &ArchiveInstall{
		ar: ar,
		b:  b,
		inst: &installer.ArchiveInstallation{
			ArchiveInstallation: ar.Installation,
			Name:                ar.Name,
			InstallationDir:     installationDir,
			Locator:             b.Locator,
		},
	}
}

// Unarchive verifies the archive and extracts it. Forced runs clear the
// destination first.
func (a *ArchiveInstall) Unarchive(ctx context.Context) error {
	path, err := a.inst.Verify(ctx)
	if err != nil {
		return perrors.NewEntryError(a.ar.Name, "archive", err)
	}
	dest := a.inst.Destination()
	if a.inst.SkipTopDir {
		err = extractSkipTopDir(path, dest, a.inst.Members, a.b.Force)
	} else {
		members := make([]string, 0, len(a.inst.Members))
		for _, m := range a.inst.Members {
			members = append(members, m.Path)
		}
		err = extractPreserve(path, dest, members, a.b.Force)
	}
	if err != nil {
		logging.Error("Failed to unzip the file", "archive", a.ar.Name, "path", path, "error", err)
		return perrors.NewEntryError(a.ar.Name, "archive", err)
	}
	return nil
}

// DeleteFiles removes files below base after an uninstall batch.
func DeleteFiles(base string, files []string) error {
	if len(files) == 0 {
		return nil
	}
	return utils.DeleteFiles(base, files)
}
