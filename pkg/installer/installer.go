// pkg/installer/installer.go - turning manifest install descriptors into
// command lines and verified archive paths.

package installer

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/windowsadmins/provision/pkg/manifest"
	"github.com/windowsadmins/provision/pkg/runner"
	"github.com/windowsadmins/provision/pkg/utils"
)

// Logs builds the installer's own log-redirection arguments.
type Logs struct {
	manifest.Logs
	Dir string
}

// File is the absolute path of the installer log.
func (l Logs) File() string {
	return utils.AbsolutePath(l.Dir, strings.TrimSpace(l.FileName))
}

// Option returns the log arguments. An option ending in "=" is glued to the
// file path; otherwise the path follows as a separate argument.
func (l Logs) Option() []string {
	opt := strings.TrimSpace(l.Logs.Option)
	if opt == "" {
		return nil
	}
	if strings.HasSuffix(opt, "=") {
		return []string{opt + l.File()}
	}
	return []string{opt, l.File()}
}

// Installation resolves one entry's installer.
type Installation struct {
	manifest.Installation
	Name    string
	Locator *Locator
}

// Source describes the installer file.
func (i *Installation) Source() Source {
	return Source{
		Name:     i.Name,
		Path:     i.InstallerPath,
		File:     i.InstallerExe,
		Checksum: i.Checksum,
		URL:      i.DownloadURL,
		MaxSize:  i.MaxFileSize,
	}
}

// Command locates and verifies the installer and assembles
// install_command + installer + quiet or interactive flags + log option.
// The command runs from the installer's directory.
func (i *Installation) Command(ctx context.Context, logOption []string, silent bool) (runner.Command, error) {
	exe, err := i.Locator.Resolve(ctx, i.Source())
	if err != nil {
		return runner.Command{}, err
	}
	args := append([]string{}, i.InstallCommand...)
	args = append(args, exe)
	if silent {
		args = append(args, i.QuietInstallFlags...)
	} else {
		args = append(args, i.InstallFlags...)
	}
	args = append(args, logOption...)
	return runner.Command{Args: args, Dir: filepath.Dir(exe)}, nil
}

// ArchiveInstallation resolves one archive entry.
type ArchiveInstallation struct {
	manifest.ArchiveInstallation
	Name            string
	InstallationDir string
	Locator         *Locator
}

// Verify returns the path of the verified archive, downloading it once if
// needed.
func (a *ArchiveInstallation) Verify(ctx context.Context) (string, error) {
	return a.Locator.Resolve(ctx, Source{
		Name:     a.Name,
		Path:     a.SourcePath,
		File:     a.SourceFile,
		Checksum: a.Checksum,
		URL:      a.DownloadURL,
		MaxSize:  a.MaxFileSize,
	})
}

// Destination is where the archive is extracted.
func (a *ArchiveInstallation) Destination() string {
	return utils.AbsolutePath(a.InstallationDir, a.DestinationDir)
}
