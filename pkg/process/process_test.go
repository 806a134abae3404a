package process

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windowsadmins/provision/pkg/blocking"
	"github.com/windowsadmins/provision/pkg/download"
	perrors "github.com/windowsadmins/provision/pkg/errors"
	"github.com/windowsadmins/provision/pkg/installer"
	"github.com/windowsadmins/provision/pkg/logging"
	"github.com/windowsadmins/provision/pkg/manifest"
	"github.com/windowsadmins/provision/pkg/precheck"
	"github.com/windowsadmins/provision/pkg/registry"
	"github.com/windowsadmins/provision/pkg/runner"
)

type fixture struct {
	root    string
	runner  *runner.Fake
	fetches int
	batch   *Batch
}

func newFixture(t *testing.T, mem *registry.Memory, present ...string) *fixture {
	t.Helper()
	f := &fixture{root: t.TempDir(), runner: &runner.Fake{}}
	if mem == nil {
		mem = registry.NewMemory()
	}
	set := map[string]bool{}
	for _, p := range present {
		set[p] = true
	}
	f.batch = &Batch{
		Locator: &installer.Locator{
			InstallersDir: filepath.Join(f.root, "installers"),
			Online:        true,
			Fetch: func(_ context.Context, req download.Request) (string, error) {
				f.fetches++
				dest := filepath.Join(req.Dir, req.FileName)
				require.NoError(t, os.MkdirAll(req.Dir, 0755))
				return dest, os.WriteFile(dest, []byte("tampered"), 0644)
			},
		},
		Env: &precheck.Environment{
			Installed: registry.BuildSnapshot(mem),
			Registry:  mem,
			Runner:    f.runner,
			Exists:    func(p string) bool { return set[p] },
		},
		Runner:  f.runner,
		LogsDir: filepath.Join(f.root, "logs"),
		Silent:  true,
	}
	return f
}

func (f *fixture) installer(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(f.root, "installers", rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func sum(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}

func tool(name string) manifest.Software {
	return manifest.Software{
		Name:          name,
		TargetVersion: "2.0.0",
		Installation: manifest.Installation{
			InstallerPath:     name,
			InstallerExe:      name + "-setup.exe",
			QuietInstallFlags: []string{"/S"},
			InstallFlags:      []string{"/interactive"},
		},
		Logs: manifest.Logs{FileName: name + ".log", Option: "/LOG="},
		Prechecks: manifest.Prechecks{
			Directory: &manifest.DirectoryCheck{FilePaths: []string{`C:\Tools\` + name + `.exe`}},
		},
	}
}

func TestInstallSkipsWhenDesiredVersionPresent(t *testing.T) {
	f := newFixture(t, nil, `C:\Tools\tool.exe`)
	sw := tool("tool")
	sw.Prechecks.Directory = &manifest.DirectoryCheck{FilePaths: []string{`C:\Tools\tool.exe`}}

	code, results := f.batch.Installs(context.Background(), []manifest.Software{sw})
	assert.Equal(t, 0, code)
	require.Len(t, results, 1)
	assert.Equal(t, logging.StatusSkipped, results[0].Status)
	assert.Zero(t, f.runner.Count(), "no process may be spawned")
	assert.Zero(t, f.fetches)
}

func TestInstallSkipsOnRegistryEvidence(t *testing.T) {
	mem := registry.NewMemory()
	mem.AddProgram(registry.LocalMachine, registry.View64, "tool", map[string]string{"DisplayName": "Tool", "DisplayVersion": "2.1.0"})
	f := newFixture(t, mem)
	sw := tool("tool")
	sw.Prechecks = manifest.Prechecks{
		Registry: &manifest.RegistryCheck{CheckName: "Tool", RegistryValue: "DisplayVersion"},
	}

	changed, err := f.batch.NewSoftwareInstall(sw).Install(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Zero(t, f.runner.Count())
}

func TestInstallWithoutPrechecksNeedsForce(t *testing.T) {
	f := newFixture(t, nil)
	f.installer(t, filepath.Join("tool", "tool-setup.exe"), "x")
	sw := tool("tool")
	sw.Prechecks = manifest.Prechecks{}

	changed, err := f.batch.NewSoftwareInstall(sw).Install(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Zero(t, f.runner.Count())

	f.batch.Force = true
	changed, err = f.batch.NewSoftwareInstall(sw).Install(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, f.runner.Count())
}

func TestInstallRunsInstallerAndHooks(t *testing.T) {
	f := newFixture(t, nil)
	exe := f.installer(t, filepath.Join("tool", "x64", "tool-setup.exe"), "payload")
	sw := tool("tool")
	sw.Installation.Checksum = sum("payload")
	sw.PostInstall = []manifest.PostInstall{{Command: []string{"setx", "TOOL_HOME", "x"}}}

	code, results := f.batch.Installs(context.Background(), []manifest.Software{sw})
	assert.Equal(t, 0, code)
	assert.Equal(t, logging.StatusSuccess, results[0].Status)

	require.Equal(t, 2, f.runner.Count())
	install := f.runner.Calls[0]
	assert.Equal(t, []string{exe, "/S", "/LOG=" + filepath.Join(f.root, "logs", "tool.log")}, install.Args)
	assert.Equal(t, filepath.Dir(exe), install.Dir)

	hook := f.runner.Calls[1]
	assert.Equal(t, []string{"setx", "TOOL_HOME", "x"}, hook.Args)
	assert.Equal(t, filepath.Join(f.root, "installers", "tool"), hook.Dir)
}

func TestInstallNeverRunsUnverifiedInstaller(t *testing.T) {
	f := newFixture(t, nil)
	f.installer(t, filepath.Join("tool", "tool-setup.exe"), "tampered")
	sw := tool("tool")
	sw.Installation.Checksum = sum("payload")
	sw.Installation.DownloadURL = "https://example.invalid/tool-setup.exe"

	code, results := f.batch.Installs(context.Background(), []manifest.Software{sw})
	assert.Equal(t, 1, code)
	assert.Equal(t, 1, f.fetches, "exactly one re-download")
	assert.Zero(t, f.runner.Count())
	assert.Contains(t, results[0].Error, perrors.ErrChecksumMismatch.Error())
}

func TestInstallBatchContinuesPastFailures(t *testing.T) {
	f := newFixture(t, nil)
	f.installer(t, filepath.Join("second", "second-setup.exe"), "x")

	code, results := f.batch.Installs(context.Background(), []manifest.Software{tool("first"), tool("second")})
	assert.Equal(t, 1, code)
	require.Len(t, results, 2)
	assert.Equal(t, logging.StatusFailed, results[0].Status)
	assert.Contains(t, results[0].Error, "not found")
	assert.Equal(t, logging.StatusSuccess, results[1].Status)
}

func TestInstallReportsInstallerExitCode(t *testing.T) {
	f := newFixture(t, nil)
	f.installer(t, filepath.Join("tool", "tool-setup.exe"), "x")
	f.runner.Handler = func(c runner.Command) (runner.Result, error) {
		return runner.Result{ExitCode: 1603}, &perrors.ExitError{Args: c.Args, Code: 1603}
	}
	sw := tool("tool")
	sw.PostInstall = []manifest.PostInstall{{Command: []string{"never"}}}

	_, err := f.batch.NewSoftwareInstall(sw).Install(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, perrors.ErrProcessFailed)
	assert.Equal(t, 1, f.runner.Count(), "hooks do not run after a failed install")
}

func TestForcedInstallIgnoresPrechecks(t *testing.T) {
	f := newFixture(t, nil, `C:\Tools\tool.exe`)
	f.installer(t, filepath.Join("tool", "tool-setup.exe"), "x")
	f.batch.Force = true
	f.batch.Silent = false
	sw := tool("tool")
	sw.Prechecks.Directory = &manifest.DirectoryCheck{FilePaths: []string{`C:\Tools\tool.exe`}}

	changed, err := f.batch.NewSoftwareInstall(sw).Install(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	require.Equal(t, 1, f.runner.Count())
	assert.Equal(t, "/interactive", f.runner.Calls[0].Args[1])
}

func TestInstallBlockedByRunningApplication(t *testing.T) {
	f := newFixture(t, nil)
	f.installer(t, filepath.Join("tool", "tool-setup.exe"), "x")
	f.batch.Blocking = &blocking.Checker{List: func() ([]blocking.Proc, error) {
		return []blocking.Proc{{Name: "Tool.exe"}}, nil
	}}
	sw := tool("tool")
	sw.BlockingApplications = []string{"tool"}

	_, err := f.batch.NewSoftwareInstall(sw).Install(context.Background())
	assert.ErrorIs(t, err, perrors.ErrBlocked)
	assert.Zero(t, f.runner.Count())
}

func fooRegistry() *registry.Memory {
	mem := registry.NewMemory()
	for i, v := range []string{"1.0.0", "2.0.0", "3.0.0"} {
		mem.AddProgram(registry.LocalMachine, registry.View64, "Foo_"+v, map[string]string{
			"DisplayName":     "Foo SDK",
			"DisplayVersion":  v,
			"UninstallString": `"C:\Foo\` + string(rune('a'+i)) + `\uninst.exe"`,
		})
	}
	return mem
}

func fooSoftware(allVersions bool) manifest.Software {
	return manifest.Software{
		Name:          "Foo",
		TargetVersion: "3.0.0",
		Installation:  manifest.Installation{InstallerExe: "foo.exe"},
		Prechecks: manifest.Prechecks{Registry: &manifest.RegistryCheck{
			CheckName: "Foo SDK", RegistryValue: "DisplayVersion",
		}},
		Uninstallation: &manifest.Uninstallation{
			AllVersions: allVersions,
			Registry: &manifest.UninstallRegistry{
				CheckNames:          []manifest.InstalledName{{Name: "Foo SDK"}},
				QuietUninstallFlags: []string{"/S"},
			},
		},
	}
}

func TestUninstallAllVersionsAttemptsEveryCommand(t *testing.T) {
	f := newFixture(t, fooRegistry())
	f.runner.Handler = func(c runner.Command) (runner.Result, error) {
		if strings.Contains(c.Args[0], `\b\`) {
			return runner.Result{ExitCode: 2}, &perrors.ExitError{Args: c.Args, Code: 2}
		}
		return runner.Result{}, nil
	}

	junk := filepath.Join(f.root, "install", "venv")
	require.NoError(t, os.MkdirAll(junk, 0755))

	code, results := f.batch.Uninstalls(context.Background(), []manifest.Software{fooSoftware(true)},
		filepath.Join(f.root, "install"), []string{"venv"})
	assert.Equal(t, 1, code)
	assert.Equal(t, 3, f.runner.Count(), "a failing command does not stop the others")
	require.Len(t, results, 2)
	assert.Equal(t, logging.StatusFailed, results[0].Status)
	assert.Equal(t, logging.StatusSuccess, results[1].Status)
	assert.NoDirExists(t, junk)
}

func TestUninstallTargetVersionOnly(t *testing.T) {
	f := newFixture(t, fooRegistry())
	changed, err := f.batch.NewSoftwareUninstall(fooSoftware(false)).Uninstall(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	require.Equal(t, 1, f.runner.Count())
	assert.Equal(t, []string{`C:\Foo\c\uninst.exe`, "/S"}, f.runner.Calls[0].Args)
}

func TestUninstallSkipsWhenNotInstalled(t *testing.T) {
	f := newFixture(t, nil)
	changed, err := f.batch.NewSoftwareUninstall(fooSoftware(true)).Uninstall(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Zero(t, f.runner.Count())

	sw := fooSoftware(false)
	sw.Uninstallation = nil
	changed, err = f.batch.NewSoftwareUninstall(sw).Uninstall(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestPostInstallsOnly(t *testing.T) {
	f := newFixture(t, nil)
	a := tool("a")
	a.PostInstall = []manifest.PostInstall{{Command: []string{"hook-a"}}}
	b := tool("b")

	code, results := f.batch.PostInstalls(context.Background(), []manifest.Software{a, b})
	assert.Equal(t, 0, code)
	assert.Equal(t, logging.StatusSuccess, results[0].Status)
	assert.Equal(t, logging.StatusSkipped, results[1].Status)
	require.Equal(t, 1, f.runner.Count())
	assert.Equal(t, []string{"hook-a"}, f.runner.Calls[0].Args)
}

func TestArchivesFlatten(t *testing.T) {
	f := newFixture(t, nil)
	zipPath := filepath.Join(f.root, "installers", "archives", "tool.zip")
	require.NoError(t, os.MkdirAll(filepath.Dir(zipPath), 0755))
	out, err := os.Create(zipPath)
	require.NoError(t, err)
	w := zip.NewWriter(out)
	for _, name := range []string{"pkgroot/", "pkgroot/bin/", "pkgroot/bin/tool.exe"} {
		fw, err := w.Create(name)
		require.NoError(t, err)
		if !strings.HasSuffix(name, "/") {
			_, err = fw.Write([]byte("exe"))
			require.NoError(t, err)
		}
	}
	require.NoError(t, w.Close())
	require.NoError(t, out.Close())

	installDir := filepath.Join(f.root, "install")
	archives := []manifest.Archive{
		{Name: "Tool", Installation: manifest.ArchiveInstallation{
			SourcePath: "archives", SourceFile: "tool.zip", DestinationDir: "tool", SkipTopDir: true,
		}},
		{Name: "Missing", Installation: manifest.ArchiveInstallation{SourceFile: "missing.zip"}},
	}
	code, results := f.batch.Archives(context.Background(), archives, installDir)
	assert.Equal(t, 1, code)
	assert.FileExists(t, filepath.Join(installDir, "tool", "bin", "tool.exe"))
	assert.NoDirExists(t, filepath.Join(installDir, "tool", "pkgroot"))
	assert.Equal(t, logging.StatusSuccess, results[0].Status)
	assert.Equal(t, logging.StatusFailed, results[1].Status)
}

func TestArchivesPreserveModePassesMembers(t *testing.T) {
	f := newFixture(t, nil)
	f.installer(t, "samples.zip", "zip")
	var gotMembers []string
	var gotForce bool
	orig := extractPreserve
	extractPreserve = func(src, dest string, members []string, force bool) error {
		gotMembers, gotForce = members, force
		return nil
	}
	defer func() { extractPreserve = orig }()

	f.batch.Force = true
	code, _ := f.batch.Archives(context.Background(), []manifest.Archive{{Name: "Samples", Installation: manifest.ArchiveInstallation{
		SourceFile: "samples.zip",
		Members:    []manifest.ArchiveMember{{Path: "notebooks/"}, {Path: "README.md"}},
	}}}, f.root)
	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"notebooks/", "README.md"}, gotMembers)
	assert.True(t, gotForce)
}

func TestInstallsStopOnCancellation(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	code, results := f.batch.Installs(ctx, []manifest.Software{tool("a"), tool("b")})
	assert.Equal(t, 1, code)
	require.Len(t, results, 2)
	assert.Equal(t, logging.StatusFailed, results[1].Status)
	assert.Zero(t, f.runner.Count())
}
