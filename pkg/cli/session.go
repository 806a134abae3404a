// pkg/cli/session.go - setup shared by install and uninstall runs.

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/windowsadmins/provision/pkg/blocking"
	"github.com/windowsadmins/provision/pkg/config"
	"github.com/windowsadmins/provision/pkg/facts"
	"github.com/windowsadmins/provision/pkg/filter"
	"github.com/windowsadmins/provision/pkg/installer"
	"github.com/windowsadmins/provision/pkg/logging"
	"github.com/windowsadmins/provision/pkg/manifest"
	"github.com/windowsadmins/provision/pkg/precheck"
	"github.com/windowsadmins/provision/pkg/preflight"
	"github.com/windowsadmins/provision/pkg/process"
	"github.com/windowsadmins/provision/pkg/registry"
	"github.com/windowsadmins/provision/pkg/runner"
	"github.com/windowsadmins/provision/pkg/utils"
	"github.com/windowsadmins/provision/pkg/version"
)

const (
	runInstall   = "install"
	runUninstall = "uninstall"
)

// runOptions are the per-command flags. Values only override the
// configuration when the flag was given.
type runOptions struct {
	workspace       string
	installationDir string
	silent          bool
	force           bool
	online          bool
	offline         bool
	postInstallOnly bool
	software        *filter.SoftwareFilter
}

// session is everything a batch run needs, built once before the first entry.
type session struct {
	runType         string
	cfg             *config.Configuration
	manifest        *manifest.Manifest
	software        []manifest.Software
	workspace       string
	installersDir   string
	installationDir string
	batch           *process.Batch
}

// This abstraction allows us to override when testing
var (
	newRegistryReader = registry.NewReader
	newRunner         = func() runner.Runner { return runner.New() }
	requireAdmin      = preflight.RequireAdmin
)

func flagChanged(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

// applyOverrides copies explicitly given flags over the configuration.
func applyOverrides(cmd *cobra.Command, cfg *config.Configuration, opts *runOptions) {
	if flagChanged(cmd, "workspace") {
		cfg.Workspace = opts.workspace
	}
	if flagChanged(cmd, "installation-dir") {
		cfg.InstallationDir = opts.installationDir
	}
	if flagChanged(cmd, "silent") {
		cfg.Silent = opts.silent
	}
	if flagChanged(cmd, "online") {
		cfg.Online = opts.online
	}
	if flagChanged(cmd, "offline") {
		cfg.Online = !opts.offline
	}
}

// logLevel raises the configured level: -v shows at least INFO, -vv DEBUG.
func logLevel(cfg *config.Configuration, verbosity int) logging.LogLevel {
	level := logging.ParseLevel(cfg.LogLevel)
	want := logging.LevelInfo
	if verbosity >= 2 {
		want = logging.LevelDebug
	}
	if verbosity > 0 && want > level {
		level = want
	}
	return level
}

// openSession loads configuration and manifest, opens the run log and
// builds the batch. Any failure here aborts the run with exit code 1.
func openSession(cmd *cobra.Command, root *rootFlags, runType string, opts *runOptions) (*session, error) {
	cfg, err := config.LoadConfig(root.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	applyOverrides(cmd, cfg, opts)

	workspace, err := filepath.Abs(utils.ExpandEnv(cfg.Workspace))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace %s: %w", cfg.Workspace, err)
	}
	manifestPath := cfg.ManifestPath
	if root.manifestPath != "" {
		manifestPath = root.manifestPath
	}
	manifestPath = utils.AbsolutePath(workspace, utils.ExpandEnv(manifestPath))

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, err
	}

	logsDir := m.DefaultPaths.LogsDir
	if runType == runUninstall {
		logsDir = m.DefaultPaths.UninstallLogsDir
	}
	logsDir = utils.AbsolutePath(workspace, utils.ExpandEnv(logsDir))
	if err := logging.ReInit(logging.LoggerConfig{
		LogDir:     logsDir,
		FileName:   runType + ".log",
		Level:      logLevel(cfg, root.verbosity),
		Component:  "provision",
		EnableJSON: cfg.EventsJSON,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialise logging in %s: %w", logsDir, err)
	}
	logging.Info("Starting run", "run_type", runType, "version", version.String(),
		"workspace", workspace, "manifest", manifestPath, "config", cfg.Source,
		"online", cfg.Online, "silent", cfg.Silent)

	if !root.noAdminCheck {
		if err := requireAdmin(); err != nil {
			return nil, err
		}
	}
	facts.Gather().Log()

	software, err := opts.software.Apply(m)
	if err != nil {
		return nil, err
	}

	installationDir := cfg.InstallationDir
	if installationDir == "" {
		installationDir = m.DefaultPaths.InstallationDir
	}
	if installationDir == "" {
		installationDir = workspace
	}
	installationDir = utils.AbsolutePath(workspace, utils.ExpandEnv(installationDir))

	reader := newRegistryReader()
	run := newRunner()
	s := &session{
		runType:         runType,
		cfg:             cfg,
		manifest:        m,
		software:        software,
		workspace:       workspace,
		installersDir:   utils.AbsolutePath(workspace, utils.ExpandEnv(m.DefaultPaths.LocalInstallersPath)),
		installationDir: installationDir,
	}
	s.batch = &process.Batch{
		Locator: &installer.Locator{
			InstallersDir:   s.installersDir,
			Online:          cfg.Online,
			DownloadTimeout: cfg.DownloadTimeout(),
			DownloadRetries: cfg.DownloadRetries,
			AllowInsecure:   cfg.AllowInsecureDownloads,
		},
		Env: &precheck.Environment{
			Installed:      registry.BuildSnapshot(reader),
			Registry:       reader,
			Runner:         run,
			VersionTimeout: cfg.VersionTimeout(),
		},
		Runner:           run,
		Blocking:         &blocking.Checker{List: blocking.SystemProcesses},
		LogsDir:          logsDir,
		Silent:           cfg.Silent,
		Force:            opts.force,
		InstallerTimeout: cfg.InstallerTimeout(),
	}
	return s, nil
}

// finish writes the session summary, closes the log and records the exit code.
func (s *session) finish(exit *exitCode, code int, results []logging.EntryResult) {
	summary := &logging.SessionSummary{RunType: s.runType, ExitCode: code}
	summary.Add(results...)
	if err := logging.EndSession(summary); err != nil {
		logging.Warn("Failed to write session summary", "error", err)
	}
	if code != 0 {
		logging.Error("Run finished with failures", "run_type", s.runType, "failures", summary.Failures,
			"log_file", logging.LogFile())
	} else {
		logging.Info("Run finished", "run_type", s.runType)
	}
	logging.CloseLogger()
	exit.code = code
}

// withSignals cancels ctx on SIGINT or SIGTERM, then closes the log and
// exits 1 so a half-finished batch never reports success.
func withSignals(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		select {
		case sig := <-signalChan:
			logging.Warn("Signal received, exiting", "signal", sig.String())
			cancel()
			logging.CloseLogger()
			os.Exit(1)
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(signalChan)
		cancel()
	}
}
