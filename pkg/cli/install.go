// pkg/cli/install.go - the install command.

package cli

import (
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/windowsadmins/provision/pkg/filter"
	"github.com/windowsadmins/provision/pkg/logging"
	"github.com/windowsadmins/provision/pkg/preflight"
	"github.com/windowsadmins/provision/pkg/utils"
)

func newInstallCmd(root *rootFlags, exit *exitCode) *cobra.Command {
	opts := &runOptions{software: filter.New()}

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install every manifest entry that is missing or outdated",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstallCmd(cmd, root, opts, exit)
		},
	}

	cmd.Flags().StringVarP(&opts.workspace, "workspace", "w", "", "Workspace root, overrides Workspace")
	cmd.Flags().StringVar(&opts.installationDir, "installation-dir", "", "Target for copied files and archives")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "Reinstall even when the desired version is present")
	cmd.Flags().BoolVarP(&opts.silent, "silent", "s", false, "Use the quiet installer flags")
	cmd.Flags().BoolVar(&opts.online, "online", false, "Download missing or mismatching installers")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Never download; every installer must be present")
	cmd.Flags().BoolVar(&opts.postInstallOnly, "post-install-only", false, "Only run the post-install hooks")
	cmd.MarkFlagsMutuallyExclusive("online", "offline")
	opts.software.RegisterFlags(cmd.Flags())
	return cmd
}

func runInstallCmd(cmd *cobra.Command, root *rootFlags, opts *runOptions, exit *exitCode) error {
	ctx, stop := withSignals(cmd.Context())
	defer stop()

	s, err := openSession(cmd, root, runInstall, opts)
	if err != nil {
		return err
	}
	paths := s.manifest.DefaultPaths
	if !s.cfg.Online {
		if err := preflight.ValidateInputs(s.workspace, paths); err != nil {
			return err
		}
	}
	var copied []logging.EntryResult
	if len(paths.CopyFiles) > 0 && s.installationDir != s.workspace {
		copied = append(copied, s.copyFiles())
	}

	if opts.postInstallOnly {
		code, results := s.batch.PostInstalls(ctx, s.software)
		results = append(copied, results...)
		s.finish(exit, max(code, failed(copied)), results)
		return nil
	}

	code, results := s.batch.Installs(ctx, s.software)
	results = append(copied, results...)
	code = max(code, failed(copied))
	if opts.software.HasFilter() {
		logging.Info("Software filter active, skipping archives and samples")
		s.finish(exit, code, results)
		return nil
	}

	archiveCode, archiveResults := s.batch.Archives(ctx, s.manifest.Archives, s.installationDir)
	results = append(results, archiveResults...)
	code = max(code, archiveCode)

	if paths.SamplesDir != "" && ctx.Err() == nil {
		r := s.copySamples()
		if r.Status == logging.StatusFailed {
			code = 1
		}
		results = append(results, r)
	}
	s.finish(exit, code, results)
	return nil
}

// failed returns 1 if any of results failed.
func failed(results []logging.EntryResult) int {
	for _, r := range results {
		if r.Status == logging.StatusFailed {
			return 1
		}
	}
	return 0
}

// copyResult runs one copy step. A failure is recorded and the run goes on.
func copyResult(name string, fn func() error) logging.EntryResult {
	start := time.Now()
	r := logging.EntryResult{Name: name, Action: "copy", Status: logging.StatusSuccess}
	if err := fn(); err != nil {
		logging.Error("Copy failed", "step", name, "error", err)
		r.Status = logging.StatusFailed
		r.Error = err.Error()
	}
	r.Duration = time.Since(start).Round(time.Millisecond)
	return r
}

// copyFiles copies default_paths.copy_files from the workspace into the
// installation directory.
func (s *session) copyFiles() logging.EntryResult {
	files := s.manifest.DefaultPaths.CopyFiles
	logging.Info("Copying files", "from", s.workspace, "to", s.installationDir, "files", files)
	return copyResult("copy_files", func() error {
		return utils.CopyFiles(s.workspace, s.installationDir, files)
	})
}

// copySamples copies the contents of the samples directory into the
// installation directory.
func (s *session) copySamples() logging.EntryResult {
	src := utils.AbsolutePath(s.workspace, utils.ExpandEnv(s.manifest.DefaultPaths.SamplesDir))
	if filepath.Clean(src) == filepath.Clean(s.installationDir) {
		return logging.EntryResult{Name: "samples", Action: "copy", Status: logging.StatusSkipped}
	}
	logging.Info("Copying samples", "from", src, "to", s.installationDir)
	return copyResult("samples", func() error {
		return utils.CopyFiles(src, s.installationDir, nil)
	})
}
