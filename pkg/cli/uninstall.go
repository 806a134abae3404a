// pkg/cli/uninstall.go - the uninstall command.

package cli

import (
	"github.com/spf13/cobra"

	"github.com/windowsadmins/provision/pkg/filter"
	"github.com/windowsadmins/provision/pkg/logging"
)

func newUninstallCmd(root *rootFlags, exit *exitCode) *cobra.Command {
	opts := &runOptions{software: filter.New()}

	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove every manifest entry that defines an uninstallation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUninstallCmd(cmd, root, opts, exit)
		},
	}

	cmd.Flags().StringVarP(&opts.workspace, "workspace", "w", "", "Workspace root, overrides Workspace")
	cmd.Flags().StringVar(&opts.installationDir, "installation-dir", "", "Directory delete_files are relative to")
	cmd.Flags().BoolVarP(&opts.silent, "silent", "s", false, "Use the quiet uninstall flags")
	opts.software.RegisterFlags(cmd.Flags())
	return cmd
}

func runUninstallCmd(cmd *cobra.Command, root *rootFlags, opts *runOptions, exit *exitCode) error {
	ctx, stop := withSignals(cmd.Context())
	defer stop()

	s, err := openSession(cmd, root, runUninstall, opts)
	if err != nil {
		return err
	}

	var remove []string
	if !opts.software.HasFilter() {
		paths := s.manifest.DefaultPaths
		remove = append(remove, paths.DeleteFiles...)
		if paths.VenvPath != "" {
			remove = append(remove, paths.VenvPath)
		}
	} else {
		logging.Info("Software filter active, keeping delete_files")
	}

	code, results := s.batch.Uninstalls(ctx, s.software, s.installationDir, remove)
	s.finish(exit, code, results)
	return nil
}
