// pkg/cli/root.go - command tree and flags shared by every subcommand.

package cli

import (
	"github.com/spf13/cobra"

	"github.com/windowsadmins/provision/pkg/logging"
)

type rootFlags struct {
	configPath   string
	manifestPath string
	verbosity    int
	noAdminCheck bool
}

// exitCode is set by a subcommand that completed its batch.
type exitCode struct{ code int }

func newRootCmd(exit *exitCode) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "provision",
		Short:         "Install, update and remove the software a workspace manifest describes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to provision.yaml (default: next to the executable)")
	cmd.PersistentFlags().StringVar(&flags.manifestPath, "manifest", "", "Manifest file, overrides ManifestPath")
	cmd.PersistentFlags().CountVarP(&flags.verbosity, "verbose", "v", "Increase verbosity (e.g. -v, -vv)")
	cmd.PersistentFlags().BoolVar(&flags.noAdminCheck, "no-admin-check", false, "Skip the elevation check")

	cmd.AddCommand(newInstallCmd(flags, exit))
	cmd.AddCommand(newUninstallCmd(flags, exit))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the command tree with args and returns the process exit
// code. Setup failures exit 1; otherwise the batch code is returned.
func Execute(args []string) int {
	exit := &exitCode{}
	root := newRootCmd(exit)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		logging.Error("Run aborted", "error", err)
		logging.CloseLogger()
		return 1
	}
	return exit.code
}
