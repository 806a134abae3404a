package cli

import (
	"github.com/spf13/cobra"

	"github.com/windowsadmins/provision/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version and exit",
		Run: func(cmd *cobra.Command, args []string) {
			if full {
				version.PrintFull()
				return
			}
			version.Print()
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "Print detailed build information")
	return cmd
}
