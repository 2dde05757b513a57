package commands

import (
	"github.com/spf13/cobra"

	"github.com/ambiyansyah-risyal/apicall"
	"github.com/ambiyansyah-risyal/apicall/internal/printer"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print CLI and library versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			printer.Info(out, "apicall CLI %s (commit: %s, built: %s)\n", version, commit, date)
			printer.Info(out, "%s\n", apicall.GetVersion())
			return nil
		},
	}
}
