package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentpkg/apm/internal/build"
)

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the application version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "apm version %s (commit: %s, date: %s)\n",
				build.Version, build.Commit, build.Date)
			return nil
		},
	}
}
