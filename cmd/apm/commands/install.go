package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func (c *CLI) newInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install [package@constraint...]",
		Short: "Resolve and install the project's dependencies",
		Long: "Resolves the dependencies declared in the project manifest, plus any " +
			"extra package specs given on the command line, downloads the matching " +
			"archives, and installs them into the package directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cmd.Flags().GetString("dir")
			if err != nil {
				return err
			}
			if dir == "" {
				if dir, err = os.Getwd(); err != nil {
					return err
				}
			}

			c.logger.Debug("installing", "dir", dir, "extras", args)
			result, err := c.app.Install(cmd.Context(), dir, args)
			if err != nil {
				return err
			}

			for _, pkg := range result.Installed {
				fmt.Fprintf(cmd.OutOrStdout(), "installed %s@%s (%s)\n", pkg.Name, pkg.Version, pkg.Registry)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d package(s) installed\n", len(result.Installed))
			return nil
		},
	}

	cmd.Flags().StringP("dir", "d", "", "Project directory (defaults to the working directory)")
	return cmd
}
