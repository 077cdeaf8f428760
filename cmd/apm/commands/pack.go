package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func (c *CLI) newPackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pack [package-dir]",
		Short: "Build a distributable archive from a package directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pkgDir := "."
			if len(args) == 1 {
				pkgDir = args[0]
			}
			destDir, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			if destDir == "" {
				if destDir, err = os.Getwd(); err != nil {
					return err
				}
			}

			c.logger.Debug("packing", "pkg_dir", pkgDir, "dest_dir", destDir)
			result, err := c.app.Pack(cmd.Context(), pkgDir, destDir)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", result.Path)
			fmt.Fprintf(cmd.OutOrStdout(), "checksum: %s\n", result.Checksum)
			fmt.Fprintf(cmd.OutOrStdout(), "%d file(s) packaged\n", len(result.FileChecksums.Files))
			return nil
		},
	}

	cmd.Flags().StringP("out", "o", "", "Directory to write the archive into (defaults to the working directory)")
	return cmd
}
