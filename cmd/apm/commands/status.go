package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func (c *CLI) newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show how the manifest and lock document diverge",
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

			drift, err := c.app.Status(dir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if drift.InSync() {
				fmt.Fprintln(out, "lock document is in sync with the manifest")
				return nil
			}
			for _, name := range drift.Added {
				fmt.Fprintf(out, "not locked:          %s\n", name)
			}
			for _, name := range drift.Changed {
				fmt.Fprintf(out, "constraint mismatch: %s\n", name)
			}
			for _, name := range drift.Removed {
				fmt.Fprintf(out, "no longer declared:  %s\n", name)
			}
			fmt.Fprintln(out, "run 'apm install' to reconcile")
			return nil
		},
	}

	cmd.Flags().StringP("dir", "d", "", "Project directory (defaults to the working directory)")
	return cmd
}
