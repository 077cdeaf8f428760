package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.trai.ch/zerr"

	"github.com/agentpkg/apm/internal/core/domain"
)

func (c *CLI) newUninstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uninstall <package>",
		Short: "Remove an installed package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}

			err = c.app.Uninstall(cmd.Context(), args[0], force)
			if errors.Is(err, domain.ErrHasDependents) {
				var zerrErr *zerr.Error
				if errors.As(err, &zerrErr) {
					if deps, ok := zerrErr.Metadata()["dependents"]; ok {
						fmt.Fprintf(cmd.ErrOrStderr(), "required by: %v\n", deps)
					}
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "pass --force to remove anyway")
				return err
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolP("force", "f", false, "Remove even if other packages depend on it")
	return cmd
}
