package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *CLI) newPublishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish <archive>",
		Short: "Publish a package archive to a registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registryName, err := cmd.Flags().GetString("registry")
			if err != nil {
				return err
			}

			c.logger.Debug("publishing", "archive", args[0], "registry", registryName)
			if err := c.app.Publish(cmd.Context(), args[0], registryName); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "published %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringP("registry", "r", "", "Registry to publish to (defaults to the first configured registry)")
	return cmd
}
