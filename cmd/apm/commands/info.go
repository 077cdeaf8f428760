package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func (c *CLI) newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <package>",
		Short: "Show registry metadata and installed state for a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := c.app.Info(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			meta := result.Metadata
			fmt.Fprintf(out, "name:        %s\n", meta.Name)
			if meta.Description != "" {
				fmt.Fprintf(out, "description: %s\n", meta.Description)
			}
			if meta.Author != "" {
				fmt.Fprintf(out, "author:      %s\n", meta.Author)
			}
			if meta.License != "" {
				fmt.Fprintf(out, "license:     %s\n", meta.License)
			}
			if len(meta.Keywords) > 0 {
				fmt.Fprintf(out, "keywords:    %s\n", strings.Join(meta.Keywords, ", "))
			}
			fmt.Fprintf(out, "registry:    %s\n", result.Registry)

			for tag, version := range meta.DistTags {
				fmt.Fprintf(out, "tag %s: %s\n", tag, version)
			}

			versions := make([]string, 0, len(meta.Versions))
			for _, v := range meta.Versions {
				versions = append(versions, v.Version)
			}
			fmt.Fprintf(out, "versions:    %s\n", strings.Join(versions, ", "))

			if result.Locked != nil {
				fmt.Fprintf(out, "installed:   %s (from %s)\n", result.Locked.Version, result.Locked.Source)
			} else {
				fmt.Fprintln(out, "installed:   no")
			}
			return nil
		},
	}
}
