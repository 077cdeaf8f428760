package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/zerr"

	"github.com/agentpkg/apm/internal/core/domain"
)

func (c *CLI) newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [package]",
		Short: "Verify installed files against their recorded checksums",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				report, err := c.app.Verify(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printReport(cmd.OutOrStdout(), report)
				if report.HasChecksums && !report.IsClean() {
					return zerr.With(zerr.New("package verification failed"), "package", args[0])
				}
				return nil
			}

			agg, err := c.app.VerifyAll(cmd.Context())
			if err != nil {
				return err
			}
			for _, report := range agg.Reports {
				printReport(cmd.OutOrStdout(), report)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d clean, %d dirty, %d skipped\n", agg.Clean, agg.Dirty, agg.Skipped)
			if agg.Dirty > 0 {
				return zerr.With(zerr.New("verification found modified packages"), "dirty", agg.Dirty)
			}
			return nil
		},
	}
}

func printReport(w io.Writer, report domain.VerificationReport) {
	if !report.HasChecksums {
		fmt.Fprintf(w, "%s: no recorded checksums, skipped\n", report.Package)
		return
	}
	if report.IsClean() {
		fmt.Fprintf(w, "%s: ok (%d files)\n", report.Package, len(report.Intact))
		return
	}
	fmt.Fprintf(w, "%s: DIRTY\n", report.Package)
	for _, rel := range report.Modified {
		fmt.Fprintf(w, "  modified:  %s\n", rel)
	}
	for _, rel := range report.Missing {
		fmt.Fprintf(w, "  missing:   %s\n", rel)
	}
	for _, rel := range report.Untracked {
		fmt.Fprintf(w, "  untracked: %s\n", rel)
	}
}
