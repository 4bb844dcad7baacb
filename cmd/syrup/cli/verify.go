package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/otley-syrup/syrup/internal/checkpoint"
	"github.com/otley-syrup/syrup/internal/verify"
)

func newVerifyCmd(configPath *string, verbose *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <expected.json> <actual.json>",
		Short: "Check round-trip idempotence between two checkpoint logs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			expected, err := checkpoint.LoadFile(args[0])
			if err != nil {
				return fmt.Errorf("syrup verify: %w", err)
			}
			actual, err := checkpoint.LoadFile(args[1])
			if err != nil {
				return fmt.Errorf("syrup verify: %w", err)
			}

			rep := verify.Compare(expected, actual)
			if rep.Equal {
				fmt.Fprintln(cmd.OutOrStdout(), statusGood.Render("logs match"))
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), statusBad.Render("logs diverge"))
			if rep.FirstMismatch != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "first mismatch: %s\n", rep.FirstMismatch)
			}
			for _, r := range rep.EntryPointViolations {
				fmt.Fprintf(cmd.OutOrStdout(), "entry point violation: %s not in entry_points\n", r)
			}
			if rep.Patch != "" {
				fmt.Fprintln(cmd.OutOrStdout(), rep.Patch)
			}
			return fmt.Errorf("syrup verify: %s", divergenceSummary(rep))
		},
	}
	return cmd
}

func divergenceSummary(rep verify.Report) string {
	if rep.FirstMismatch != nil {
		return fmt.Sprintf("logs diverge at record %d", rep.FirstMismatch.ID)
	}
	return fmt.Sprintf("%d entry point violation(s)", len(rep.EntryPointViolations))
}
