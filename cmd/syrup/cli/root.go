// Package cli is the thin cobra/pflag outer wrapper around the record,
// replay, and verify operations: `syrup record`, `syrup replay`, and
// `syrup verify` as subcommands. record and replay load syrup.yaml via
// internal/config and log through zap; verify only reads the two checkpoint
// logs it is given.
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRootCmd builds the syrup root command with its three subcommands.
func NewRootCmd() *cobra.Command {
	var configPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:           "syrup",
		Short:         "Deterministic replay of multithreaded programs via gdb",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "syrup.yaml", "path to syrup.yaml")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newRecordCmd(&configPath, &verbose))
	cmd.AddCommand(newReplayCmd(&configPath, &verbose))
	cmd.AddCommand(newVerifyCmd(&configPath, &verbose))

	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}
