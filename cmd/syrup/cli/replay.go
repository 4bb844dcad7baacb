package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/otley-syrup/syrup/internal/checkpoint"
	"github.com/otley-syrup/syrup/internal/config"
	"github.com/otley-syrup/syrup/internal/gdbgw"
	"github.com/otley-syrup/syrup/internal/replay"
	"github.com/otley-syrup/syrup/internal/session"
)

func newReplayCmd(configPath *string, verbose *bool) *cobra.Command {
	var logPath string

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a recorded checkpoint log, reproducing its thread interleaving",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(*verbose)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			cfg, _, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			clog, err := checkpoint.LoadFile(logPath)
			if err != nil {
				return fmt.Errorf("syrup replay: %w", err)
			}
			if err := clog.Validate(); err != nil {
				return fmt.Errorf("syrup replay: %w", err)
			}

			sess := session.New()
			log := logger.With(zap.String("session", sess.String()), zap.String("mode", "replay"))

			gw, err := gdbgw.New(gdbgw.Config{
				GDBPath:    cfg.GDBPath,
				TargetPath: cfg.TargetPath,
				Args:       cfg.TargetArgs,
			}, log)
			if err != nil {
				return fmt.Errorf("syrup replay: %w", err)
			}
			defer gw.Close()

			orch := replay.New(gw, clog, log)
			if err := orch.Run(); err != nil {
				return fmt.Errorf("syrup replay: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", renderStatus("replay", sess, "done", len(clog.Records)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&logPath, "log", "l", "checkpoint.json", "path to the checkpoint log to replay")
	return cmd
}
