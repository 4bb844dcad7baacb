package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/otley-syrup/syrup/internal/checkpoint"
	"github.com/otley-syrup/syrup/internal/config"
	"github.com/otley-syrup/syrup/internal/gdbgw"
	"github.com/otley-syrup/syrup/internal/record"
	"github.com/otley-syrup/syrup/internal/scripting"
	"github.com/otley-syrup/syrup/internal/session"
)

func newRecordCmd(configPath *string, verbose *bool) *cobra.Command {
	var outPath string
	var predicatePath string

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a target's thread interleaving to a checkpoint log",
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

			sess := session.New()
			log := logger.With(zap.String("session", sess.String()), zap.String("mode", "record"))

			sharedVariables := cfg.SharedVariables
			if predicatePath == "" {
				predicatePath = cfg.PredicateScript
			}
			if predicatePath != "" {
				pred, err := scripting.Load(predicatePath)
				if err != nil {
					return err
				}
				defer pred.Close()
				sharedVariables, err = scripting.Filter(pred, cfg.SharedVariables)
				if err != nil {
					return err
				}
				log.Info("predicate script narrowed shared variables",
					zap.Int("declared", len(cfg.SharedVariables)), zap.Int("selected", len(sharedVariables)))
			}

			gw, err := gdbgw.New(gdbgw.Config{
				GDBPath:    cfg.GDBPath,
				TargetPath: cfg.TargetPath,
				Args:       cfg.TargetArgs,
			}, log)
			if err != nil {
				return fmt.Errorf("syrup record: %w", err)
			}
			defer gw.Close()

			rec := record.New(gw, record.Config{
				SharedVariables:     sharedVariables,
				ThreadStartRoutines: cfg.ThreadStartRoutines,
				CloneSyscallName:    cfg.CloneSyscallName,
			}, log)

			result, err := rec.Run()
			if err != nil {
				return fmt.Errorf("syrup record: %w", err)
			}
			result.SessionID = sess.String()

			if err := checkpoint.SaveFile(outPath, result); err != nil {
				return fmt.Errorf("syrup record: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", renderStatus("record", sess, "done", len(result.Records)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "checkpoint.json", "path to write the checkpoint log")
	cmd.Flags().StringVar(&predicatePath, "predicate", "", "path to a .syruprc predicate script, overrides syrup.yaml's predicate_script")
	return cmd
}
