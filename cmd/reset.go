package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gurnoornatt/supergoodleadgen/internal/model"
)

var resetState string

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete checkpoint entries so rows are processed again",
	Example: "  leadgen reset              # forget everything\n" +
		"  leadgen reset --state error",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		state, err := parseState(resetState)
		if err != nil {
			return err
		}

		st, lock, err := openStore(ctx, true)
		if err != nil {
			return err
		}
		defer closeStore(st, lock)

		n, err := st.Delete(ctx, state)
		if err != nil {
			return eris.Wrap(err, "reset")
		}

		zap.L().Info("checkpoint entries deleted", zap.Int("count", n), zap.String("state", string(state)))
		fmt.Fprintf(os.Stdout, "Deleted %d checkpoint entries.\n", n)
		return nil
	},
}

func init() {
	resetCmd.Flags().StringVar(&resetState, "state", "", "only delete entries in this state (done, in_progress, error, not_started)")
	rootCmd.AddCommand(resetCmd)
}

// parseState validates a --state value. Empty means all states.
func parseState(s string) (model.CheckpointState, error) {
	switch st := model.CheckpointState(s); st {
	case "", model.CheckpointDone, model.CheckpointInProgress, model.CheckpointError, model.CheckpointNotStarted:
		return st, nil
	default:
		return "", eris.Errorf("unknown checkpoint state %q", s)
	}
}
