package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show checkpoint counts and the latest run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, lock, err := openStore(ctx, false)
		if err != nil {
			return err
		}
		defer closeStore(st, lock)

		counts, err := st.Counts(ctx)
		if err != nil {
			return eris.Wrap(err, "status")
		}
		latest, err := st.LatestRun(ctx)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		printCheckpointStatus(os.Stdout, counts, latest)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
