package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gurnoornatt/supergoodleadgen/internal/config"
)

var (
	cfg *config.Config

	storeDriver string
)

var rootCmd = &cobra.Command{
	Use:   "leadgen",
	Short: "Lead qualification and enrichment pipeline",
	Long: "Reads a list of fitness businesses, renders their websites, scores how much " +
		"their web presence hurts them, and writes qualified leads with budget estimates. " +
		"Runs checkpoint every record so an interrupted batch resumes where it stopped.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if storeDriver != "" {
			c.Store.Driver = storeDriver
			if err := c.Validate(); err != nil {
				return err
			}
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storeDriver, "store", "", "checkpoint store driver: sqlite, postgres or memory (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
