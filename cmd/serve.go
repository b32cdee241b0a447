package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gurnoornatt/supergoodleadgen/internal/metrics"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve checkpoint status and metrics over HTTP",
	Long:  "Serves /healthz, /status and /metrics for the configured checkpoint store. /status reports the latest recorded run.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, lock, err := openStore(ctx, false)
		if err != nil {
			return err
		}
		defer closeStore(st, lock)

		m := metrics.New()
		if latest, err := st.LatestRun(ctx); err != nil {
			zap.L().Warn("load latest run", zap.Error(err))
		} else if latest != nil {
			m.SetSummary(latest)
		}

		addr := cfg.Metrics.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		return metrics.Serve(ctx, addr, metrics.Router(m, st.Counts))
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides metrics.addr)")
	rootCmd.AddCommand(serveCmd)
}
