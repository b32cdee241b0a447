package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gurnoornatt/supergoodleadgen/internal/classify"
	"github.com/gurnoornatt/supergoodleadgen/internal/estimate"
	"github.com/gurnoornatt/supergoodleadgen/internal/ingest"
	"github.com/gurnoornatt/supergoodleadgen/internal/metrics"
	"github.com/gurnoornatt/supergoodleadgen/internal/model"
	"github.com/gurnoornatt/supergoodleadgen/internal/monitoring"
	"github.com/gurnoornatt/supergoodleadgen/internal/pipeline"
	"github.com/gurnoornatt/supergoodleadgen/internal/pool"
	"github.com/gurnoornatt/supergoodleadgen/internal/render"
	"github.com/gurnoornatt/supergoodleadgen/internal/scorer"
	"github.com/gurnoornatt/supergoodleadgen/internal/signals"
	"github.com/gurnoornatt/supergoodleadgen/internal/sink"
)

var (
	runInput        string
	runOutput       string
	runFormat       string
	runWorkers      int
	runChunkSize    int
	runRenderer     string
	runRetryFailed  bool
	runServeMetrics bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Qualify and enrich a lead list",
	Long: "Renders each lead's website, extracts signals, scores pain and budget, and writes " +
		"the enriched rows in input order. Completed rows are checkpointed; re-running the " +
		"same input skips them.",
	Example: "  leadgen run --input leads.csv --output leads_scored.csv",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyRunFlags(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}

		summary, err := runLeads(ctx, runInput, outputPath(runInput, cfg.Output.Path), runServeMetrics)
		if summary != nil {
			printSummary(os.Stdout, summary)
		}
		var verr *ingest.ValidationError
		if errors.As(err, &verr) {
			color.New(color.FgRed).Fprintf(os.Stderr, "input rejected: %s\n", verr.Error())
		}
		return err
	},
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "", "lead list (.csv, .tsv or .xlsx)")
	runCmd.Flags().StringVar(&runOutput, "output", "", "output file (default: <input>_scored.csv)")
	runCmd.Flags().StringVar(&runFormat, "format", "", "output format: csv or jsonl (default: from extension)")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "concurrent renders (overrides batch.workers)")
	runCmd.Flags().IntVar(&runChunkSize, "chunk-size", 0, "rows per chunk (overrides batch.chunk_size)")
	runCmd.Flags().StringVar(&runRenderer, "renderer", "", "renderer: http or chrome (overrides render.driver)")
	runCmd.Flags().BoolVar(&runRetryFailed, "retry-failed", false, "re-render rows whose last render failed")
	runCmd.Flags().BoolVar(&runServeMetrics, "serve-metrics", false, "serve /metrics and /status while running")
	_ = runCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(runCmd)
}

// applyRunFlags copies explicitly set flags over the loaded config.
func applyRunFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Output.Path = runOutput
	}
	if flags.Changed("format") {
		cfg.Output.Format = runFormat
	}
	if flags.Changed("workers") {
		cfg.Batch.Workers = runWorkers
	}
	if flags.Changed("chunk-size") {
		cfg.Batch.ChunkSize = runChunkSize
	}
	if flags.Changed("renderer") {
		cfg.Render.Driver = runRenderer
	}
	if flags.Changed("retry-failed") {
		cfg.Batch.RetryFailed = runRetryFailed
	}
}

// outputPath returns configured when set, otherwise <input>_scored with the
// input's extension. Spreadsheet inputs are written as CSV.
func outputPath(input, configured string) string {
	if configured != "" {
		return configured
	}
	ext := filepath.Ext(input)
	base := strings.TrimSuffix(input, ext)
	switch strings.ToLower(ext) {
	case ".csv", ".tsv":
	default:
		ext = ".csv"
	}
	return base + "_scored" + ext
}

// runLeads executes one batch run with the global config.
func runLeads(ctx context.Context, input, output string, serveMetrics bool) (*model.RunSummary, error) {
	log := zap.L()

	st, lock, err := openStore(ctx, true)
	if err != nil {
		return nil, err
	}
	defer closeStore(st, lock)

	src, err := ingest.Open(ctx, input)
	if err != nil {
		return nil, err
	}
	reader, err := ingest.NewReader(filepath.Base(input), src, cfg.Columns)
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	defer reader.Close() //nolint:errcheck

	out, err := sink.Open(output, cfg.Output.Format, reader.Header())
	if err != nil {
		return nil, err
	}

	renderer, err := render.New(ctx, cfg.Render)
	if err != nil {
		_ = out.Close()
		return nil, err
	}
	defer renderer.Close() //nolint:errcheck

	deps, err := buildDeps(renderer)
	if err != nil {
		_ = out.Close()
		return nil, err
	}
	deps.Store = st

	m := metrics.New()
	deps.Observer = m
	if serveMetrics {
		serveCtx, cancelServe := context.WithCancel(ctx)
		defer cancelServe()
		go func() {
			if err := metrics.Serve(serveCtx, cfg.Metrics.Addr, metrics.Router(m, st.Counts)); err != nil {
				log.Warn("status server stopped", zap.Error(err))
			}
		}()
	}

	checker := monitoring.NewChecker(m.Summary, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
	checkCtx, stopChecks := context.WithCancel(ctx)
	defer stopChecks()
	go checker.Run(checkCtx)

	orch, err := pipeline.New(deps, pipeline.Options{
		ChunkSize:   cfg.Batch.ChunkSize,
		RetryFailed: cfg.Batch.RetryFailed,
		Pool:        pool.OptionsFrom(cfg),
	})
	if err != nil {
		_ = out.Close()
		return nil, err
	}

	rc := model.NewRunContext(log)
	rc.Logger().Info("run starting",
		zap.String("input", input),
		zap.String("output", output),
		zap.String("store", cfg.Store.Driver),
	)

	summary, runErr := orch.Run(ctx, rc, reader, out)
	stopChecks()
	checker.Check(context.WithoutCancel(ctx), summary)
	if err := out.Close(); err != nil && runErr == nil {
		runErr = eris.Wrap(err, "close output")
	}
	if summary != nil && summary.Cancelled {
		fmt.Fprintln(os.Stderr, color.YellowString("run interrupted; re-run the same command to resume"))
	}
	return summary, runErr
}

// buildDeps constructs the scoring components from config.
func buildDeps(renderer render.Renderer) (pipeline.Deps, error) {
	cls, err := classify.New(cfg.Classifier)
	if err != nil {
		return pipeline.Deps{}, err
	}
	eng, err := scorer.New(cfg.Scoring)
	if err != nil {
		return pipeline.Deps{}, err
	}
	ext, err := signals.New(cfg.Signals)
	if err != nil {
		return pipeline.Deps{}, err
	}
	return pipeline.Deps{
		Renderer:   renderer,
		Classifier: cls,
		Scorer:     eng,
		Estimator:  estimate.New(cfg.Budget),
		Extractor:  ext,
	}, nil
}
