// Package pipeline drives a batch of leads through checkpoint lookup,
// rendering, scoring and ordered output.
package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gurnoornatt/supergoodleadgen/internal/classify"
	"github.com/gurnoornatt/supergoodleadgen/internal/estimate"
	"github.com/gurnoornatt/supergoodleadgen/internal/ingest"
	"github.com/gurnoornatt/supergoodleadgen/internal/model"
	"github.com/gurnoornatt/supergoodleadgen/internal/pool"
	"github.com/gurnoornatt/supergoodleadgen/internal/render"
	"github.com/gurnoornatt/supergoodleadgen/internal/scorer"
	"github.com/gurnoornatt/supergoodleadgen/internal/signals"
	"github.com/gurnoornatt/supergoodleadgen/internal/sink"
	"github.com/gurnoornatt/supergoodleadgen/internal/store"
)

const defaultChunkSize = 200

// Observer receives progress events. metrics.Metrics implements it.
type Observer interface {
	RenderStarted()
	RenderFinished(outcome model.RenderOutcome)
	RecordEmitted(rec *model.LeadRecord)
	CheckpointFailed()
	SetSummary(s *model.RunSummary)
}

type nopObserver struct{}

func (nopObserver) RenderStarted()                     {}
func (nopObserver) RenderFinished(model.RenderOutcome) {}
func (nopObserver) RecordEmitted(*model.LeadRecord)    {}
func (nopObserver) CheckpointFailed()                  {}
func (nopObserver) SetSummary(*model.RunSummary)       {}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Store      store.Store
	Renderer   render.Renderer
	Classifier *classify.Classifier
	Scorer     *scorer.Engine
	Estimator  *estimate.Estimator
	Extractor  *signals.Extractor
	Observer   Observer // optional
}

// Options tunes a run.
type Options struct {
	ChunkSize   int
	RetryFailed bool // re-render rows whose checkpoint recorded a failed render
	Pool        pool.Options
}

// Orchestrator runs batches. It keeps no state between runs; everything
// run-specific travels in the RunContext.
type Orchestrator struct {
	deps Deps
	opts Options
}

// New validates deps and returns an Orchestrator.
func New(deps Deps, opts Options) (*Orchestrator, error) {
	switch {
	case deps.Store == nil:
		return nil, eris.New("pipeline: store is required")
	case deps.Renderer == nil:
		return nil, eris.New("pipeline: renderer is required")
	case deps.Classifier == nil, deps.Scorer == nil, deps.Estimator == nil, deps.Extractor == nil:
		return nil, eris.New("pipeline: classifier, scorer, estimator and extractor are required")
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	return &Orchestrator{deps: deps, opts: opts}, nil
}

// run is the mutable state of one Run call.
type run struct {
	rc       *model.RunContext
	inflight context.Context
	pool     *pool.Pool

	mu      sync.Mutex
	summary *model.RunSummary
}

func (r *run) add(rec *model.LeadRecord) {
	r.mu.Lock()
	r.summary.Add(rec)
	r.mu.Unlock()
}

// Run processes every record from in and writes them to out in input order.
// Cancelling ctx stops dispatching; renders in flight are finished and
// checkpointed, and the partial summary is returned with Cancelled set.
// Errors are returned only for failures that affect the whole run: the
// checkpoint store at startup, reading input, or writing output.
func (o *Orchestrator) Run(ctx context.Context, rc *model.RunContext, in *ingest.Reader, out sink.Writer) (*model.RunSummary, error) {
	log := rc.Logger()
	inflight := context.WithoutCancel(ctx)

	reconciled, err := o.deps.Store.ReconcileInProgress(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: reconcile checkpoints")
	}
	if reconciled > 0 {
		log.Warn("pipeline: reconciled interrupted checkpoints", zap.Int("count", reconciled))
	}

	r := &run{rc: rc, inflight: inflight, summary: model.NewRunSummary(rc)}
	r.summary.Reconciled = reconciled

	popts := o.opts.Pool
	popts.OnState = func(job pool.Job, status model.RenderStatus) {
		if status == model.RenderRendering {
			o.markInProgress(r, job.Record)
			o.deps.Observer.RenderStarted()
		}
	}
	r.pool = pool.New(o.deps.Renderer, popts)

	log.Info("pipeline: starting run",
		zap.Int("chunk_size", o.opts.ChunkSize),
		zap.Int("workers", r.pool.Workers()),
		zap.String("renderer", o.deps.Renderer.Name()),
	)

	var runErr error
	for chunkNo := 0; ; chunkNo++ {
		if ctx.Err() != nil {
			break
		}
		chunk, err := in.Chunk(o.opts.ChunkSize)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			runErr = eris.Wrap(err, "pipeline: read input")
			break
		}

		start := time.Now()
		if err := o.processChunk(ctx, r, chunk, out); err != nil {
			runErr = err
			break
		}
		log.Info("pipeline: chunk complete",
			zap.Int("chunk", chunkNo),
			zap.Int("records", len(chunk)),
			zap.Duration("elapsed", time.Since(start)),
		)
		r.mu.Lock()
		o.deps.Observer.SetSummary(r.summary)
		r.mu.Unlock()
	}

	summary := r.summary
	summary.FinishedAt = rc.Now()
	summary.Cancelled = ctx.Err() != nil
	o.deps.Observer.SetSummary(summary)

	if err := o.deps.Store.SaveRun(inflight, summary); err != nil {
		log.Warn("pipeline: save run summary", zap.Error(err))
	}

	log.Info("pipeline: run finished",
		zap.Int("total", summary.Total),
		zap.Int("resumed", summary.Resumed),
		zap.Int("rendered", summary.Rendered),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped_no_website", summary.SkippedNoWebsite),
		zap.Int("error", summary.Errors),
		zap.Float64("success_rate", summary.SuccessRate()),
		zap.Bool("cancelled", summary.Cancelled),
		zap.Duration("duration", summary.Duration()),
	)
	return summary, runErr
}

// processChunk resolves resumable rows from the checkpoint, renders the rest,
// and emits the chunk in order.
func (o *Orchestrator) processChunk(ctx context.Context, r *run, chunk []*model.LeadRecord, out sink.Writer) error {
	log := r.rc.Logger()

	keys := make([]string, len(chunk))
	for i, rec := range chunk {
		keys[i] = rec.IdentityKey
	}
	entries, err := o.deps.Store.GetMany(ctx, keys)
	if err != nil {
		// Without checkpoint data every row is processed again.
		log.Warn("pipeline: load checkpoints", zap.Error(err))
		entries = nil
	}

	w := newOrderedWriter(out, func(rec *model.LeadRecord) {
		r.add(rec)
		o.deps.Observer.RecordEmitted(rec)
	})
	var jobs []pool.Job
	for i, rec := range chunk {
		entry := entries[rec.IdentityKey]
		if o.resumable(entry, rec) {
			o.resume(r, rec, entry)
			w.complete(i, rec)
			continue
		}
		jobs = append(jobs, pool.Job{Index: i, Record: rec})
	}

	log.Debug("pipeline: chunk partitioned",
		zap.Int("resumed", len(chunk)-len(jobs)),
		zap.Int("to_process", len(jobs)),
	)

	poolErr := r.pool.Run(ctx, jobs, func(ctx context.Context, res pool.Result) {
		rec := chunk[res.Job.Index]
		if _, skipped := res.Outcome.(model.Skipped); !skipped {
			o.deps.Observer.RenderFinished(res.Outcome)
		}
		o.complete(ctx, r, rec, res.Outcome)
		w.complete(res.Job.Index, rec)
	})

	if err := w.Err(); err != nil {
		return eris.Wrap(err, "pipeline: write output")
	}
	if poolErr != nil {
		if held := w.held(); held > 0 {
			log.Warn("pipeline: completed records held back from output after cancellation",
				zap.Int("count", held),
			)
		}
	}
	return nil
}

// resumable reports whether rec can reuse its checkpoint instead of rendering.
func (o *Orchestrator) resumable(entry *model.CheckpointEntry, rec *model.LeadRecord) bool {
	if !entry.Resumable(rec.RowHash) {
		return false
	}
	return !(o.opts.RetryFailed && entry.RenderStatus == model.RenderFailed)
}

func (o *Orchestrator) markInProgress(r *run, rec *model.LeadRecord) {
	err := o.deps.Store.Put(r.inflight, rec.IdentityKey, &model.CheckpointEntry{
		State:   model.CheckpointInProgress,
		RowHash: rec.RowHash,
		RunID:   r.rc.RunID,
	})
	if err != nil {
		o.deps.Observer.CheckpointFailed()
		r.rc.Logger().Warn("pipeline: mark in_progress",
			zap.String("identity_key", rec.IdentityKey),
			zap.Error(err),
		)
	}
}
