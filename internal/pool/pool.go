// Package pool renders lead websites with a fixed number of workers.
package pool

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gurnoornatt/supergoodleadgen/internal/config"
	"github.com/gurnoornatt/supergoodleadgen/internal/model"
	"github.com/gurnoornatt/supergoodleadgen/internal/render"
	"github.com/gurnoornatt/supergoodleadgen/internal/resilience"
)

// Job is one record waiting to be rendered. The pool reads the record but
// never modifies it.
type Job struct {
	Index  int
	Record *model.LeadRecord
}

func (j Job) url() string { return j.Record.Website }

// Result is the terminal render outcome for a job.
type Result struct {
	Job     Job
	Outcome model.RenderOutcome
}

// Handler consumes a terminal result. It runs on the worker that rendered
// the job with a context that is not cancelled by run cancellation.
type Handler func(ctx context.Context, res Result)

// Options configures a Pool.
type Options struct {
	Workers        int
	AttemptTimeout time.Duration
	Retry          resilience.RetryConfig
	HostRPS        float64
	HostBurst      int

	// OnState observes the queued and rendering transitions.
	OnState func(job Job, status model.RenderStatus)
}

// OptionsFrom builds pool options from configuration.
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		Workers:        cfg.Batch.Workers,
		AttemptTimeout: time.Duration(cfg.Render.TimeoutSecs) * time.Second,
		Retry:          resilience.FromRender(cfg.Render),
		HostRPS:        cfg.Render.HostRPS,
		HostBurst:      cfg.Render.HostBurst,
	}
}

// Pool drives jobs through queued → rendering → terminal.
type Pool struct {
	renderer render.Renderer
	opts     Options
	limiter  *HostLimiter
}

// New creates a Pool around renderer.
func New(renderer render.Renderer, opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 15 * time.Second
	}
	return &Pool{
		renderer: renderer,
		opts:     opts,
		limiter:  NewHostLimiter(opts.HostRPS, opts.HostBurst),
	}
}

// Workers returns the configured worker count.
func (p *Pool) Workers() int { return p.opts.Workers }

// Run renders jobs and calls handle once per job that reaches a terminal
// state. Jobs without a URL are skipped synchronously on the caller's
// goroutine. When ctx is cancelled no further jobs are dispatched, renders
// already started run to completion and are handled, and Run returns an
// error wrapping ctx.Err().
func (p *Pool) Run(ctx context.Context, jobs []Job, handle Handler) error {
	inflight := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(p.opts.Workers)

	stopped := false
	for _, job := range jobs {
		if ctx.Err() != nil {
			stopped = true
			break
		}
		if job.url() == "" {
			handle(inflight, Result{Job: job, Outcome: model.Skipped{}})
			continue
		}

		p.transition(job, model.RenderQueued)
		g.Go(func() error {
			p.process(ctx, job, handle)
			return nil
		})
	}
	_ = g.Wait()

	if stopped || ctx.Err() != nil {
		return eris.Wrap(ctx.Err(), "pool: dispatch stopped")
	}
	return nil
}

func (p *Pool) process(ctx context.Context, job Job, handle Handler) {
	url := job.url()
	log := zap.L().With(zap.String("identity_key", job.Record.IdentityKey), zap.String("url", url))

	// Waiting on the host limiter is still dispatch; cancellation drops the job
	// before it starts rendering.
	if err := p.limiter.WaitURL(ctx, url); err != nil {
		log.Debug("job dropped before rendering", zap.Error(err))
		return
	}

	inflight := context.WithoutCancel(ctx)
	p.transition(job, model.RenderRendering)

	retry := p.opts.Retry
	retry.OnRetry = resilience.RetryLogger(log, url)

	page, attempts, err := resilience.DoVal(inflight, retry, func(ctx context.Context) (*model.Page, error) {
		actx, cancel := context.WithTimeout(ctx, p.opts.AttemptTimeout)
		defer cancel()
		return p.renderer.Render(actx, url)
	})

	if err == nil && page == nil {
		err = eris.Errorf("pool: %s returned no page for %s", p.renderer.Name(), url)
	}

	var outcome model.RenderOutcome
	if err != nil {
		kind := render.KindOf(err)
		log.Info("render failed",
			zap.String("failure_kind", string(kind)),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		outcome = model.Failed{Kind: kind, Err: err.Error(), Attempts: attempts}
	} else {
		log.Debug("render complete",
			zap.Int("bytes", page.Bytes),
			zap.Duration("elapsed", page.Elapsed),
			zap.Int("attempts", attempts),
		)
		outcome = model.Rendered{Page: page, Attempts: attempts}
	}

	handle(inflight, Result{Job: job, Outcome: outcome})
}

func (p *Pool) transition(job Job, status model.RenderStatus) {
	if p.opts.OnState != nil {
		p.opts.OnState(job, status)
	}
}
