package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gurnoornatt/supergoodleadgen/internal/estimate"
	"github.com/gurnoornatt/supergoodleadgen/internal/model"
)

// complete applies a terminal render outcome to rec, scores it, and writes
// its checkpoint. It never fails: problems are recorded on rec.Error.
func (o *Orchestrator) complete(ctx context.Context, r *run, rec *model.LeadRecord, outcome model.RenderOutcome) {
	log := r.rc.Logger().With(zap.String("identity_key", rec.IdentityKey))

	entry := &model.CheckpointEntry{
		State:   model.CheckpointDone,
		RowHash: rec.RowHash,
		RunID:   r.rc.RunID,
	}

	o.guard(rec, func() {
		switch out := outcome.(type) {
		case model.Rendered:
			rec.RenderStatus = model.RenderRendered
			rec.ContentRef = model.ContentRef(out.Page.HTML)
			rec.Signals = o.deps.Extractor.Extract(out.Page)
			// The page body is not needed past extraction.
			out.Page.HTML = ""
			entry.Attempts = out.Attempts
		case model.Failed:
			rec.RenderStatus = model.RenderFailed
			rec.FailureKind = out.Kind
			rec.Signals = model.SignalBundle{}
			entry.Attempts = out.Attempts
			entry.LastError = out.Err
		case model.Skipped:
			rec.RenderStatus = model.RenderSkippedNoWebsite
			rec.Signals = model.SignalBundle{}
		}
		o.score(r.rc, rec)
	})

	entry.RenderStatus = rec.RenderStatus
	entry.FailureKind = rec.FailureKind
	entry.ContentRef = rec.ContentRef
	entry.Signals = rec.Signals
	if rec.Error != "" {
		entry.State = model.CheckpointError
		entry.LastError = rec.Error
	}

	if err := o.deps.Store.Put(ctx, rec.IdentityKey, entry); err != nil {
		o.deps.Observer.CheckpointFailed()
		log.Error("pipeline: checkpoint write failed", zap.Error(err))
		if rec.Error == "" {
			rec.Error = "checkpoint: " + err.Error()
		}
	}

	log.Debug("pipeline: record complete",
		zap.String("render_status", string(rec.RenderStatus)),
		zap.Int("pain_score", rec.PainScore),
		zap.String("qualification", string(rec.Qualification)),
	)
}

// resume restores render results from a checkpoint and re-scores rec with
// the current heuristics.
func (o *Orchestrator) resume(r *run, rec *model.LeadRecord, entry *model.CheckpointEntry) {
	rec.Resumed = true
	rec.RenderStatus = entry.RenderStatus
	rec.FailureKind = entry.FailureKind
	rec.ContentRef = entry.ContentRef
	rec.Signals = entry.Signals
	o.guard(rec, func() { o.score(r.rc, rec) })
}

// score runs the classifier, pain engine and estimator on rec.
func (o *Orchestrator) score(rc *model.RunContext, rec *model.LeadRecord) {
	cls := o.deps.Classifier.Classify(rc, rec.BusinessName, rec.ReviewCount)
	rec.IsChain = cls.IsChain
	rec.IndependenceConfidence = cls.Confidence

	res := o.deps.Scorer.Score(rc, rec.Signals)
	rec.PainScore = res.PainScore
	rec.Qualification = res.Qualification
	rec.PainFactors = res.Factors

	est := o.deps.Estimator.Estimate(rc, rec.ReviewCount, rec.Categories, cls.Confidence)
	rec.SizeTier = est.Tier
	rec.Budget = est.Budget

	rec.Urgency = o.deps.Estimator.Urgency(rec.BusinessName, rec.Categories)
	rec.PriorityScore = estimate.Priority(rec.IsChain, rec.PainScore, rec.IndependenceConfidence, rec.Urgency)
}

// guard runs fn and turns a panic into an error marker on rec so one bad
// record never aborts the batch.
func (o *Orchestrator) guard(rec *model.LeadRecord, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			rec.Error = fmt.Sprintf("scoring: %v", p)
			zap.L().Error("pipeline: record panicked",
				zap.String("identity_key", rec.IdentityKey),
				zap.Any("panic", p),
				zap.Stack("stack"),
			)
		}
	}()
	fn()
}
