package model

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunContext carries per-run state through the orchestrator and the scoring
// components. There is no process-wide run state.
type RunContext struct {
	RunID     string
	StartedAt time.Time
	Log       *zap.Logger
	now       func() time.Time
}

// NewRunContext creates a RunContext with a fresh run ID. A nil logger falls
// back to the global zap logger.
func NewRunContext(log *zap.Logger) *RunContext {
	if log == nil {
		log = zap.L()
	}
	id := uuid.New().String()
	return &RunContext{
		RunID:     id,
		StartedAt: time.Now().UTC(),
		Log:       log.With(zap.String("run_id", id)),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Now returns the run clock's current time.
func (rc *RunContext) Now() time.Time {
	if rc == nil || rc.now == nil {
		return time.Now().UTC()
	}
	return rc.now()
}

// WithClock overrides the run clock. Used by tests.
func (rc *RunContext) WithClock(now func() time.Time) *RunContext {
	rc.now = now
	return rc
}

// Logger returns the run logger, or the global logger for a nil context.
func (rc *RunContext) Logger() *zap.Logger {
	if rc == nil || rc.Log == nil {
		return zap.L()
	}
	return rc.Log
}

// RunSummary is the user-visible report of one run.
type RunSummary struct {
	RunID            string                `json:"run_id"`
	StartedAt        time.Time             `json:"started_at"`
	FinishedAt       time.Time             `json:"finished_at,omitzero"`
	Total            int                   `json:"total"`
	Resumed          int                   `json:"resumed"`
	Rendered         int                   `json:"rendered"`
	Failed           int                   `json:"failed"`
	SkippedNoWebsite int                   `json:"skipped_no_website"`
	Errors           int                   `json:"error"`
	Succeeded        int                   `json:"succeeded"`
	Cancelled        bool                  `json:"cancelled"`
	Reconciled       int                   `json:"reconciled_in_progress"`
	ByQualification  map[Qualification]int `json:"by_qualification"`
	ByFailure        map[FailureKind]int   `json:"by_failure"`
}

// NewRunSummary creates an empty summary for rc.
func NewRunSummary(rc *RunContext) *RunSummary {
	return &RunSummary{
		RunID:           rc.RunID,
		StartedAt:       rc.StartedAt,
		ByQualification: make(map[Qualification]int),
		ByFailure:       make(map[FailureKind]int),
	}
}

// Add counts one emitted record.
func (s *RunSummary) Add(r *LeadRecord) {
	s.Total++
	if r.Resumed {
		s.Resumed++
	}
	if r.Error != "" {
		s.Errors++
	}
	switch r.RenderStatus {
	case RenderRendered:
		s.Rendered++
	case RenderFailed:
		s.Failed++
		if r.FailureKind != "" {
			s.ByFailure[r.FailureKind]++
		}
	case RenderSkippedNoWebsite:
		s.SkippedNoWebsite++
	}
	if r.Qualification != "" {
		s.ByQualification[r.Qualification]++
	}
	if !r.Resumed && r.Error == "" &&
		(r.RenderStatus == RenderRendered || r.RenderStatus == RenderSkippedNoWebsite) {
		s.Succeeded++
	}
}

// Processed is the number of rows that went through the render stage this run.
func (s *RunSummary) Processed() int {
	return s.Total - s.Resumed
}

// SuccessRate is the share of processed rows that reached rendered or
// skipped_no_website without error. It is 1 when nothing needed processing.
func (s *RunSummary) SuccessRate() float64 {
	processed := s.Processed()
	if processed <= 0 {
		return 1
	}
	return float64(s.Succeeded) / float64(processed)
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *RunSummary) Clone() *RunSummary {
	c := *s
	c.ByQualification = make(map[Qualification]int, len(s.ByQualification))
	for k, v := range s.ByQualification {
		c.ByQualification[k] = v
	}
	c.ByFailure = make(map[FailureKind]int, len(s.ByFailure))
	for k, v := range s.ByFailure {
		c.ByFailure[k] = v
	}
	return &c
}

// Duration is the wall time of the run, or the time so far while running.
func (s *RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
