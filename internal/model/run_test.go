package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderStatusIsTerminal(t *testing.T) {
	t.Parallel()

	assert.True(t, RenderRendered.IsTerminal())
	assert.True(t, RenderFailed.IsTerminal())
	assert.True(t, RenderSkippedNoWebsite.IsTerminal())
	assert.False(t, RenderQueued.IsTerminal())
	assert.False(t, RenderRendering.IsTerminal())
	assert.False(t, RenderPending.IsTerminal())
}

func TestRenderOutcomeStatus(t *testing.T) {
	t.Parallel()

	outcomes := map[RenderStatus]RenderOutcome{
		RenderRendered:         Rendered{Page: &Page{}},
		RenderFailed:           Failed{Kind: FailureTimeout},
		RenderSkippedNoWebsite: Skipped{},
	}
	for want, o := range outcomes {
		assert.Equal(t, want, o.Status())
	}
}

func TestCheckpointEntryResumable(t *testing.T) {
	t.Parallel()

	e := &CheckpointEntry{State: CheckpointDone, RowHash: "abc", RenderStatus: RenderRendered}
	assert.True(t, e.Resumable("abc"))
	assert.False(t, e.Resumable("def"))

	e.State = CheckpointInProgress
	assert.False(t, e.Resumable("abc"))

	var missing *CheckpointEntry
	assert.False(t, missing.Resumable("abc"))
}

func TestRunContext(t *testing.T) {
	t.Parallel()

	rc := NewRunContext(nil)
	require.NotEmpty(t, rc.RunID)
	assert.NotNil(t, rc.Logger())

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rc.WithClock(func() time.Time { return fixed })
	assert.Equal(t, fixed, rc.Now())

	var nilCtx *RunContext
	assert.NotNil(t, nilCtx.Logger())
}

func TestRunSummary(t *testing.T) {
	t.Parallel()

	s := NewRunSummary(NewRunContext(nil))
	s.Add(&LeadRecord{RenderStatus: RenderRendered, Qualification: QualificationRed})
	s.Add(&LeadRecord{RenderStatus: RenderFailed, FailureKind: FailureDNS, Qualification: QualificationYellow})
	s.Add(&LeadRecord{RenderStatus: RenderSkippedNoWebsite, Qualification: QualificationYellow})
	s.Add(&LeadRecord{RenderStatus: RenderRendered, Resumed: true, Qualification: QualificationGreen})
	s.Add(&LeadRecord{RenderStatus: RenderRendered, Error: "scoring panic"})

	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 1, s.Resumed)
	assert.Equal(t, 3, s.Rendered)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.SkippedNoWebsite)
	assert.Equal(t, 1, s.Errors)
	assert.Equal(t, 1, s.ByFailure[FailureDNS])
	assert.Equal(t, 2, s.ByQualification[QualificationYellow])
	assert.Equal(t, 4, s.Processed())
	assert.InDelta(t, 0.5, s.SuccessRate(), 0.0001)
}

func TestRunSummaryNothingProcessed(t *testing.T) {
	t.Parallel()

	s := NewRunSummary(NewRunContext(nil))
	s.Add(&LeadRecord{RenderStatus: RenderRendered, Resumed: true})
	assert.InDelta(t, 1.0, s.SuccessRate(), 0.0001)
}

func TestRunSummaryClone(t *testing.T) {
	s := NewRunSummary(NewRunContext(nil))
	s.Add(&LeadRecord{RenderStatus: RenderFailed, FailureKind: FailureDNS, Qualification: QualificationYellow})

	c := s.Clone()
	s.Add(&LeadRecord{RenderStatus: RenderFailed, FailureKind: FailureDNS, Qualification: QualificationYellow})

	assert.Equal(t, 1, c.ByFailure[FailureDNS])
	assert.Equal(t, 2, s.ByFailure[FailureDNS])
	assert.Equal(t, 1, c.Total)
}

func TestRunSummaryDuration(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := &RunSummary{StartedAt: start, FinishedAt: start.Add(90 * time.Second)}
	assert.Equal(t, 90*time.Second, s.Duration())
}
