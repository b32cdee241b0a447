package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/gurnoornatt/supergoodleadgen/internal/model"
)

var qualificationColor = map[model.Qualification]*color.Color{
	model.QualificationRed:    color.New(color.FgRed, color.Bold),
	model.QualificationYellow: color.New(color.FgYellow),
	model.QualificationGreen:  color.New(color.FgGreen),
}

// printSummary renders the end-of-run table.
func printSummary(w io.Writer, s *model.RunSummary) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle("Run " + s.RunID)
	tbl.AppendHeader(table.Row{"Metric", "Value"})

	tbl.AppendRows([]table.Row{
		{"Total rows", humanize.Comma(int64(s.Total))},
		{"Resumed", humanize.Comma(int64(s.Resumed))},
		{"Rendered", humanize.Comma(int64(s.Rendered))},
		{"Failed", humanize.Comma(int64(s.Failed))},
		{"Skipped (no website)", humanize.Comma(int64(s.SkippedNoWebsite))},
		{"Errors", humanize.Comma(int64(s.Errors))},
	})
	if s.Reconciled > 0 {
		tbl.AppendRow(table.Row{"Reconciled in_progress", humanize.Comma(int64(s.Reconciled))})
	}
	tbl.AppendSeparator()

	for _, q := range []model.Qualification{model.QualificationRed, model.QualificationYellow, model.QualificationGreen} {
		tbl.AppendRow(table.Row{qualificationColor[q].Sprint(string(q)), humanize.Comma(int64(s.ByQualification[q]))})
	}

	if len(s.ByFailure) > 0 {
		tbl.AppendSeparator()
		kinds := make([]string, 0, len(s.ByFailure))
		for k := range s.ByFailure {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			tbl.AppendRow(table.Row{"Failure: " + k, humanize.Comma(int64(s.ByFailure[model.FailureKind(k)]))})
		}
	}

	tbl.AppendSeparator()
	tbl.AppendRow(table.Row{"Success rate", fmt.Sprintf("%.1f%%", s.SuccessRate()*100)})
	tbl.AppendRow(table.Row{"Duration", s.Duration().Round(time.Millisecond).String()})
	if s.Cancelled {
		tbl.AppendFooter(table.Row{color.YellowString("cancelled"), "resume by re-running"})
	}
	tbl.Render()
}

// printCheckpointStatus renders checkpoint counts and the latest run.
func printCheckpointStatus(w io.Writer, counts map[model.CheckpointState]int, latest *model.RunSummary) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"State", "Entries"})

	total := 0
	for _, st := range []model.CheckpointState{
		model.CheckpointDone, model.CheckpointInProgress, model.CheckpointError, model.CheckpointNotStarted,
	} {
		total += counts[st]
		tbl.AppendRow(table.Row{string(st), humanize.Comma(int64(counts[st]))})
	}
	tbl.AppendFooter(table.Row{"total", humanize.Comma(int64(total))})
	tbl.Render()

	if latest == nil {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	finished := "still running or interrupted"
	if !latest.FinishedAt.IsZero() {
		finished = humanize.Time(latest.FinishedAt)
	}
	fmt.Fprintf(w, "Latest run %s: %s rows, %.1f%% success, finished %s\n",
		latest.RunID, humanize.Comma(int64(latest.Total)), latest.SuccessRate()*100, finished)
}
