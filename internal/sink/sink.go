// Package sink writes enriched lead records incrementally, one flush per
// record, so a crash leaves a valid partial file.
package sink

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/gurnoornatt/supergoodleadgen/internal/model"
)

// Writer receives records in output order.
type Writer interface {
	Write(rec *model.LeadRecord) error
	Close() error
}

// DerivedColumns follow the input columns in every output row. Per-run
// markers such as Resumed stay out so identical runs give identical files.
var DerivedColumns = []string{
	"identity_key", "is_chain", "independence_confidence", "render_status",
	"failure_kind", "rendered_content_ref", "mobile_score", "ssl", "modern_tech",
	"local_seo_complete", "detected_software", "pain_score", "qualification",
	"pain_factors", "size_tier", "budget_low", "budget_high", "urgency",
	"priority_score", "error",
}

// Format is an output encoding.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSONL Format = "jsonl"
)

// DetectFormat returns format when set, otherwise infers it from the path.
func DetectFormat(path, format string) (Format, error) {
	switch strings.ToLower(format) {
	case "csv":
		return FormatCSV, nil
	case "jsonl", "ndjson":
		return FormatJSONL, nil
	case "":
	default:
		return "", eris.Errorf("sink: unknown format %q", format)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	default:
		return FormatCSV, nil
	}
}

// Open truncates path and returns a writer for the chosen format.
func Open(path, format string, header []string) (Writer, error) {
	f, err := DetectFormat(path, format)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "sink: create dir %s", dir)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, eris.Wrapf(err, "sink: open %s", path)
	}

	if f == FormatJSONL {
		return newJSONLWriter(file, header), nil
	}
	w, err := newCSVWriter(file, header)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return w, nil
}

// DerivedValues renders the derived columns of rec as strings.
func DerivedValues(rec *model.LeadRecord) []string {
	s := rec.Signals
	return []string{
		rec.IdentityKey,
		strconv.FormatBool(rec.IsChain),
		strconv.Itoa(rec.IndependenceConfidence),
		string(rec.RenderStatus),
		string(rec.FailureKind),
		rec.ContentRef,
		optInt(s.MobileScore),
		optBool(s.SSL),
		optBool(s.ModernTech),
		optBool(s.LocalSEOComplete),
		strings.Join(s.DetectedSoftware, "; "),
		strconv.Itoa(rec.PainScore),
		string(rec.Qualification),
		strings.Join(rec.PainFactors, "; "),
		string(rec.SizeTier),
		strconv.Itoa(rec.Budget.Low),
		strconv.Itoa(rec.Budget.High),
		strconv.FormatFloat(rec.Urgency, 'f', 1, 64),
		strconv.Itoa(rec.PriorityScore),
		rec.Error,
	}
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optBool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}
