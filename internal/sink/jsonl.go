package sink

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/gurnoornatt/supergoodleadgen/internal/model"
)

// jsonRecord is one JSONL line: the original cells plus the derived fields.
type jsonRecord struct {
	Input                  map[string]string   `json:"input"`
	IdentityKey            string              `json:"identity_key"`
	IsChain                bool                `json:"is_chain"`
	IndependenceConfidence int                 `json:"independence_confidence"`
	RenderStatus           model.RenderStatus  `json:"render_status"`
	FailureKind            model.FailureKind   `json:"failure_kind,omitempty"`
	ContentRef             string              `json:"rendered_content_ref,omitempty"`
	Signals                model.SignalBundle  `json:"signals"`
	PainScore              int                 `json:"pain_score"`
	Qualification          model.Qualification `json:"qualification"`
	PainFactors            []string            `json:"pain_factors,omitempty"`
	SizeTier               model.SizeTier      `json:"size_tier"`
	BudgetLow              int                 `json:"budget_low"`
	BudgetHigh             int                 `json:"budget_high"`
	Urgency                float64             `json:"urgency"`
	PriorityScore          int                 `json:"priority_score"`
	Error                  string              `json:"error,omitempty"`
}

type jsonlWriter struct {
	file   *os.File
	buf    *bufio.Writer
	enc    *json.Encoder
	header []string
}

func newJSONLWriter(file *os.File, header []string) *jsonlWriter {
	buf := bufio.NewWriter(file)
	return &jsonlWriter{file: file, buf: buf, enc: json.NewEncoder(buf), header: header}
}

func (j *jsonlWriter) Write(rec *model.LeadRecord) error {
	input := make(map[string]string, len(j.header))
	for i, h := range j.header {
		if i < len(rec.Raw) {
			input[h] = rec.Raw[i]
		}
	}

	line := jsonRecord{
		Input:                  input,
		IdentityKey:            rec.IdentityKey,
		IsChain:                rec.IsChain,
		IndependenceConfidence: rec.IndependenceConfidence,
		RenderStatus:           rec.RenderStatus,
		FailureKind:            rec.FailureKind,
		ContentRef:             rec.ContentRef,
		Signals:                rec.Signals,
		PainScore:              rec.PainScore,
		Qualification:          rec.Qualification,
		PainFactors:            rec.PainFactors,
		SizeTier:               rec.SizeTier,
		BudgetLow:              rec.Budget.Low,
		BudgetHigh:             rec.Budget.High,
		Urgency:                rec.Urgency,
		PriorityScore:          rec.PriorityScore,
		Error:                  rec.Error,
	}
	if err := j.enc.Encode(line); err != nil {
		return eris.Wrapf(err, "sink: encode row %d", rec.Index)
	}
	return eris.Wrapf(j.buf.Flush(), "sink: flush row %d", rec.Index)
}

func (j *jsonlWriter) Close() error {
	if err := j.buf.Flush(); err != nil {
		_ = j.file.Close()
		return eris.Wrap(err, "sink: flush jsonl")
	}
	return eris.Wrap(j.file.Close(), "sink: close jsonl")
}
