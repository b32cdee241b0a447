package sink

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurnoornatt/supergoodleadgen/internal/model"
)

func sampleRecord() *model.LeadRecord {
	return &model.LeadRecord{
		Index:                  0,
		IdentityKey:            "url:joesgym.test",
		Raw:                    []string{"Joe's Family Gym", "joesgym.test"},
		IndependenceConfidence: 80,
		RenderStatus:           model.RenderRendered,
		ContentRef:             "a1b2c3d4e5f6:1024",
		Signals: model.SignalBundle{
			MobileScore:      model.IntPtr(55),
			SSL:              model.BoolPtr(true),
			ModernTech:       model.BoolPtr(false),
			DetectedSoftware: []string{"MindBody", "Stripe"},
		},
		PainScore:     68,
		Qualification: model.QualificationRed,
		PainFactors:   []string{"Poor mobile performance (55/100)", "Incomplete local SEO"},
		SizeTier:      model.SizeBoutique,
		Budget:        model.BudgetRange{Low: 600, High: 1050},
		Urgency:       1.5,
		PriorityScore: 67,
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path, format string
		want         Format
	}{
		{"out.csv", "", FormatCSV},
		{"out.jsonl", "", FormatJSONL},
		{"out.NDJSON", "", FormatJSONL},
		{"out.txt", "", FormatCSV},
		{"out.csv", "jsonl", FormatJSONL},
	}
	for _, tt := range tests {
		got, err := DetectFormat(tt.path, tt.format)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.path)
	}

	_, err := DetectFormat("out.csv", "parquet")
	assert.Error(t, err)
}

func TestCSVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "scored.csv")
	w, err := Open(path, "", []string{"gym_name", "website"})
	require.NoError(t, err)

	rec := sampleRecord()
	require.NoError(t, w.Write(rec))

	// flushed before Close so a crash keeps the row
	partial, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(partial), "url:joesgym.test")

	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	header := rows[0]
	assert.Equal(t, "gym_name", header[0])
	assert.Equal(t, "identity_key", header[2])
	assert.Equal(t, "error", header[len(header)-1])
	assert.Len(t, header, 2+len(DerivedColumns))

	got := map[string]string{}
	for i, h := range header {
		got[h] = rows[1][i]
	}
	assert.Equal(t, "Joe's Family Gym", got["gym_name"])
	assert.Equal(t, "false", got["is_chain"])
	assert.Equal(t, "55", got["mobile_score"])
	assert.Equal(t, "true", got["ssl"])
	assert.Equal(t, "", got["local_seo_complete"])
	assert.Equal(t, "MindBody; Stripe", got["detected_software"])
	assert.Equal(t, "RED", got["qualification"])
	assert.Equal(t, "600", got["budget_low"])
	assert.Equal(t, "1.5", got["urgency"])
	_, ok := got["resumed"]
	assert.False(t, ok)
}

func TestCSVWriter_TruncatesPreviousOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scored.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale,data\n1,2\n3,4\n5,6\n"), 0o644))

	w, err := Open(path, "csv", []string{"gym_name", "website"})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale")
}

func TestJSONLWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scored.jsonl")
	w, err := Open(path, "", []string{"gym_name", "website"})
	require.NoError(t, err)

	require.NoError(t, w.Write(sampleRecord()))
	second := sampleRecord()
	second.Index = 1
	second.IdentityKey = "name:planet fitness|"
	second.IsChain = true
	second.Resumed = true
	require.NoError(t, w.Write(second))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)

	assert.Equal(t, "url:joesgym.test", lines[0]["identity_key"])
	assert.Equal(t, map[string]any{"gym_name": "Joe's Family Gym", "website": "joesgym.test"}, lines[0]["input"])
	assert.InDelta(t, 68, lines[0]["pain_score"], 0.001)
	assert.Equal(t, true, lines[1]["is_chain"])
	assert.NotContains(t, lines[1], "resumed")
}
