package ingest

import (
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/gurnoornatt/supergoodleadgen/internal/config"
	"github.com/gurnoornatt/supergoodleadgen/internal/model"
)

// Reader turns a Source into LeadRecords in input order.
type Reader struct {
	src    Source
	name   string
	schema *Schema
	next   int
	seen   map[string]int
	peeked *model.LeadRecord
}

// NewReader reads the header, resolves columns, and checks that at least one
// data row exists. Missing required columns and empty input are returned as
// *ValidationError.
func NewReader(name string, src Source, cfg config.ColumnsConfig) (*Reader, error) {
	header, err := src.Next()
	if errors.Is(err, io.EOF) {
		return nil, &ValidationError{Source: name, Empty: true}
	}
	if err != nil {
		return nil, err
	}

	schema, err := Resolve(name, header, cfg)
	if err != nil {
		return nil, err
	}

	var absent []string
	for _, f := range canonicalFields {
		if !schema.Has(f) {
			absent = append(absent, f)
		}
	}
	if len(absent) > 0 {
		zap.L().Info("ingest: optional columns absent", zap.String("source", name), zap.Strings("fields", absent))
	}

	r := &Reader{src: src, name: name, schema: schema, seen: make(map[string]int)}
	first, err := r.read()
	if errors.Is(err, io.EOF) {
		return nil, &ValidationError{Source: name, Empty: true}
	}
	if err != nil {
		return nil, err
	}
	r.peeked = first
	return r, nil
}

// Header returns the original header row.
func (r *Reader) Header() []string { return r.schema.Header }

// Next returns the next record or io.EOF.
func (r *Reader) Next() (*model.LeadRecord, error) {
	if r.peeked != nil {
		rec := r.peeked
		r.peeked = nil
		return rec, nil
	}
	return r.read()
}

// Chunk returns up to n records. It returns io.EOF only when no records remain.
func (r *Reader) Chunk(n int) ([]*model.LeadRecord, error) {
	out := make([]*model.LeadRecord, 0, n)
	for len(out) < n {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if len(out) == 0 {
		return nil, io.EOF
	}
	return out, nil
}

// Close releases the underlying source.
func (r *Reader) Close() error { return r.src.Close() }

func (r *Reader) read() (*model.LeadRecord, error) {
	for {
		row, err := r.src.Next()
		if err != nil {
			return nil, err
		}
		if blank(row) {
			continue
		}
		rec := r.build(row)
		r.next++
		return rec, nil
	}
}

func (r *Reader) build(row []string) *model.LeadRecord {
	s := r.schema
	raw := make([]string, len(s.Header))
	copy(raw, row)

	rec := &model.LeadRecord{
		Index:        r.next,
		Raw:          raw,
		BusinessName: s.Value(row, FieldBusinessName),
		Address:      s.Value(row, FieldAddress),
		Phone:        s.Value(row, FieldPhone),
		Website:      model.CleanURL(s.Value(row, FieldWebsite)),
		Categories:   splitCategories(s.Value(row, FieldCategory)),
		Rating:       parseRating(s.Value(row, FieldRating)),
		ReviewCount:  parseCount(s.Value(row, FieldReviewCount)),
		RenderStatus: model.RenderPending,
	}
	rec.RowHash = model.RowHash(s.Fields(raw))

	key := model.IdentityKey(rec.Website, rec.BusinessName, rec.Address)
	r.seen[key]++
	if n := r.seen[key]; n > 1 {
		key += "#" + strconv.Itoa(n)
	}
	rec.IdentityKey = key
	return rec
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

var categorySep = regexp.MustCompile(`[,;|]`)

func splitCategories(v string) []string {
	var out []string
	for _, part := range categorySep.Split(v, -1) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseRating(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f < 0 {
		return 0
	}
	return min(f, 5)
}

// parseCount accepts "1,234", "(87)", "87 reviews" and "1.2k".
func parseCount(v string) int {
	v = strings.ToLower(strings.TrimSpace(v))
	v = strings.Trim(v, "()")
	v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(v, "reviews"), "review"))
	v = strings.ReplaceAll(v, ",", "")
	if v == "" {
		return 0
	}

	mult := 1.0
	if strings.HasSuffix(v, "k") {
		mult = 1000
		v = strings.TrimSuffix(v, "k")
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int(f * mult)
}
