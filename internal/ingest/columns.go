// Package ingest reads lead rows from CSV or XLSX files and maps their
// columns onto canonical lead fields.
package ingest

import (
	"fmt"
	"strings"

	"github.com/gurnoornatt/supergoodleadgen/internal/config"
)

// Canonical field names.
const (
	FieldBusinessName = "business_name"
	FieldWebsite      = "website_url"
	FieldAddress      = "address"
	FieldPhone        = "phone"
	FieldCategory     = "category"
	FieldRating       = "rating"
	FieldReviewCount  = "review_count"
)

var canonicalFields = []string{
	FieldBusinessName, FieldWebsite, FieldAddress, FieldPhone,
	FieldCategory, FieldRating, FieldReviewCount,
}

// ValidationError is a fatal input problem found before any processing.
type ValidationError struct {
	Source  string
	Missing []string
	Empty   bool
}

func (e *ValidationError) Error() string {
	if e.Empty {
		return fmt.Sprintf("ingest: %s: input has no data rows", e.Source)
	}
	return fmt.Sprintf("ingest: %s: missing required columns: %s", e.Source, strings.Join(e.Missing, ", "))
}

// Schema is the resolved mapping from canonical fields to input columns.
type Schema struct {
	Header []string
	keys   []string // normalized header names, mapped to canonical where known
	index  map[string]int
}

// Resolve maps header onto canonical fields using cfg.Mapping. A header that
// already is a canonical name wins over an alias; among aliases the
// leftmost column wins.
func Resolve(source string, header []string, cfg config.ColumnsConfig) (*Schema, error) {
	mapping := make(map[string]string, len(cfg.Mapping))
	for from, to := range cfg.Mapping {
		mapping[normalizeHeader(from)] = normalizeHeader(to)
	}

	s := &Schema{
		Header: header,
		keys:   make([]string, len(header)),
		index:  make(map[string]int),
	}
	exact := make(map[string]bool)
	for i, h := range header {
		name := normalizeHeader(h)
		key := name
		if to, ok := mapping[name]; ok {
			key = to
		}
		s.keys[i] = key

		if _, seen := s.index[key]; !seen || (key == name && !exact[key]) {
			s.index[key] = i
			exact[key] = key == name
		}
	}

	var missing []string
	for _, req := range cfg.Required {
		if _, ok := s.index[normalizeHeader(req)]; !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Source: source, Missing: missing}
	}
	return s, nil
}

// Has reports whether field is present in the input.
func (s *Schema) Has(field string) bool {
	_, ok := s.index[field]
	return ok
}

// Value returns the cell for field in row, or "".
func (s *Schema) Value(row []string, field string) string {
	i, ok := s.index[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Fields returns every column of row keyed by its mapped name. Duplicate
// names get a positional suffix so no cell is lost.
func (s *Schema) Fields(row []string) map[string]string {
	out := make(map[string]string, len(s.keys))
	for i, k := range s.keys {
		if _, dup := out[k]; dup || k == "" {
			k = fmt.Sprintf("%s@%d", k, i)
		}
		if i < len(row) {
			out[k] = row[i]
		} else {
			out[k] = ""
		}
	}
	return out
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "_", "-", "_", ".", "_").Replace(h)
}
