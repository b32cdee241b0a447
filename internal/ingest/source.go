package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Source yields raw rows. The first row is the header.
type Source interface {
	Next() ([]string, error) // io.EOF after the last row
	Close() error
}

// Open returns a streaming Source for path, chosen by file extension.
func Open(ctx context.Context, path string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return openXLSX(ctx, path)
	case ".tsv":
		return openCSV(ctx, path, '\t')
	default:
		return openCSV(ctx, path, ',')
	}
}

// streamSource adapts a row/error channel pair to Source.
type streamSource struct {
	rows   <-chan []string
	errs   <-chan error
	cancel context.CancelFunc
	file   io.Closer
}

func (s *streamSource) Next() ([]string, error) {
	if row, ok := <-s.rows; ok {
		return row, nil
	}
	if err, ok := <-s.errs; ok && err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (s *streamSource) Close() error {
	s.cancel()
	// Drain so the producer goroutine exits.
	for range s.rows {
	}
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

func openCSV(ctx context.Context, path string, delim rune) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	ctx, cancel := context.WithCancel(ctx)
	rows, errs := streamCSV(ctx, f, delim)
	return &streamSource{rows: rows, errs: errs, cancel: cancel, file: f}, nil
}

// streamCSV reads r and sends trimmed rows to a channel. Both channels are
// closed when reading completes; at most one error is sent.
func streamCSV(ctx context.Context, r io.Reader, delim rune) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		reader.Comma = delim
		reader.LazyQuotes = true
		reader.FieldsPerRecord = -1

		for {
			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "ingest: read csv row")
				return
			}
			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "ingest: csv read cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

func openXLSX(ctx context.Context, path string) (Source, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("ingest: %s has no sheets", path)
	}
	ctx, cancel := context.WithCancel(ctx)
	rows, errs := streamSheet(ctx, f.Sheets[0])
	return &streamSource{rows: rows, errs: errs, cancel: cancel}, nil
}

// streamSheet sends the rows of the first worksheet. Trailing blank rows
// that spreadsheets often carry are left for the reader to skip.
func streamSheet(ctx context.Context, sheet *xlsx.Sheet) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		for _, row := range sheet.Rows {
			if row == nil {
				continue
			}
			cells := make([]string, len(row.Cells))
			for j, cell := range row.Cells {
				cells[j] = strings.TrimSpace(cell.String())
			}

			select {
			case rowCh <- cells:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "ingest: xlsx read cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}
