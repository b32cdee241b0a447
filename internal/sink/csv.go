package sink

import (
	"encoding/csv"
	"os"

	"github.com/rotisserie/eris"

	"github.com/gurnoornatt/supergoodleadgen/internal/model"
)

type csvWriter struct {
	file  *os.File
	w     *csv.Writer
	width int
}

func newCSVWriter(file *os.File, header []string) (*csvWriter, error) {
	w := csv.NewWriter(file)
	full := append(append([]string{}, header...), DerivedColumns...)
	if err := w.Write(full); err != nil {
		return nil, eris.Wrap(err, "sink: write csv header")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, eris.Wrap(err, "sink: flush csv header")
	}
	return &csvWriter{file: file, w: w, width: len(header)}, nil
}

func (c *csvWriter) Write(rec *model.LeadRecord) error {
	row := make([]string, c.width, c.width+len(DerivedColumns))
	copy(row, rec.Raw)
	row = append(row, DerivedValues(rec)...)

	if err := c.w.Write(row); err != nil {
		return eris.Wrapf(err, "sink: write row %d", rec.Index)
	}
	c.w.Flush()
	return eris.Wrapf(c.w.Error(), "sink: flush row %d", rec.Index)
}

func (c *csvWriter) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		_ = c.file.Close()
		return eris.Wrap(err, "sink: flush csv")
	}
	return eris.Wrap(c.file.Close(), "sink: close csv")
}
