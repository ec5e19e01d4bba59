package export

import (
	"encoding/csv"
	"io"

	"github.com/brainz-lab/recall/internal/model"
)

// CSVWriter writes a header row followed by one row per record.
type CSVWriter struct {
	w      *csv.Writer
	header bool
}

func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

func (c *CSVWriter) writeHeader() error {
	if c.header {
		return nil
	}
	c.header = true
	return c.w.Write(Columns)
}

func (c *CSVWriter) Write(r *model.LogRecord) error {
	if err := c.writeHeader(); err != nil {
		return err
	}
	return c.w.Write(row(r))
}

func (c *CSVWriter) Close() error {
	if err := c.writeHeader(); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}
