// Package export writes log records as JSON, CSV or XLSX.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/brainz-lab/recall/internal/model"
	"github.com/ohler55/ojg/oj"
)

// Format is an export file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat reads a format name. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/json"
}

// Filename builds <project>_logs_<YYYYmmdd_HHMMSS>.<ext>.
func Filename(project string, f Format, at time.Time) string {
	return fmt.Sprintf("%s_logs_%s.%s", project, at.UTC().Format("20060102_150405"), f)
}

// Columns is the column order of tabular exports.
var Columns = []string{
	"id", "timestamp", "level", "message", "environment", "service", "host",
	"commit", "branch", "session_id", "request_id", "data",
}

// Writer streams records into one export document. Close finishes the
// document; nothing is guaranteed to reach the underlying writer before it.
type Writer interface {
	Write(r *model.LogRecord) error
	Close() error
}

// NewWriter returns a writer for f.
func NewWriter(w io.Writer, f Format) (Writer, error) {
	switch f {
	case FormatJSON:
		return NewJSONWriter(w), nil
	case FormatCSV:
		return NewCSVWriter(w), nil
	case FormatXLSX:
		return NewXLSXWriter(w)
	}
	return nil, fmt.Errorf("unsupported export format %q", f)
}

// WriteAll writes records with a fresh writer for f and closes it.
func WriteAll(w io.Writer, f Format, records []model.LogRecord) error {
	ew, err := NewWriter(w, f)
	if err != nil {
		return err
	}
	for i := range records {
		if err := ew.Write(&records[i]); err != nil {
			return err
		}
	}
	return ew.Close()
}

// row flattens a record in Columns order.
func row(r *model.LogRecord) []string {
	data := "{}"
	if len(r.Data) > 0 {
		if b, err := oj.Marshal(r.Data); err == nil {
			data = string(b)
		}
	}
	return []string{
		r.ID,
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		string(r.Level),
		r.Message,
		r.Environment,
		r.Service,
		r.Host,
		r.Commit,
		r.Branch,
		r.SessionID,
		r.RequestID,
		data,
	}
}
