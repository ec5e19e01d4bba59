package export

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/brainz-lab/recall/internal/model"
)

// JSONWriter streams records as a single JSON array.
type JSONWriter struct {
	w     *bufio.Writer
	count int
}

func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{w: bufio.NewWriter(w)}
}

func (j *JSONWriter) Write(r *model.LogRecord) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	sep := ",\n"
	if j.count == 0 {
		sep = "[\n"
	}
	if _, err := j.w.WriteString(sep); err != nil {
		return err
	}
	if _, err := j.w.Write(b); err != nil {
		return err
	}
	j.count++
	return nil
}

// Count returns how many records have been written.
func (j *JSONWriter) Count() int { return j.count }

func (j *JSONWriter) Close() error {
	end := "\n]\n"
	if j.count == 0 {
		end = "[]\n"
	}
	if _, err := j.w.WriteString(end); err != nil {
		return err
	}
	return j.w.Flush()
}
