package ingest

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/brainz-lab/recall/internal/model"
)

// DefaultMaxLineSize is the largest NDJSON line ReadLines accepts.
const DefaultMaxLineSize = 1024 * 1024 // 1MB

// SinkFunc adapts a function to RecordSink.
type SinkFunc func(rec *model.LogRecord)

// Add calls f(rec).
func (f SinkFunc) Add(rec *model.LogRecord) { f(rec) }

// ReadLines decodes every line of r with ParseLine and adds the records to
// sink. It returns the number of records added at EOF, or as soon as ctx is
// cancelled even while a read on r is blocked. In that case the scanning
// goroutine exits once its pending read returns.
func ReadLines(ctx context.Context, r io.Reader, sink RecordSink, now func() time.Time) (int, error) {
	if now == nil {
		now = time.Now
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	type scanResult struct {
		line string
		err  error
		eof  bool
	}
	results := make(chan scanResult)
	done := make(chan struct{})
	defer close(done)

	// A single scanning goroutine keeps the blocking read off the select
	// below without spawning a goroutine per line.
	go func() {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), DefaultMaxLineSize)
		for scanner.Scan() {
			select {
			case results <- scanResult{line: scanner.Text()}:
			case <-done:
				return
			}
		}
		select {
		case results <- scanResult{err: scanner.Err(), eof: true}:
		case <-done:
		}
	}()

	n := 0
	for {
		select {
		case <-ctx.Done():
			return n, ctx.Err()
		case res := <-results:
			if res.eof {
				return n, res.err
			}
			rec := ParseLine(res.line, now())
			if rec == nil {
				continue
			}
			sink.Add(rec)
			n++
		}
	}
}
