package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveQuery(t *testing.T) {
	before := testutil.ToFloat64(queryCount.WithLabelValues(KindStats, "error"))
	ObserveQuery(KindStats, 5*time.Millisecond, errors.New("boom"))
	if got := testutil.ToFloat64(queryCount.WithLabelValues(KindStats, "error")); got != before+1 {
		t.Errorf("stats/error count = %v, want %v", got, before+1)
	}
}

func TestRecordIngestIgnoresEmpty(t *testing.T) {
	before := testutil.ToFloat64(ingestCount.WithLabelValues(SourceOTLP))
	RecordIngest(SourceOTLP, 0)
	RecordIngest(SourceOTLP, 3)
	if got := testutil.ToFloat64(ingestCount.WithLabelValues(SourceOTLP)); got != before+3 {
		t.Errorf("otlp ingest count = %v, want %v", got, before+3)
	}
}

func TestRecordFlush(t *testing.T) {
	before := testutil.ToFloat64(flushedRecords)
	RecordFlush(10, nil)
	RecordFlush(5, errors.New("db down"))
	if got := testutil.ToFloat64(flushedRecords); got != before+10 {
		t.Errorf("flushed records = %v, want %v", got, before+10)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	RecordArchive(2)
	ObserveQuery(KindRecords, time.Millisecond, nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, name := range []string{"recall_archived_records_total", "recall_queries_total"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("/metrics output missing %s", name)
		}
	}
}
