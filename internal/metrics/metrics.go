// Package metrics exposes Prometheus collectors for queries, ingest and
// retention.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	queryCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recall_queries_total",
		Help: "Counter of RQL queries executed, by kind and outcome.",
	}, []string{"kind", "outcome"})
	queryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recall_query_duration_seconds",
		Help:    "Histogram of RQL query execution time.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	}, []string{"kind"})
	ingestCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recall_ingested_records_total",
		Help: "Counter of log records accepted for ingest, by source.",
	}, []string{"source"})
	flushCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recall_insert_flushes_total",
		Help: "Counter of insert buffer flushes, by outcome.",
	}, []string{"outcome"})
	flushedRecords = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recall_insert_flushed_records_total",
		Help: "Counter of records written by the insert buffer.",
	})
	archivedRecords = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recall_archived_records_total",
		Help: "Counter of records removed by the retention archiver.",
	})
)

func init() {
	prometheus.MustRegister(queryCount)
	prometheus.MustRegister(queryDuration)
	prometheus.MustRegister(ingestCount)
	prometheus.MustRegister(flushCount)
	prometheus.MustRegister(flushedRecords)
	prometheus.MustRegister(archivedRecords)
}

// Query kinds.
const (
	KindRecords = "records"
	KindStats   = "stats"
)

// Ingest sources.
const (
	SourceHTTP  = "http"
	SourceOTLP  = "otlp"
	SourceStdin = "stdin"
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveQuery records one executed query.
func ObserveQuery(kind string, elapsed time.Duration, err error) {
	queryCount.WithLabelValues(kind, outcome(err)).Inc()
	queryDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// RecordIngest counts records accepted from source.
func RecordIngest(source string, n int) {
	if n > 0 {
		ingestCount.WithLabelValues(source).Add(float64(n))
	}
}

// RecordFlush counts one insert buffer flush of n records.
func RecordFlush(n int, err error) {
	flushCount.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		flushedRecords.Add(float64(n))
	}
}

// RecordArchive counts records removed by retention.
func RecordArchive(n int64) {
	if n > 0 {
		archivedRecords.Add(float64(n))
	}
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
