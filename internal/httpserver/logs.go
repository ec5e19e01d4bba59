package httpserver

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brainz-lab/recall/internal/export"
	"github.com/brainz-lab/recall/internal/ingest"
	"github.com/brainz-lab/recall/internal/mcp"
	"github.com/brainz-lab/recall/internal/metrics"
	"github.com/brainz-lab/recall/internal/model"
	"github.com/brainz-lab/recall/internal/rql"
	"github.com/gin-gonic/gin"
)

// limitParam reads the limit query parameter, clamped to 1..MaxLimit.
// Missing or non-numeric values yield def.
func (s *Server) limitParam(c *gin.Context, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(c.Query("limit")))
	if err != nil {
		n = def
	}
	return clamp(n, 1, s.conf.MaxLimit)
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// runQuery executes q against v and records the query metrics.
func (s *Server) runQuery(ctx context.Context, v rql.View, q *rql.Query, limit int) (*rql.Result, error) {
	start := time.Now()
	res, err := s.exec.Execute(ctx, v, q, limit)
	metrics.ObserveQuery(queryKind(q), time.Since(start), err)
	return res, err
}

func queryStatus(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) handleQuery(c *gin.Context) {
	raw := c.Query("q")
	s.respondQuery(c, raw, s.limitParam(c, s.conf.DefaultLimit))
}

func (s *Server) respondQuery(c *gin.Context, raw string, limit int) {
	q := rql.ParseAt(raw, s.now())
	res, err := s.runQuery(c.Request.Context(), s.store.View(), q, limit)
	if err != nil {
		log.Printf("httpserver: query %q failed: %v", raw, err)
		c.JSON(queryStatus(err), gin.H{"error": err.Error()})
		return
	}
	if len(res.Records) > s.conf.MaxLimit {
		res.Records = res.Records[:s.conf.MaxLimit]
	}
	payload := mcp.QueryPayload(res)
	payload["query"] = raw
	c.JSON(http.StatusOK, payload)
}

func (s *Server) handleGetLog(c *gin.Context) {
	rec, err := s.store.LogByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, model.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// exportView narrows the store to the export's since/until range. Values
// that are neither relative windows nor timestamps are ignored.
func (s *Server) exportView(since, until string) rql.View {
	v := s.store.View()
	resolver := rql.Resolver{Now: s.now}
	if since != "" {
		if t, ok := resolver.ParseWindow(since); ok {
			v = v.Filter(rql.TimeBound{Op: rql.AtOrAfter, At: t})
		}
	}
	if until != "" {
		if t, ok := resolver.ParseWindow(until); ok {
			v = v.Filter(rql.TimeBound{Op: rql.AtOrBefore, At: t})
		}
	}
	return v
}

func (s *Server) handleExport(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	raw := c.Query("q")
	q := rql.ParseAt(raw, s.now())
	if q.Commands().Aggregating() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stats queries cannot be exported"})
		return
	}

	res, err := s.runQuery(c.Request.Context(), s.exportView(c.Query("since"), c.Query("until")), q, s.conf.ExportMaxRows)
	if err != nil {
		log.Printf("httpserver: export %q failed: %v", raw, err)
		c.JSON(queryStatus(err), gin.H{"error": err.Error()})
		return
	}

	filename := export.Filename(s.conf.Project, format, s.now())
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", format.ContentType())
	c.Status(http.StatusOK)
	if err := export.WriteAll(c.Writer, format, res.Records); err != nil {
		log.Printf("httpserver: export write failed: %v", err)
	}
}

func readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return nil, false
	}
	return body, true
}

func (s *Server) ingestRecords(source string, records []*model.LogRecord) {
	for _, rec := range records {
		s.sink.Add(rec)
	}
	metrics.RecordIngest(source, len(records))
}

func (s *Server) handleIngestOne(c *gin.Context) {
	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil || raw == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: expected a log object"})
		return
	}
	rec := ingest.DecodeRecord(raw, s.now(), false)
	s.ingestRecords(metrics.SourceHTTP, []*model.LogRecord{rec})
	c.JSON(http.StatusCreated, gin.H{"id": rec.ID})
}

func (s *Server) handleIngestBatch(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	records, err := ingest.DecodePayload(body, s.now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.ingestRecords(metrics.SourceHTTP, records)
	c.JSON(http.StatusCreated, gin.H{"ingested": len(records)})
}

// handleIngestOTLP accepts OTLP/HTTP log exports in protobuf or JSON.
func (s *Server) handleIngestOTLP(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	contentType := c.ContentType()
	req, err := ingest.DecodeOTLPRequest(body, contentType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.ingestRecords(metrics.SourceOTLP, ingest.RecordsFromOTLP(req, s.now()))

	if strings.Contains(contentType, "protobuf") {
		c.Data(http.StatusOK, contentType, nil)
		return
	}
	c.Data(http.StatusOK, "application/json", []byte("{}"))
}
