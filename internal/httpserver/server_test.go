package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brainz-lab/recall/internal/duckdb"
	"github.com/brainz-lab/recall/internal/model"
	"github.com/brainz-lab/recall/internal/savedsearch"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testNow = time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)

// syncSink writes every record straight to the store so tests can read
// them back immediately.
type syncSink struct {
	t     *testing.T
	store *duckdb.Store
}

func (s syncSink) Add(r *model.LogRecord) {
	if err := s.store.InsertLogBatch([]*model.LogRecord{r}); err != nil {
		s.t.Errorf("insert: %v", err)
	}
}

func newTestServer(t *testing.T, conf Config) (*Server, *duckdb.Store, http.Handler) {
	t.Helper()
	store, err := duckdb.NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	searches, err := savedsearch.Open("")
	if err != nil {
		t.Fatalf("savedsearch.Open: %v", err)
	}

	srv := NewServer(conf, store, syncSink{t: t, store: store}, searches)
	srv.now = func() time.Time { return testNow }
	return srv, store, srv.Handler()
}

func seed(t *testing.T, store *duckdb.Store) {
	t.Helper()
	records := []*model.LogRecord{
		{ID: "a", Timestamp: testNow.Add(-30 * time.Minute), Level: model.LevelError, Message: "payment failed",
			Commit: "abc123", Environment: "production", SessionID: "sess_1", Data: map[string]any{"user": map[string]any{"id": "7"}}},
		{ID: "b", Timestamp: testNow.Add(-20 * time.Minute), Level: model.LevelInfo, Message: "checkout ok",
			Environment: "production", SessionID: "sess_1", RequestID: "req-1"},
		{ID: "c", Timestamp: testNow.Add(-10 * time.Minute), Level: model.LevelWarn, Message: "slow query",
			Environment: "staging"},
		{ID: "d", Timestamp: testNow.Add(-48 * time.Hour), Level: model.LevelError, Message: "ancient failure"},
	}
	if err := store.InsertLogBatch(records); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func do(t *testing.T, h http.Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal %s: %v", w.Body.String(), err)
	}
}

type logsResponse struct {
	Logs  []model.LogRecord `json:"logs"`
	Count int               `json:"count"`
	Query string            `json:"query"`
}

func logIDs(logs []model.LogRecord) string {
	ids := make([]string, len(logs))
	for i, r := range logs {
		ids[i] = r.ID
	}
	return strings.Join(ids, ",")
}

func TestUpAndHealth(t *testing.T) {
	_, store, h := newTestServer(t, Config{})
	seed(t, store)

	w := do(t, h, http.MethodGet, "/up", "")
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Errorf("/up = %d %q", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	var body map[string]any
	decode(t, w, &body)
	if body["status"] != "ok" {
		t.Errorf("health status = %v, want ok", body["status"])
	}
	if body["log_count"] != float64(4) {
		t.Errorf("log_count = %v, want 4", body["log_count"])
	}
}

func TestHealthEndpoint_WrongMethod(t *testing.T) {
	_, _, h := newTestServer(t, Config{})
	w := do(t, h, http.MethodPost, "/api/health", "")
	if w.Code != http.StatusMethodNotAllowed && w.Code != http.StatusNotFound {
		t.Errorf("health POST status = %d, want 405 or 404", w.Code)
	}
}

func TestQueryLogs(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"all newest first", "/api/v1/logs", "c,b,a,d"},
		{"level filter", "/api/v1/logs?q=level:error", "a,d"},
		{"time window", "/api/v1/logs?q=level:error+since:1h", "a"},
		{"data path", "/api/v1/logs?q=data.user.id:7", "a"},
		{"negated env", "/api/v1/logs?q=env:!production", "c"},
		{"or groups", "/api/v1/logs?q=level:warn+OR+commit:abc123", "c,a"},
		{"free text", "/api/v1/logs?q=%22checkout%22", "b"},
		{"first command", "/api/v1/logs?q=since:1h+%7C+first+2", "a,b"},
		{"limit param", "/api/v1/logs?limit=1", "c"},
		{"limit clamps up from zero", "/api/v1/logs?limit=0", "c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, store, h := newTestServer(t, Config{})
			seed(t, store)

			w := do(t, h, http.MethodGet, tt.target, "")
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
			}
			var resp logsResponse
			decode(t, w, &resp)
			if got := logIDs(resp.Logs); got != tt.want {
				t.Errorf("ids = %s, want %s", got, tt.want)
			}
			if resp.Count != len(resp.Logs) {
				t.Errorf("count = %d, want %d", resp.Count, len(resp.Logs))
			}
		})
	}
}

func TestQueryLogsEchoesQuery(t *testing.T) {
	_, _, h := newTestServer(t, Config{})
	w := do(t, h, http.MethodGet, "/api/v1/logs?q=level:error", "")
	var resp logsResponse
	decode(t, w, &resp)
	if resp.Query != "level:error" {
		t.Errorf("query = %q, want level:error", resp.Query)
	}
	if resp.Logs == nil {
		t.Error("logs = null, want []")
	}
}

func TestQueryStats(t *testing.T) {
	_, store, h := newTestServer(t, Config{})
	seed(t, store)

	w := do(t, h, http.MethodGet, "/api/v1/logs?q=since:1d+%7C+stats", "")
	var resp struct {
		Stats struct {
			Total   int64            `json:"total"`
			ByLevel map[string]int64 `json:"by_level"`
		} `json:"stats"`
	}
	decode(t, w, &resp)
	if resp.Stats.Total != 3 {
		t.Errorf("total = %d, want 3", resp.Stats.Total)
	}
	if resp.Stats.ByLevel["error"] != 1 || resp.Stats.ByLevel["warn"] != 1 {
		t.Errorf("by_level = %v", resp.Stats.ByLevel)
	}

	w = do(t, h, http.MethodGet, "/api/v1/logs?q=%7C+stats+by:environment", "")
	var grouped struct {
		Stats map[string]int64 `json:"stats"`
	}
	decode(t, w, &grouped)
	if grouped.Stats["production"] != 2 || grouped.Stats["staging"] != 1 || grouped.Stats[""] != 1 {
		t.Errorf("stats by environment = %v", grouped.Stats)
	}
}

func TestGetLog(t *testing.T) {
	_, store, h := newTestServer(t, Config{})
	seed(t, store)

	w := do(t, h, http.MethodGet, "/api/v1/logs/a", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var rec model.LogRecord
	decode(t, w, &rec)
	if rec.Message != "payment failed" || rec.Commit != "abc123" {
		t.Errorf("record = %+v", rec)
	}

	if w := do(t, h, http.MethodGet, "/api/v1/logs/missing", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", w.Code)
	}
}

func TestIngest(t *testing.T) {
	_, store, h := newTestServer(t, Config{})

	w := do(t, h, http.MethodPost, "/api/v1/log", `{"message":"hello","level":"ERROR","data":{"k":1}}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("single status = %d, body %s", w.Code, w.Body.String())
	}
	var one struct {
		ID string `json:"id"`
	}
	decode(t, w, &one)
	rec, err := store.LogByID(t.Context(), one.ID)
	if err != nil {
		t.Fatalf("LogByID(%s): %v", one.ID, err)
	}
	if rec.Level != model.LevelError || rec.Message != "hello" {
		t.Errorf("record = %+v", rec)
	}
	if !rec.Timestamp.Equal(testNow) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp, testNow)
	}

	w = do(t, h, http.MethodPost, "/api/v1/logs", `{"logs":[{"message":"x"},{"message":"y","level":"warn"}]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("batch status = %d", w.Code)
	}
	var batch struct {
		Ingested int `json:"ingested"`
	}
	decode(t, w, &batch)
	if batch.Ingested != 2 {
		t.Errorf("ingested = %d, want 2", batch.Ingested)
	}

	w = do(t, h, http.MethodPost, "/api/v1/logs", `[{"message":"z"}]`)
	decode(t, w, &batch)
	if batch.Ingested != 1 {
		t.Errorf("bare array ingested = %d, want 1", batch.Ingested)
	}

	if n, _ := store.TotalLogCount(t.Context()); n != 4 {
		t.Errorf("TotalLogCount = %d, want 4", n)
	}

	for _, body := range []string{`[1,2`, `"text"`} {
		if w := do(t, h, http.MethodPost, "/api/v1/logs", body); w.Code != http.StatusBadRequest {
			t.Errorf("POST %s status = %d, want 400", body, w.Code)
		}
	}
	if w := do(t, h, http.MethodPost, "/api/v1/log", `[]`); w.Code != http.StatusBadRequest {
		t.Errorf("single array status = %d, want 400", w.Code)
	}
}

func TestIngestOTLPJSON(t *testing.T) {
	_, store, h := newTestServer(t, Config{})
	body := `{"resourceLogs":[{"resource":{"attributes":[{"key":"service.name","value":{"stringValue":"api"}}]},` +
		`"scopeLogs":[{"logRecords":[{"severityText":"WARN","body":{"stringValue":"disk low"}}]}]}]}`
	w := do(t, h, http.MethodPost, "/v1/logs", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	recs, err := store.View().Records(t.Context())
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(recs) != 1 || recs[0].Service != "api" || recs[0].Level != model.LevelWarn || recs[0].Message != "disk low" {
		t.Errorf("records = %+v", recs)
	}
}

func TestAuth(t *testing.T) {
	_, _, h := newTestServer(t, Config{APIKey: "read-key", IngestKey: "ingest-key"})

	tests := []struct {
		name    string
		method  string
		target  string
		body    string
		headers []string
		want    int
	}{
		{"no key", http.MethodGet, "/api/v1/logs", "", nil, http.StatusUnauthorized},
		{"bearer", http.MethodGet, "/api/v1/logs", "", []string{"Authorization", "Bearer read-key"}, http.StatusOK},
		{"header", http.MethodGet, "/api/v1/logs", "", []string{"X-API-Key", "read-key"}, http.StatusOK},
		{"query param", http.MethodGet, "/api/v1/logs?api_key=read-key", "", nil, http.StatusOK},
		{"wrong key", http.MethodGet, "/api/v1/logs", "", []string{"X-API-Key", "nope"}, http.StatusUnauthorized},
		{"ingest key cannot read", http.MethodGet, "/api/v1/logs", "", []string{"X-API-Key", "ingest-key"}, http.StatusUnauthorized},
		{"ingest key can write", http.MethodPost, "/api/v1/log", `{"message":"m"}`, []string{"X-API-Key", "ingest-key"}, http.StatusCreated},
		{"api key can write", http.MethodPost, "/api/v1/log", `{"message":"m"}`, []string{"Authorization", "Bearer read-key"}, http.StatusCreated},
		{"ingest needs a key", http.MethodPost, "/api/v1/log", `{"message":"m"}`, nil, http.StatusUnauthorized},
		{"mcp needs api key", http.MethodGet, "/mcp/tools", "", []string{"X-API-Key", "ingest-key"}, http.StatusUnauthorized},
		{"health is open", http.MethodGet, "/api/health", "", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.target, tt.body, tt.headers...)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	_, _, h := newTestServer(t, Config{Metrics: true})
	do(t, h, http.MethodGet, "/api/v1/logs?q=level:error", "")

	w := do(t, h, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "recall_queries_total") {
		t.Error("metrics output missing recall_queries_total")
	}

	_, _, h = newTestServer(t, Config{})
	if w := do(t, h, http.MethodGet, "/metrics", ""); w.Code != http.StatusNotFound {
		t.Errorf("disabled metrics status = %d, want 404", w.Code)
	}
}
