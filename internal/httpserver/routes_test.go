package httpserver

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"strings"
	"testing"

	"github.com/brainz-lab/recall/internal/model"
	"github.com/brainz-lab/recall/internal/savedsearch"
	"github.com/xuri/excelize/v2"
)

func TestSessions(t *testing.T) {
	_, store, h := newTestServer(t, Config{})
	seed(t, store)

	w := do(t, h, http.MethodGet, "/api/v1/sessions", "")
	var list struct {
		Sessions []model.SessionSummary `json:"sessions"`
	}
	decode(t, w, &list)
	if len(list.Sessions) != 1 || list.Sessions[0].SessionID != "sess_1" || list.Sessions[0].LogCount != 2 {
		t.Fatalf("sessions = %+v", list.Sessions)
	}

	w = do(t, h, http.MethodGet, "/api/v1/sessions/sess_1", "")
	var detail struct {
		SessionID string            `json:"session_id"`
		LogCount  int64             `json:"log_count"`
		Levels    map[string]int64  `json:"levels"`
		Logs      []model.LogRecord `json:"logs"`
	}
	decode(t, w, &detail)
	if detail.LogCount != 2 || detail.Levels["error"] != 1 || detail.Levels["info"] != 1 {
		t.Errorf("detail = %+v", detail)
	}
	if got := logIDs(detail.Logs); got != "a,b" {
		t.Errorf("detail logs = %s, want a,b (oldest first)", got)
	}

	w = do(t, h, http.MethodGet, "/api/v1/sessions/sess_1/logs?level=info", "")
	var logs struct {
		Count int               `json:"count"`
		Logs  []model.LogRecord `json:"logs"`
	}
	decode(t, w, &logs)
	if logs.Count != 1 || logIDs(logs.Logs) != "b" {
		t.Errorf("session logs = %+v", logs)
	}

	if w := do(t, h, http.MethodGet, "/api/v1/sessions/sess_none", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown session status = %d, want 404", w.Code)
	}

	w = do(t, h, http.MethodPost, "/api/v1/sessions", "")
	var created struct {
		SessionID string `json:"session_id"`
	}
	decode(t, w, &created)
	if w.Code != http.StatusCreated || !strings.HasPrefix(created.SessionID, model.SessionIDPrefix) {
		t.Errorf("create session = %d %+v", w.Code, created)
	}

	w = do(t, h, http.MethodDelete, "/api/v1/sessions/sess_1", "")
	var deleted struct {
		Deleted   int64  `json:"deleted"`
		SessionID string `json:"session_id"`
	}
	decode(t, w, &deleted)
	if deleted.Deleted != 2 || deleted.SessionID != "sess_1" {
		t.Errorf("delete = %+v", deleted)
	}
	if n, _ := store.TotalLogCount(t.Context()); n != 2 {
		t.Errorf("TotalLogCount after delete = %d, want 2", n)
	}
}

func TestSavedSearches(t *testing.T) {
	_, store, h := newTestServer(t, Config{})
	seed(t, store)

	w := do(t, h, http.MethodPost, "/api/v1/saved_searches", `{"name":"errors","query":"level:error"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	if w := do(t, h, http.MethodPost, "/api/v1/saved_searches", `{"name":"errors","query":"level:warn"}`); w.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/api/v1/saved_searches", `{"name":"blank","query":" "}`); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("blank query status = %d, want 422", w.Code)
	}

	w = do(t, h, http.MethodGet, "/api/v1/saved_searches/errors/logs", "")
	var resp logsResponse
	decode(t, w, &resp)
	if logIDs(resp.Logs) != "a,d" || resp.Query != "level:error" {
		t.Errorf("run = %+v", resp)
	}

	if w := do(t, h, http.MethodPut, "/api/v1/saved_searches/errors", `{"query":"level:warn"}`); w.Code != http.StatusOK {
		t.Errorf("update status = %d", w.Code)
	}
	w = do(t, h, http.MethodGet, "/api/v1/saved_searches", "")
	var list struct {
		Searches []savedsearch.Search `json:"saved_searches"`
	}
	decode(t, w, &list)
	if len(list.Searches) != 1 || list.Searches[0].Query != "level:warn" {
		t.Errorf("list = %+v", list.Searches)
	}

	if w := do(t, h, http.MethodDelete, "/api/v1/saved_searches/errors", ""); w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/api/v1/saved_searches/errors", ""); w.Code != http.StatusNotFound {
		t.Errorf("get deleted status = %d, want 404", w.Code)
	}
}

func TestExport(t *testing.T) {
	_, store, h := newTestServer(t, Config{Project: "shop"})
	seed(t, store)

	w := do(t, h, http.MethodGet, "/api/v1/logs/export?q=level:error&format=csv", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "text/csv" {
		t.Errorf("Content-Type = %q, want text/csv", got)
	}
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="shop_logs_20240610_120000.csv"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	rows, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 || rows[1][0] != "a" || rows[2][0] != "d" {
		t.Errorf("rows = %v", rows)
	}

	w = do(t, h, http.MethodGet, "/api/v1/logs/export?since=1h&until=2024-06-10T11:45:00Z", "")
	var recs []model.LogRecord
	decode(t, w, &recs)
	if logIDs(recs) != "b,a" {
		t.Errorf("since/until export = %s, want b,a", logIDs(recs))
	}

	w = do(t, h, http.MethodGet, "/api/v1/logs/export?since=whenever", "")
	decode(t, w, &recs)
	if len(recs) != 4 {
		t.Errorf("unparseable since exported %d records, want 4", len(recs))
	}

	w = do(t, h, http.MethodGet, "/api/v1/logs/export?format=xlsx&q=env:staging", "")
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()
	xrows, err := f.GetRows("logs")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(xrows) != 2 || xrows[1][0] != "c" {
		t.Errorf("xlsx rows = %v", xrows)
	}

	if w := do(t, h, http.MethodGet, "/api/v1/logs/export?format=pdf", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad format status = %d, want 400", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/api/v1/logs/export?q=%7C+stats", ""); w.Code != http.StatusBadRequest {
		t.Errorf("stats export status = %d, want 400", w.Code)
	}
}

func TestMCPRoutes(t *testing.T) {
	_, store, h := newTestServer(t, Config{})
	seed(t, store)

	w := do(t, h, http.MethodGet, "/mcp/tools", "")
	var tools struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	decode(t, w, &tools)
	if len(tools.Tools) != 7 {
		t.Errorf("tools = %d, want 7", len(tools.Tools))
	}

	w = do(t, h, http.MethodPost, "/mcp/tools/recall_by_session", `{"session_id":"sess_1"}`)
	var resp logsResponse
	decode(t, w, &resp)
	if resp.Count != 2 {
		t.Errorf("recall_by_session count = %d, want 2", resp.Count)
	}

	w = do(t, h, http.MethodPost, "/mcp/tools/recall_new_session", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), model.SessionIDPrefix) {
		t.Errorf("recall_new_session = %d %s", w.Code, w.Body.String())
	}

	if w := do(t, h, http.MethodPost, "/mcp/tools/nope", `{}`); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown tool status = %d, want 422", w.Code)
	}

	w = do(t, h, http.MethodPost, "/mcp/rpc", `{"jsonrpc":"2.0","id":9,"method":"bogus"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "-32601") {
		t.Errorf("rpc unknown method = %d %s", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodPost, "/mcp/rpc", `{"jsonrpc":"2.0","id":10,"method":"tools/call","params":{"name":"recall_clear_session","arguments":{"session_id":"sess_1"}}}`)
	if !strings.Contains(w.Body.String(), `"deleted":2`) {
		t.Errorf("rpc clear session = %s", w.Body.String())
	}
}
