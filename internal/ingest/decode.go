// Package ingest turns incoming log payloads into records: JSON documents
// posted to the HTTP API, NDJSON lines read from files, and OTLP log
// exports received over gRPC or HTTP.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/brainz-lab/recall/internal/logparse"
	"github.com/brainz-lab/recall/internal/model"
	"github.com/brainz-lab/recall/internal/timestamp"
	"github.com/google/uuid"
	"github.com/ohler55/ojg/oj"
)

// RecordSink accepts decoded records, typically a duckdb.InsertBuffer.
type RecordSink interface {
	Add(record *model.LogRecord)
}

// ErrEmptyPayload is returned for a body with nothing to decode.
var ErrEmptyPayload = errors.New("ingest: empty payload")

// columnKeys maps top-level keys to the record column they fill. The first
// key listed for a column wins when a document carries several.
var columnKeys = []struct {
	column string
	keys   []string
}{
	{"message", []string{"message", "msg"}},
	{model.ColumnCommit, []string{"commit"}},
	{model.ColumnBranch, []string{"branch"}},
	{model.ColumnEnvironment, []string{"environment", "env"}},
	{model.ColumnService, []string{"service", "service.name"}},
	{model.ColumnHost, []string{"host", "hostname"}},
	{model.ColumnRequestID, []string{"request_id"}},
	{model.ColumnSessionID, []string{"session_id"}},
}

var (
	timestampKeys = []string{"timestamp", "time", "ts", "@timestamp"}
	levelKeys     = []string{"level", "severity"}
)

// DecodeRecord maps one JSON object to a record. A missing or unparseable
// timestamp becomes now, a missing or unknown level becomes info, and a
// missing data object becomes empty. With foldExtra, keys the record has no
// column for are copied into data.
func DecodeRecord(raw map[string]any, now time.Time, foldExtra bool) *model.LogRecord {
	rec := &model.LogRecord{Level: model.LevelInfo}
	used := map[string]bool{"id": true, "data": true}

	if id, ok := raw["id"].(string); ok && id != "" {
		rec.ID = id
	} else {
		rec.ID = uuid.New().String()
	}

	rec.Timestamp = now.UTC()
	for _, k := range timestampKeys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		used[k] = true
		if ts, ok := timestamp.FromValue(v); ok {
			rec.Timestamp = ts
			break
		}
	}

	for _, k := range levelKeys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		used[k] = true
		rec.Level = decodeLevel(v)
		break
	}

	for _, ck := range columnKeys {
		for _, k := range ck.keys {
			if _, ok := raw[k]; !ok {
				continue
			}
			used[k] = true
			if s := ExtractStringField(raw, k); s != "" {
				setColumn(rec, ck.column, s)
				break
			}
		}
	}

	rec.Data = map[string]any{}
	if data, ok := raw["data"].(map[string]any); ok {
		rec.Data = data
	}
	if foldExtra {
		for k, v := range raw {
			if used[k] || v == nil {
				continue
			}
			if _, exists := rec.Data[k]; !exists {
				rec.Data[k] = v
			}
		}
	}
	return rec
}

func decodeLevel(v any) model.Level {
	switch val := v.(type) {
	case float64:
		return logparse.NumberToLevel(int(val))
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return logparse.NumberToLevel(int(n))
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return logparse.NumberToLevel(n)
		}
		return logparse.NormalizeLevel(val)
	}
	return model.LevelInfo
}

func setColumn(rec *model.LogRecord, column, value string) {
	switch column {
	case "message":
		rec.Message = value
	case model.ColumnCommit:
		rec.Commit = value
	case model.ColumnBranch:
		rec.Branch = value
	case model.ColumnEnvironment:
		rec.Environment = value
	case model.ColumnService:
		rec.Service = value
	case model.ColumnHost:
		rec.Host = value
	case model.ColumnRequestID:
		rec.RequestID = value
	case model.ColumnSessionID:
		rec.SessionID = value
	}
}

// DecodePayload decodes an ingest body: {"logs": [...]}, a bare array of
// records, or a single record object. Array elements that are not objects
// are skipped.
func DecodePayload(body []byte, now time.Time) ([]*model.LogRecord, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, ErrEmptyPayload
	}

	var items []any
	switch body[0] {
	case '[':
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("decode log array: %w", err)
		}
	case '{':
		var obj map[string]any
		if err := json.Unmarshal(body, &obj); err != nil {
			return nil, fmt.Errorf("decode log object: %w", err)
		}
		logs, ok := obj["logs"]
		if !ok {
			return []*model.LogRecord{DecodeRecord(obj, now, false)}, nil
		}
		if items, ok = logs.([]any); !ok {
			return nil, fmt.Errorf("decode log batch: logs must be an array")
		}
	default:
		return nil, fmt.Errorf("decode payload: expected a JSON object or array")
	}

	records := make([]*model.LogRecord, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		records = append(records, DecodeRecord(obj, now, false))
	}
	return records, nil
}

// ParseLine decodes one NDJSON line. Lines that are not JSON objects become
// info records carrying the line as their message. Blank lines yield nil.
func ParseLine(line string, now time.Time) *model.LogRecord {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}
	if strings.HasPrefix(trimmed, "{") {
		var raw map[string]any
		if err := json.Unmarshal([]byte(trimmed), &raw); err == nil {
			return DecodeRecord(raw, now, true)
		}
	}
	return &model.LogRecord{
		ID:        uuid.New().String(),
		Timestamp: now.UTC(),
		Level:     model.LevelInfo,
		Message:   trimmed,
		Data:      map[string]any{},
	}
}

func stringifyJSONValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	default:
		if b, err := oj.Marshal(v); err == nil {
			return string(b)
		}
	}
	return ""
}

// ExtractStringField returns the first non-empty string value found among the given keys.
func ExtractStringField(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if str := stringifyJSONValue(v); str != "" {
				return str
			}
		}
	}
	return ""
}
