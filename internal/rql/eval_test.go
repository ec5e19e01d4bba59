package rql

import (
	"testing"
	"time"

	"github.com/brainz-lab/recall/internal/model"
)

func TestEvaluate(t *testing.T) {
	ts := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
	rec := &model.LogRecord{
		Timestamp:   ts,
		Level:       model.LevelError,
		Message:     "Payment FAILED for order 9",
		Environment: "production",
		Data: map[string]any{
			"user":  map[string]any{"id": "123"},
			"count": float64(50),
			"ratio": "0.5",
			"note":  "n/a",
			"path":  "/api/v1/orders",
			"ok":    true,
		},
	}

	tests := []struct {
		name string
		pred Predicate
		want Truth
	}{
		{"level in", FieldIn{Field: "level", Values: []string{"warn", "error"}}, True},
		{"level not in", FieldIn{Field: "level", Values: []string{"info"}}, False},
		{"level empty set", FieldIn{Field: "level"}, False},
		{"env equals", FieldEquals{Field: "environment", Value: "production"}, True},
		{"absent commit", FieldEquals{Field: "commit", Value: "abc"}, Unknown},
		{"not absent commit", Not{Inner: FieldEquals{Field: "commit", Value: "abc"}}, Unknown},
		{"since inclusive", TimeBound{Op: AtOrAfter, At: ts}, True},
		{"since later", TimeBound{Op: AtOrAfter, At: ts.Add(time.Second)}, False},
		{"until inclusive", TimeBound{Op: AtOrBefore, At: ts}, True},
		{"nested equals", DataEquals{Path: DataPath{"user", "id"}, Value: "123"}, True},
		{"number equals", DataEquals{Path: DataPath{"count"}, Value: "50"}, True},
		{"bool equals", DataEquals{Path: DataPath{"ok"}, Value: "true"}, True},
		{"missing path", DataEquals{Path: DataPath{"user", "name"}, Value: "x"}, Unknown},
		{"glob", DataGlob{Path: DataPath{"path"}, Pattern: "/api/*"}, True},
		{"glob anchored", DataGlob{Path: DataPath{"path"}, Pattern: "api/*"}, False},
		{"glob case sensitive", DataGlob{Path: DataPath{"path"}, Pattern: "/API/*"}, False},
		{"glob literal dots", DataGlob{Path: DataPath{"ratio"}, Pattern: "0?5*"}, False},
		{"compare greater", DataCompare{Path: DataPath{"count"}, Op: OpGreater, Operand: 10}, True},
		{"compare less", DataCompare{Path: DataPath{"count"}, Op: OpLess, Operand: 10}, False},
		{"compare numeric string", DataCompare{Path: DataPath{"ratio"}, Op: OpLessEqual, Operand: 0.5}, True},
		{"compare non numeric", DataCompare{Path: DataPath{"note"}, Op: OpGreater, Operand: 0}, Unknown},
		{"compare bool", DataCompare{Path: DataPath{"ok"}, Op: OpGreater, Operand: 0}, Unknown},
		{"message ignores case", MessageContains{Term: "payment failed"}, True},
		{"message absent term", MessageContains{Term: "refund"}, False},
		{"not true", Not{Inner: FieldIn{Field: "level", Values: []string{"error"}}}, False},
		{"empty all", All{}, True},
		{"empty any", Any{}, False},
		{"all with unknown", All{FieldIn{Field: "level", Values: []string{"error"}}, FieldEquals{Field: "host", Value: "h"}}, Unknown},
		{"all with false", All{MatchNone{}, FieldEquals{Field: "host", Value: "h"}}, False},
		{"any with true", Any{FieldEquals{Field: "host", Value: "h"}, MessageContains{Term: "order"}}, True},
		{"match none", MatchNone{}, False},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.pred, rec); got != tt.want {
				t.Errorf("Evaluate(%#v) = %v, want %v", tt.pred, got, tt.want)
			}
		})
	}
}

func TestEvaluate_EmptyMessageIsUnknown(t *testing.T) {
	rec := &model.LogRecord{Level: model.LevelInfo, Data: map[string]any{}}
	if got := Evaluate(MessageContains{Term: "x"}, rec); got != Unknown {
		t.Errorf("Evaluate on empty message = %v, want Unknown", got)
	}
	if Matches(MessageContains{Term: "x"}, rec) {
		t.Error("Matches on empty message = true, want false")
	}
}
