package rql

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
)

// jsonText matches the text the DuckDB store reads back for nested values:
// sorted keys, no HTML escaping.
var jsonText = &ojg.Options{Sort: true, HTMLUnsafe: true}

// Predicate is a closed set of conditions a store knows how to evaluate.
// The implementations are FieldIn, FieldEquals, TimeBound, DataEquals,
// DataGlob, DataCompare, MessageContains, Not, All, Any and MatchNone.
type Predicate interface {
	isPredicate()
}

// FieldIn holds when a column's value is one of Values. An empty Values
// matches nothing.
type FieldIn struct {
	Field  string
	Values []string
}

// FieldEquals holds when a column is present and equal to Value.
type FieldEquals struct {
	Field string
	Value string
}

// BoundOp is the direction of a TimeBound.
type BoundOp int

const (
	AtOrAfter BoundOp = iota
	AtOrBefore
)

// TimeBound limits records to one side of an instant, inclusive.
type TimeBound struct {
	Op BoundOp
	At time.Time
}

// DataEquals holds when the value at Path, stringified, equals Value.
type DataEquals struct {
	Path  DataPath
	Value string
}

// DataGlob holds when the stringified value at Path matches Pattern in
// full, where * matches any run of characters. Matching is case-sensitive.
type DataGlob struct {
	Path    DataPath
	Pattern string
}

// CompareOp is a numeric comparison operator.
type CompareOp string

const (
	OpGreater      CompareOp = ">"
	OpGreaterEqual CompareOp = ">="
	OpLess         CompareOp = "<"
	OpLessEqual    CompareOp = "<="
)

// DataCompare holds when the value at Path reads as a number and compares
// true against Operand.
type DataCompare struct {
	Path    DataPath
	Op      CompareOp
	Operand float64
}

// MessageContains holds when the message contains Term, ignoring case.
type MessageContains struct {
	Term string
}

// Not negates Inner. An unknown inner result stays unknown.
type Not struct {
	Inner Predicate
}

// All is a conjunction. An empty All matches everything.
type All []Predicate

// Any is a disjunction. An empty Any matches nothing.
type Any []Predicate

// MatchNone matches no record.
type MatchNone struct{}

func (FieldIn) isPredicate()         {}
func (FieldEquals) isPredicate()     {}
func (TimeBound) isPredicate()       {}
func (DataEquals) isPredicate()      {}
func (DataGlob) isPredicate()        {}
func (DataCompare) isPredicate()     {}
func (MessageContains) isPredicate() {}
func (Not) isPredicate()             {}
func (All) isPredicate()             {}
func (Any) isPredicate()             {}
func (MatchNone) isPredicate()       {}

// Compare applies op to a and b.
func (op CompareOp) Compare(a, b float64) bool {
	switch op {
	case OpGreater:
		return a > b
	case OpGreaterEqual:
		return a >= b
	case OpLess:
		return a < b
	case OpLessEqual:
		return a <= b
	}
	return false
}

// DataPath addresses a value inside a record's data tree.
type DataPath []string

func parseDataPath(field string) DataPath {
	return DataPath(strings.Split(strings.TrimPrefix(field, dataPrefix), "."))
}

// String returns the path as written in a query.
func (p DataPath) String() string {
	return dataPrefix + strings.Join(p, ".")
}

// Pointer returns the path as an RFC 6901 JSON pointer.
func (p DataPath) Pointer() string {
	var b strings.Builder
	for _, seg := range p {
		b.WriteByte('/')
		seg = strings.ReplaceAll(seg, "~", "~0")
		b.WriteString(strings.ReplaceAll(seg, "/", "~1"))
	}
	return b.String()
}

// Lookup walks data along the path. Objects are entered by key and arrays
// by decimal index. A missing step or a JSON null yields ok == false.
func (p DataPath) Lookup(data map[string]any) (value any, ok bool) {
	var cur any = data
	for _, seg := range p {
		switch node := cur.(type) {
		case map[string]any:
			cur, ok = node[seg]
			if !ok {
				return nil, false
			}
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// Stringify renders a data value the way it compares in equality and glob
// filters: strings as-is, numbers as encoding/json writes them, objects and
// arrays as compact JSON.
func Stringify(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case float64:
		return formatFloat(val, 64), true
	case float32:
		return formatFloat(float64(val), 32), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case json.Number:
		return val.String(), true
	default:
		b, err := oj.Marshal(val, jsonText)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}

// formatFloat uses exponent form outside [1e-6, 1e21) and drops the leading
// zero of a two-digit negative exponent, like encoding/json.
func formatFloat(f float64, bits int) string {
	format := byte('f')
	if abs := math.Abs(f); abs != 0 {
		if bits == 64 && (abs < 1e-6 || abs >= 1e21) ||
			bits == 32 && (float32(abs) < 1e-6 || float32(abs) >= 1e21) {
			format = 'e'
		}
	}
	b := strconv.AppendFloat(nil, f, format, -1, bits)
	if format == 'e' {
		n := len(b)
		if n >= 4 && b[n-4] == 'e' && b[n-3] == '-' && b[n-2] == '0' {
			b[n-2] = b[n-1]
			b = b[:n-1]
		}
	}
	return string(b)
}

// Numeric reads a data value as a number. Numeric strings count; booleans,
// objects and other strings do not.
func Numeric(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	}
	return 0, false
}
