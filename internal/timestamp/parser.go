package timestamp

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// layouts are tried in order. Fractional seconds after the seconds field
// are accepted by time.Parse even when the layout omits them.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 MST",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	time.RFC1123Z,
	time.RFC1123,
	time.UnixDate,
	time.ANSIC,
	"Jan 2 2006 15:04:05",
	"Jan 2, 2006 15:04:05",
	"Jan 2 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"January 2, 2006",
	"2 Jan 2006 15:04:05",
	"2 Jan 2006",
	"2 January 2006",
}

// Parse reads an absolute timestamp. Values without a zone are taken as UTC.
// The result is always in UTC.
func Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// FromValue converts a decoded JSON value into a timestamp. Strings go through
// Parse (falling back to a numeric epoch), numbers are read as Unix epochs
// whose unit is inferred from magnitude.
func FromValue(v any) (time.Time, bool) {
	switch val := v.(type) {
	case string:
		if ts, ok := Parse(val); ok {
			return ts, true
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return fromEpoch(f)
		}
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return fromEpoch(f)
		}
	case float64:
		return fromEpoch(val)
	case int64:
		return fromEpoch(float64(val))
	case int:
		return fromEpoch(float64(val))
	case time.Time:
		if !val.IsZero() {
			return val.UTC(), true
		}
	}
	return time.Time{}, false
}

// fromEpoch infers seconds, milliseconds, microseconds or nanoseconds.
func fromEpoch(f float64) (time.Time, bool) {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	switch {
	case f < 1e11:
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
	case f < 1e14:
		return time.UnixMilli(int64(f)).UTC(), true
	case f < 1e17:
		return time.UnixMicro(int64(f)).UTC(), true
	default:
		return time.Unix(0, int64(f)).UTC(), true
	}
}
