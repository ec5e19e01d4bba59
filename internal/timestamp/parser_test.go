package timestamp

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParse_Layouts(t *testing.T) {
	want := time.Date(2024, time.January, 15, 10, 30, 45, 0, time.UTC)

	tests := []struct {
		name  string
		input string
	}{
		{"RFC3339", "2024-01-15T10:30:45Z"},
		{"RFC3339 offset", "2024-01-15T12:30:45+02:00"},
		{"space separated", "2024-01-15 10:30:45"},
		{"T separated no zone", "2024-01-15T10:30:45"},
		{"surrounding whitespace", "  2024-01-15 10:30:45  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, ok := Parse(tt.input)
			if !ok {
				t.Fatalf("Parse(%q) failed", tt.input)
			}
			if !ts.Equal(want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, ts, want)
			}
			if ts.Location() != time.UTC {
				t.Errorf("Parse(%q) location = %v, want UTC", tt.input, ts.Location())
			}
		})
	}
}

func TestParse_Fractional(t *testing.T) {
	ts, ok := Parse("2024-01-15 10:30:45.123")
	if !ok {
		t.Fatal("fractional seconds not parsed")
	}
	if ts.Nanosecond() != 123000000 {
		t.Errorf("nanoseconds = %d, want 123000000", ts.Nanosecond())
	}
}

func TestParse_DateOnly(t *testing.T) {
	ts, ok := Parse("2024-03-01")
	if !ok {
		t.Fatal("date-only not parsed")
	}
	if !ts.Equal(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date-only = %v, want 2024-03-01T00:00:00Z", ts)
	}
}

func TestParse_WrittenDates(t *testing.T) {
	date := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	withTime := time.Date(2024, time.January, 15, 10, 30, 45, 0, time.UTC)

	tests := []struct {
		input string
		want  time.Time
	}{
		{"2024/01/15", date},
		{"2024/01/15 10:30:45", withTime},
		{"Jan 15 2024", date},
		{"Jan 15, 2024", date},
		{"January 15, 2024", date},
		{"15 Jan 2024", date},
		{"15 January 2024", date},
		{"Jan 15 2024 10:30:45", withTime},
		{"Mon Jan 15 10:30:45 2024", withTime},
		{"Mon Jan 15 10:30:45 UTC 2024", withTime},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ts, ok := Parse(tt.input)
			if !ok {
				t.Fatalf("Parse(%q) failed", tt.input)
			}
			if !ts.Equal(tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, ts, tt.want)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, input := range []string{"", "yesterday", "2024-13-45", "1h", "abc123"} {
		if _, ok := Parse(input); ok {
			t.Errorf("Parse(%q) should fail", input)
		}
	}
}

func TestFromValue_Epochs(t *testing.T) {
	tests := []struct {
		name  string
		input any
		year  int
	}{
		{"seconds float", float64(946684800), 2000},
		{"seconds int64", int64(946684800), 2000},
		{"millis", float64(1600000000000), 2020},
		{"micros", float64(1600000000000000), 2020},
		{"nanos", float64(1600000000000000000), 2020},
		{"json number", json.Number("946684800"), 2000},
		{"numeric string", "946684800", 2000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, ok := FromValue(tt.input)
			if !ok {
				t.Fatalf("FromValue(%v) failed", tt.input)
			}
			if ts.Year() != tt.year {
				t.Errorf("FromValue(%v) year = %d, want %d", tt.input, ts.Year(), tt.year)
			}
		})
	}
}

func TestFromValue_Rejects(t *testing.T) {
	for _, input := range []any{nil, "", "not a time", float64(-1), true, map[string]any{}} {
		if _, ok := FromValue(input); ok {
			t.Errorf("FromValue(%v) should fail", input)
		}
	}
}
