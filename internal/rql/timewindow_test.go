package rql

import (
	"testing"
	"time"
)

func fixedResolver(now time.Time) Resolver {
	return Resolver{Now: func() time.Time { return now }}
}

func TestResolve_Relative(t *testing.T) {
	now := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
	r := fixedResolver(now)

	tests := []struct {
		input string
		want  time.Duration
	}{
		{"30m", 30 * time.Minute},
		{"2h", 2 * time.Hour},
		{"7d", 7 * 24 * time.Hour},
		{"2w", 14 * 24 * time.Hour},
		{"0m", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := r.Resolve(tt.input)
			if want := now.Add(-tt.want); !got.Equal(want) {
				t.Errorf("Resolve(%q) = %v, want %v", tt.input, got, want)
			}
		})
	}
}

func TestResolve_Absolute(t *testing.T) {
	r := fixedResolver(time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC))

	got := r.Resolve("2024-01-15T10:30:00Z")
	if want := time.Date(2024, time.January, 15, 10, 30, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("Resolve(RFC3339) = %v, want %v", got, want)
	}

	got = r.Resolve("2024-01-15")
	if want := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("Resolve(date) = %v, want %v", got, want)
	}
}

func TestResolve_FallsBackToOneHour(t *testing.T) {
	now := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
	r := fixedResolver(now)

	for _, input := range []string{"", "yesterday", "5y", "h", "-3h", "3H", " 3h", "1.5h"} {
		if got, want := r.Resolve(input), now.Add(-time.Hour); !got.Equal(want) {
			t.Errorf("Resolve(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestResolve_HugeCountSaturates(t *testing.T) {
	now := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
	got := fixedResolver(now).Resolve("99999999999999999999w")
	if !got.Before(now.AddDate(-200, 0, 0)) {
		t.Errorf("Resolve(huge) = %v, want far in the past", got)
	}
}

func TestResolve_DefaultClockIsNearNow(t *testing.T) {
	got := Resolver{}.Resolve("24h")
	want := time.Now().Add(-24 * time.Hour)
	if diff := got.Sub(want); diff < -5*time.Second || diff > 5*time.Second {
		t.Errorf("Resolve(24h) off by %v", diff)
	}
}

func TestParseWindow(t *testing.T) {
	r := fixedResolver(time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC))

	if _, ok := r.ParseWindow("3d"); !ok {
		t.Error("ParseWindow(3d) not ok")
	}
	if _, ok := r.ParseWindow("2024-06-01"); !ok {
		t.Error("ParseWindow(date) not ok")
	}
	if _, ok := r.ParseWindow("garbage"); ok {
		t.Error("ParseWindow(garbage) ok, want not ok")
	}
}
