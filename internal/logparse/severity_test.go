package logparse

import (
	"testing"

	"github.com/brainz-lab/recall/internal/model"
)

func TestNormalizeLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected model.Level
	}{
		// Standard forms
		{"debug", model.LevelDebug}, {"info", model.LevelInfo}, {"warn", model.LevelWarn},
		{"error", model.LevelError}, {"fatal", model.LevelFatal},
		// Trace has no level of its own
		{"TRACE", model.LevelDebug}, {"trc", model.LevelDebug},
		// Variants
		{"DBG", model.LevelDebug}, {"INFORMATION", model.LevelInfo}, {"notice", model.LevelInfo},
		{"WARNING", model.LevelWarn}, {"WRN", model.LevelWarn},
		{"ERR", model.LevelError}, {"ERRO", model.LevelError},
		{"CRITICAL", model.LevelFatal}, {"panic", model.LevelFatal}, {"emergency", model.LevelFatal},
		// Prefix matching
		{"WARNING_LEVEL", model.LevelWarn}, {"ERROR_CODE_42", model.LevelError},
		{"CRITICAL_ALERT", model.LevelFatal},
		// Unknown defaults to info
		{"", model.LevelInfo}, {"UNKNOWN", model.LevelInfo}, {"foo", model.LevelInfo},
		// Whitespace
		{"  ERROR  ", model.LevelError}, {"\twarn\t", model.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := NormalizeLevel(tt.input)
			if got != tt.expected {
				t.Errorf("NormalizeLevel(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNumberToLevel(t *testing.T) {
	tests := []struct {
		input    int
		expected model.Level
	}{
		{10, model.LevelDebug}, {20, model.LevelDebug}, {30, model.LevelInfo},
		{40, model.LevelWarn}, {50, model.LevelError}, {60, model.LevelFatal},
		{45, model.LevelWarn}, {99, model.LevelFatal}, {0, model.LevelDebug},
	}

	for _, tt := range tests {
		if got := NumberToLevel(tt.input); got != tt.expected {
			t.Errorf("NumberToLevel(%d) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestSeverityNumberToLevel(t *testing.T) {
	tests := []struct {
		input    int32
		expected model.Level
	}{
		{0, model.LevelInfo}, {1, model.LevelDebug}, {5, model.LevelDebug},
		{9, model.LevelInfo}, {13, model.LevelWarn}, {17, model.LevelError},
		{20, model.LevelError}, {21, model.LevelFatal}, {24, model.LevelFatal},
	}

	for _, tt := range tests {
		if got := SeverityNumberToLevel(tt.input); got != tt.expected {
			t.Errorf("SeverityNumberToLevel(%d) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
