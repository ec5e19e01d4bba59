package logparse

import (
	"strings"

	"github.com/brainz-lab/recall/internal/model"
)

// NormalizeLevel converts the many spellings producers use for severity into
// one of the five stored levels. Trace collapses into debug and anything
// unrecognised becomes info.
func NormalizeLevel(severity string) model.Level {
	normalized := strings.ToUpper(strings.TrimSpace(severity))

	switch normalized {
	case "TRACE", "TRAC", "TRC", "DEBUG", "DEBU", "DBG", "DEB":
		return model.LevelDebug
	case "INFO", "INFORMATION", "INF", "NOTICE":
		return model.LevelInfo
	case "WARN", "WARNING", "WRNG", "WRN":
		return model.LevelWarn
	case "ERROR", "ERR", "ERRO":
		return model.LevelError
	case "FATAL", "FATL", "FTL", "CRITICAL", "CRIT", "CRT", "PANIC", "PNC", "EMERGENCY", "ALERT":
		return model.LevelFatal
	default:
		if len(normalized) >= 4 {
			switch normalized[:4] {
			case "INFO":
				return model.LevelInfo
			case "WARN":
				return model.LevelWarn
			case "ERRO":
				return model.LevelError
			case "DEBU", "TRAC":
				return model.LevelDebug
			case "FATA", "CRIT":
				return model.LevelFatal
			}
		}
		return model.LevelInfo
	}
}

// NumberToLevel converts pino/bunyan numeric levels (10..60) to a level.
func NumberToLevel(level int) model.Level {
	switch {
	case level < 30:
		return model.LevelDebug
	case level < 40:
		return model.LevelInfo
	case level < 50:
		return model.LevelWarn
	case level < 60:
		return model.LevelError
	default:
		return model.LevelFatal
	}
}

// SeverityNumberToLevel maps an OpenTelemetry SeverityNumber (1..24) to a level.
// Zero means unspecified and maps to info.
func SeverityNumberToLevel(n int32) model.Level {
	switch {
	case n <= 0:
		return model.LevelInfo
	case n <= 8:
		return model.LevelDebug
	case n <= 12:
		return model.LevelInfo
	case n <= 16:
		return model.LevelWarn
	case n <= 20:
		return model.LevelError
	default:
		return model.LevelFatal
	}
}
