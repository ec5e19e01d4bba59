package model

import "time"

// Level is the severity of a log record.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

// Levels lists every valid level in ascending severity.
var Levels = []Level{LevelDebug, LevelInfo, LevelWarn, LevelError, LevelFatal}

// Valid reports whether l is one of the five known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelDebug, LevelInfo, LevelWarn, LevelError, LevelFatal:
		return true
	}
	return false
}

// Column names shared by the stores, the query engine and export.
const (
	ColumnLevel       = "level"
	ColumnCommit      = "commit"
	ColumnBranch      = "branch"
	ColumnEnvironment = "environment"
	ColumnService     = "service"
	ColumnHost        = "host"
	ColumnRequestID   = "request_id"
	ColumnSessionID   = "session_id"
)

// LogRecord represents a single log entry used across the system.
// Optional string attributes are absent when empty.
type LogRecord struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	Level       Level          `json:"level"`
	Message     string         `json:"message,omitempty"`
	Commit      string         `json:"commit,omitempty"`
	Branch      string         `json:"branch,omitempty"`
	Environment string         `json:"environment,omitempty"`
	Service     string         `json:"service,omitempty"`
	Host        string         `json:"host,omitempty"`
	RequestID   string         `json:"request_id,omitempty"`
	SessionID   string         `json:"session_id,omitempty"`
	Data        map[string]any `json:"data"`
}

// Column returns the value of a named scalar column and whether it is present.
func (r *LogRecord) Column(name string) (string, bool) {
	var v string
	switch name {
	case ColumnLevel:
		v = string(r.Level)
	case ColumnCommit:
		v = r.Commit
	case ColumnBranch:
		v = r.Branch
	case ColumnEnvironment:
		v = r.Environment
	case ColumnService:
		v = r.Service
	case ColumnHost:
		v = r.Host
	case ColumnRequestID:
		v = r.RequestID
	case ColumnSessionID:
		v = r.SessionID
	default:
		return "", false
	}
	return v, v != ""
}

// SessionSummary aggregates the records of one session.
type SessionSummary struct {
	SessionID   string           `json:"session_id"`
	LogCount    int64            `json:"log_count"`
	FirstLog    time.Time        `json:"first_log"`
	LastLog     time.Time        `json:"last_log"`
	LevelCounts map[string]int64 `json:"levels"`
}
