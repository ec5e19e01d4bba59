package model

import (
	"context"
	"errors"
)

// ErrNotFound is returned by store lookups that match nothing.
var ErrNotFound = errors.New("not found")

// LogWriter provides append-oriented write operations for ingested logs.
type LogWriter interface {
	InsertLogBatch(records []*LogRecord) error
}

// LogLookup provides direct record access outside the query language.
type LogLookup interface {
	LogByID(ctx context.Context, id string) (*LogRecord, error)
	TotalLogCount(ctx context.Context) (int64, error)
}

// SessionStore provides the session views used by the HTTP API and MCP tools.
type SessionStore interface {
	ListSessions(ctx context.Context, limit int) ([]SessionSummary, error)
	SessionSummary(ctx context.Context, sessionID string) (*SessionSummary, error)
	SessionLogs(ctx context.Context, sessionID string, level Level, limit int) ([]LogRecord, error)
	DeleteSession(ctx context.Context, sessionID string) (int64, error)
}
