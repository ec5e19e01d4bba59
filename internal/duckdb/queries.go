package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/brainz-lab/recall/internal/model"
	"github.com/brainz-lab/recall/internal/rql"
)

// LogByID returns a single record, or ErrNotFound.
func (s *Store) LogByID(ctx context.Context, id string) (*model.LogRecord, error) {
	var rec *model.LogRecord
	err := s.read(ctx, func(ctx context.Context, db *sql.DB) error {
		row := db.QueryRowContext(ctx, "SELECT "+logColumns+" FROM logs WHERE id = ?", id)
		var err error
		rec, err = scanRecord(row)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("log %s: %w", id, ErrNotFound)
	}
	return rec, err
}

// TotalLogCount returns the number of stored records.
func (s *Store) TotalLogCount(ctx context.Context) (int64, error) {
	return s.View().Count(ctx)
}

// sessionSelect aggregates per session. Level counts use one FILTER
// clause per known level.
func sessionSelect() string {
	var b strings.Builder
	b.WriteString(`SELECT session_id, COUNT(*), MIN("timestamp"), MAX("timestamp")`)
	for _, lvl := range model.Levels {
		fmt.Fprintf(&b, ", COUNT(*) FILTER (WHERE level = %s)", quoteLiteral(string(lvl)))
	}
	b.WriteString(" FROM logs")
	return b.String()
}

func scanSession(row rowScanner) (*model.SessionSummary, error) {
	var sum model.SessionSummary
	levelCounts := make([]int64, len(model.Levels))
	dest := []any{&sum.SessionID, &sum.LogCount, &sum.FirstLog, &sum.LastLog}
	for i := range levelCounts {
		dest = append(dest, &levelCounts[i])
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	sum.FirstLog = sum.FirstLog.UTC()
	sum.LastLog = sum.LastLog.UTC()
	sum.LevelCounts = make(map[string]int64)
	for i, lvl := range model.Levels {
		if levelCounts[i] > 0 {
			sum.LevelCounts[string(lvl)] = levelCounts[i]
		}
	}
	return &sum, nil
}

// ListSessions returns the most recently active sessions first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]model.SessionSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	query := sessionSelect() + ` WHERE session_id IS NOT NULL GROUP BY session_id ORDER BY MAX("timestamp") DESC LIMIT ?`

	var out []model.SessionSummary
	err := s.read(ctx, func(ctx context.Context, db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			sum, err := scanSession(rows)
			if err != nil {
				log.Printf("duckdb scan error (ListSessions): %v", err)
				continue
			}
			out = append(out, *sum)
		}
		return rows.Err()
	})
	return out, err
}

// SessionSummary aggregates one session, or returns ErrNotFound when it
// has no records.
func (s *Store) SessionSummary(ctx context.Context, sessionID string) (*model.SessionSummary, error) {
	query := sessionSelect() + " WHERE session_id = ? GROUP BY session_id"

	var sum *model.SessionSummary
	err := s.read(ctx, func(ctx context.Context, db *sql.DB) error {
		var err error
		sum, err = scanSession(db.QueryRowContext(ctx, query, sessionID))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	return sum, err
}

// SessionLogs returns a session's records oldest first, optionally
// restricted to one level.
func (s *Store) SessionLogs(ctx context.Context, sessionID string, level model.Level, limit int) ([]model.LogRecord, error) {
	if limit <= 0 {
		limit = model.DefaultSessionLimit
	}
	v := s.View().Filter(rql.FieldEquals{Field: model.ColumnSessionID, Value: sessionID})
	if level != "" {
		v = v.Filter(rql.FieldIn{Field: model.ColumnLevel, Values: []string{string(level)}})
	}
	records, err := v.OrderByTimestamp(rql.Ascending).Limit(limit).Records(ctx)
	if records == nil && err == nil {
		records = []model.LogRecord{}
	}
	return records, err
}

// DeleteSession removes every record of a session and reports how many
// were deleted.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) (int64, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM logs WHERE session_id = ?", sessionID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
