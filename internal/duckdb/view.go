package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/brainz-lab/recall/internal/model"
	"github.com/brainz-lab/recall/internal/rql"
)

// View returns an unfiltered query view over the logs table. Filters
// compile to a single SELECT when the view is read.
func (s *Store) View() rql.View {
	return view{store: s, limit: -1}
}

type step struct {
	pred    rql.Predicate
	exclude bool
}

type view struct {
	store   *Store
	steps   []step
	ordered bool
	dir     rql.Direction
	limit   int
}

func (v view) with(st step) view {
	steps := make([]step, len(v.steps), len(v.steps)+1)
	copy(steps, v.steps)
	v.steps = append(steps, st)
	return v
}

func (v view) Filter(p rql.Predicate) rql.View  { return v.with(step{pred: p}) }
func (v view) Exclude(p rql.Predicate) rql.View { return v.with(step{pred: p, exclude: true}) }

func (v view) OrderByTimestamp(dir rql.Direction) rql.View {
	v.ordered = true
	v.dir = dir
	return v
}

func (v view) Limit(n int) rql.View {
	if n < 0 {
		n = 0
	}
	v.limit = n
	return v
}

// where renders the filter steps. Exclude wraps its condition in NOT, so
// rows where it is NULL are dropped the same way Filter drops them.
func (v view) where() (string, []any) {
	if len(v.steps) == 0 {
		return "", nil
	}
	var (
		parts []string
		args  []any
	)
	for _, st := range v.steps {
		cond, a := compile(st.pred)
		if st.exclude {
			cond = "NOT (" + cond + ")"
		}
		parts = append(parts, "("+cond+")")
		args = append(args, a...)
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

// tail renders ORDER BY and LIMIT. rowid breaks timestamp ties in
// insertion order.
func (v view) tail() (string, []any) {
	var b strings.Builder
	var args []any
	if v.ordered {
		if v.dir == rql.Ascending {
			b.WriteString(` ORDER BY "timestamp" ASC, rowid ASC`)
		} else {
			b.WriteString(` ORDER BY "timestamp" DESC, rowid ASC`)
		}
	}
	if v.limit >= 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, v.limit)
	}
	return b.String(), args
}

func (v view) selectFrom(cols string) (string, []any) {
	where, args := v.where()
	tail, tArgs := v.tail()
	return "SELECT " + cols + " FROM logs" + where + tail, append(args, tArgs...)
}

func (v view) Records(ctx context.Context) ([]model.LogRecord, error) {
	query, args := v.selectFrom(logColumns)
	var out []model.LogRecord
	err := v.store.read(ctx, func(ctx context.Context, db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				log.Printf("duckdb scan error (Records): %v", err)
				continue
			}
			out = append(out, *rec)
		}
		return rows.Err()
	})
	return out, err
}

func (v view) Count(ctx context.Context) (int64, error) {
	var query string
	var args []any
	if v.limit >= 0 {
		inner, a := v.selectFrom("1")
		query, args = "SELECT COUNT(*) FROM ("+inner+")", a
	} else {
		where, a := v.where()
		query, args = "SELECT COUNT(*) FROM logs"+where, a
	}

	var n int64
	err := v.store.read(ctx, func(ctx context.Context, db *sql.DB) error {
		return db.QueryRowContext(ctx, query, args...).Scan(&n)
	})
	return n, err
}

func (v view) GroupCount(ctx context.Context, g rql.Grouping) (map[string]int64, error) {
	if g.Bucket != rql.BucketNone {
		return v.bucketCount(ctx, g.Bucket)
	}

	key := "''"
	if filterColumns[g.Field] {
		key = fmt.Sprintf("COALESCE(%s, '')", quoteIdent(g.Field))
	}
	inner, args := v.selectFrom(key + " AS k")
	query := "SELECT k, COUNT(*) FROM (" + inner + ") GROUP BY k"

	counts := make(map[string]int64)
	err := v.store.read(ctx, func(ctx context.Context, db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var k string
			var n int64
			if err := rows.Scan(&k, &n); err != nil {
				log.Printf("duckdb scan error (GroupCount): %v", err)
				continue
			}
			counts[k] += n
		}
		return rows.Err()
	})
	return counts, err
}

func (v view) bucketCount(ctx context.Context, b rql.Bucket) (map[string]int64, error) {
	unit := "hour"
	if b == rql.BucketDay {
		unit = "day"
	}
	inner, args := v.selectFrom(fmt.Sprintf(`date_trunc('%s', "timestamp") AS k`, unit))
	query := "SELECT k, COUNT(*) FROM (" + inner + ") GROUP BY k"

	counts := make(map[string]int64)
	err := v.store.read(ctx, func(ctx context.Context, db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var k time.Time
			var n int64
			if err := rows.Scan(&k, &n); err != nil {
				log.Printf("duckdb scan error (bucketCount): %v", err)
				continue
			}
			counts[b.Key(k)] += n
		}
		return rows.Err()
	})
	return counts, err
}

// read runs fn under a read slot with the store's query timeout applied.
func (s *Store) read(parent context.Context, fn func(ctx context.Context, db *sql.DB) error) error {
	ctx, cancel := s.queryCtx(parent)
	defer cancel()

	release, err := s.beginRead(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx, s.db)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one row selected with logColumns.
func scanRecord(row rowScanner) (*model.LogRecord, error) {
	var (
		r                                                  model.LogRecord
		level                                              string
		message, commit, branch, env, service, host, reqID sql.NullString
		sessionID, data                                    sql.NullString
	)
	if err := row.Scan(&r.ID, &r.Timestamp, &level, &message, &commit, &branch,
		&env, &service, &host, &reqID, &sessionID, &data); err != nil {
		return nil, err
	}
	r.Timestamp = r.Timestamp.UTC()
	r.Level = model.Level(level)
	r.Message = message.String
	r.Commit = commit.String
	r.Branch = branch.String
	r.Environment = env.String
	r.Service = service.String
	r.Host = host.String
	r.RequestID = reqID.String
	r.SessionID = sessionID.String
	r.Data = map[string]any{}
	if data.Valid && data.String != "" {
		if err := json.Unmarshal([]byte(data.String), &r.Data); err != nil {
			return nil, fmt.Errorf("decode data for %s: %w", r.ID, err)
		}
		if r.Data == nil {
			r.Data = map[string]any{}
		}
	}
	return &r, nil
}
