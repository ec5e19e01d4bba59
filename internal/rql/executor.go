package rql

import (
	"context"

	"github.com/brainz-lab/recall/internal/model"
)

// Result holds either the matching records or, for stats queries, the
// aggregate. Exactly one of Records and Stats is meaningful.
type Result struct {
	Records []model.LogRecord
	Stats   *Stats
}

// Aggregated reports whether the result came from a stats command.
func (r *Result) Aggregated() bool { return r.Stats != nil }

// Executor runs parsed queries against a store view. It never writes.
type Executor struct {
	// DefaultLimit applies when neither the query nor the caller sets one.
	DefaultLimit int
}

// NewExecutor returns an executor with the standard default limit.
func NewExecutor() *Executor {
	return &Executor{DefaultLimit: model.DefaultLimit}
}

// Execute runs q against v. limit is the caller's override and is used when
// the query has no first/last command; zero or less means none. Errors are
// always *StoreError.
func (e *Executor) Execute(ctx context.Context, v View, q *Query, limit int) (*Result, error) {
	filtered := q.apply(v)

	if cmd, ok := q.commands.Find(CommandStats); ok {
		stats, err := Aggregate(ctx, filtered, cmd)
		if err != nil {
			return nil, err
		}
		return &Result{Stats: stats}, nil
	}

	records, err := filtered.
		OrderByTimestamp(q.commands.Direction()).
		Limit(e.limit(q, limit)).
		Records(ctx)
	if err != nil {
		return nil, storeError("records", err)
	}
	if records == nil {
		records = []model.LogRecord{}
	}
	return &Result{Records: records}, nil
}

// Count returns how many records q's filter matches, ignoring commands.
func (e *Executor) Count(ctx context.Context, v View, q *Query) (int64, error) {
	n, err := q.apply(v).Count(ctx)
	return n, storeError("count", err)
}

// limit resolves the effective limit: command, then override, then default.
func (e *Executor) limit(q *Query, override int) int {
	if n, ok := q.commands.Limit(); ok {
		return n
	}
	if override > 0 {
		return override
	}
	if e.DefaultLimit > 0 {
		return e.DefaultLimit
	}
	return model.DefaultLimit
}
