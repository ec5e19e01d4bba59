// Package memstore keeps log records in memory and evaluates RQL views over
// them. It backs offline queries over NDJSON files and serves as the
// reference evaluator for the query language.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/brainz-lab/recall/internal/model"
	"github.com/brainz-lab/recall/internal/rql"
)

// Store is an in-memory record store safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records []model.LogRecord
}

// New returns a store holding copies of records.
func New(records ...model.LogRecord) *Store {
	s := &Store{}
	for i := range records {
		s.records = append(s.records, cloneRecord(records[i]))
	}
	return s
}

// InsertLogBatch appends records.
func (s *Store) InsertLogBatch(records []*model.LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records = append(s.records, cloneRecord(*r))
	}
	return nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// View returns an unfiltered view over all records.
func (s *Store) View() rql.View {
	return view{store: s, limit: -1}
}

type step struct {
	pred    rql.Predicate
	exclude bool
}

// view is immutable; every method returns a modified copy.
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

func (v view) Filter(p rql.Predicate) rql.View {
	return v.with(step{pred: p})
}

func (v view) Exclude(p rql.Predicate) rql.View {
	return v.with(step{pred: p, exclude: true})
}

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

// keep applies filter steps the way SQL WHERE does: Filter keeps true,
// Exclude keeps false, and unknown is dropped by both.
func (v view) keep(r *model.LogRecord) bool {
	for _, st := range v.steps {
		t := rql.Evaluate(st.pred, r)
		if st.exclude && t != rql.False {
			return false
		}
		if !st.exclude && t != rql.True {
			return false
		}
	}
	return true
}

func (v view) matching(ctx context.Context) ([]model.LogRecord, error) {
	v.store.mu.RLock()
	var out []model.LogRecord
	for i := range v.store.records {
		if v.keep(&v.store.records[i]) {
			out = append(out, v.store.records[i])
		}
	}
	v.store.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if v.ordered {
		asc := v.dir == rql.Ascending
		sort.SliceStable(out, func(i, j int) bool {
			if asc {
				return out[i].Timestamp.Before(out[j].Timestamp)
			}
			return out[i].Timestamp.After(out[j].Timestamp)
		})
	}
	if v.limit >= 0 && len(out) > v.limit {
		out = out[:v.limit]
	}
	return out, nil
}

func (v view) Records(ctx context.Context) ([]model.LogRecord, error) {
	matched, err := v.matching(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.LogRecord, len(matched))
	for i := range matched {
		out[i] = cloneRecord(matched[i])
	}
	return out, nil
}

func (v view) Count(ctx context.Context) (int64, error) {
	matched, err := v.matching(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

func (v view) GroupCount(ctx context.Context, g rql.Grouping) (map[string]int64, error) {
	matched, err := v.matching(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for i := range matched {
		var key string
		if g.Bucket != rql.BucketNone {
			key = g.Bucket.Key(matched[i].Timestamp)
		} else {
			key, _ = matched[i].Column(g.Field)
		}
		counts[key]++
	}
	return counts, nil
}

// cloneRecord copies r deeply enough that callers cannot mutate stored data.
func cloneRecord(r model.LogRecord) model.LogRecord {
	r.Data = cloneMap(r.Data)
	if r.Data == nil {
		r.Data = map[string]any{}
	}
	return r
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = cloneValue(val[i])
		}
		return out
	}
	return v
}
