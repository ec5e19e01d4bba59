package rql

import (
	"context"
	"time"

	"github.com/brainz-lab/recall/internal/model"
)

// Direction is a timestamp sort order.
type Direction int

const (
	Descending Direction = iota
	Ascending
)

// Bucket truncates timestamps for time-based grouping.
type Bucket int

const (
	BucketNone Bucket = iota
	BucketHour
	BucketDay
)

// Duration returns the bucket width.
func (b Bucket) Duration() time.Duration {
	switch b {
	case BucketHour:
		return time.Hour
	case BucketDay:
		return 24 * time.Hour
	}
	return 0
}

// Grouping selects what GroupCount groups by: a record column, or a time
// bucket when Bucket is set. Absent column values group under "".
// Bucket keys are the UTC bucket start formatted as RFC 3339.
type Grouping struct {
	Field  string
	Bucket Bucket
}

// Key formats the start of the bucket containing ts.
func (b Bucket) Key(ts time.Time) string {
	return ts.UTC().Truncate(b.Duration()).Format(time.RFC3339)
}

// View is a composable, read-only view over stored records. Each method
// returns a new view and leaves the receiver unchanged.
type View interface {
	Filter(p Predicate) View
	Exclude(p Predicate) View
	OrderByTimestamp(dir Direction) View
	Limit(n int) View

	Records(ctx context.Context) ([]model.LogRecord, error)
	Count(ctx context.Context) (int64, error)
	GroupCount(ctx context.Context, g Grouping) (map[string]int64, error)
}

// Source opens a view over every record a store holds.
type Source interface {
	View() View
}
