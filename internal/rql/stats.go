package rql

import (
	"context"
	"encoding/json"

	"github.com/brainz-lab/recall/internal/model"
)

// Stats is the result of a stats command. Grouped results carry Groups;
// the ungrouped form carries Total and ByLevel.
type Stats struct {
	Dimension Dimension
	Groups    map[string]int64
	Total     int64
	ByLevel   map[string]int64
}

// MarshalJSON renders grouped stats as a plain key→count object and the
// ungrouped form as {"total": n, "by_level": {...}}.
func (s Stats) MarshalJSON() ([]byte, error) {
	if s.Dimension != DimensionNone {
		groups := s.Groups
		if groups == nil {
			groups = map[string]int64{}
		}
		return json.Marshal(groups)
	}
	byLevel := s.ByLevel
	if byLevel == nil {
		byLevel = map[string]int64{}
	}
	return json.Marshal(struct {
		Total   int64            `json:"total"`
		ByLevel map[string]int64 `json:"by_level"`
	}{s.Total, byLevel})
}

// grouping maps a dimension onto a store grouping.
func (d Dimension) grouping() Grouping {
	switch d {
	case DimensionLevel:
		return Grouping{Field: model.ColumnLevel}
	case DimensionCommit:
		return Grouping{Field: model.ColumnCommit}
	case DimensionEnvironment:
		return Grouping{Field: model.ColumnEnvironment}
	case DimensionHour:
		return Grouping{Bucket: BucketHour}
	case DimensionDay:
		return Grouping{Bucket: BucketDay}
	}
	return Grouping{}
}

// Aggregate counts the records of v per the dimension of a stats command.
// Buckets and groups without records are absent from the result.
func Aggregate(ctx context.Context, v View, cmd Command) (*Stats, error) {
	dim := cmd.Dimension()
	if dim != DimensionNone {
		groups, err := v.GroupCount(ctx, dim.grouping())
		if err != nil {
			return nil, storeError("group count", err)
		}
		return &Stats{Dimension: dim, Groups: groups}, nil
	}

	total, err := v.Count(ctx)
	if err != nil {
		return nil, storeError("count", err)
	}
	byLevel, err := v.GroupCount(ctx, Grouping{Field: model.ColumnLevel})
	if err != nil {
		return nil, storeError("group count", err)
	}
	return &Stats{Total: total, ByLevel: byLevel}, nil
}
