package rql

import (
	"strings"

	"github.com/brainz-lab/recall/internal/model"
)

// Canonical field keys beyond the record columns.
const (
	FieldSince = "since"
	FieldUntil = "until"

	dataPrefix = "data."
)

// fieldSpec describes how one recognised field name is treated.
type fieldSpec struct {
	canonical string
	negatable bool
}

// fieldTable lists every recognised field name and alias. Only level and
// environment honor the ! marker; on the others it parses but does nothing.
var fieldTable = map[string]fieldSpec{
	"level":       {canonical: model.ColumnLevel, negatable: true},
	"env":         {canonical: model.ColumnEnvironment, negatable: true},
	"environment": {canonical: model.ColumnEnvironment, negatable: true},
	"commit":      {canonical: model.ColumnCommit},
	"branch":      {canonical: model.ColumnBranch},
	"service":     {canonical: model.ColumnService},
	"host":        {canonical: model.ColumnHost},
	"request":     {canonical: model.ColumnRequestID},
	"request_id":  {canonical: model.ColumnRequestID},
	"session":     {canonical: model.ColumnSessionID},
	"session_id":  {canonical: model.ColumnSessionID},
	"since":       {canonical: FieldSince},
	"until":       {canonical: FieldUntil},
}

// canonicalField resolves a field name to its canonical key. Data paths are
// their own key. ok is false for unrecognised fields.
func canonicalField(name string) (spec fieldSpec, ok bool) {
	if strings.HasPrefix(name, dataPrefix) && len(name) > len(dataPrefix) {
		return fieldSpec{canonical: name}, true
	}
	spec, ok = fieldTable[name]
	return spec, ok
}

// FilterClause is one field:value condition as written in the query.
type FilterClause struct {
	Field   string
	Value   string
	Negated bool
}

// FilterGroup is one AND combination of clauses and free-text terms. Each
// canonical field holds exactly one clause; a later occurrence replaces an
// earlier one. A FilterGroup is never modified after construction.
type FilterGroup struct {
	keys    []string
	clauses map[string]FilterClause
	terms   []string
}

func newFilterGroup(b branch) FilterGroup {
	g := FilterGroup{clauses: make(map[string]FilterClause)}
	for _, tok := range b.Tokens {
		spec, ok := canonicalField(tok.Field)
		if !ok {
			continue
		}
		if _, seen := g.clauses[spec.canonical]; !seen {
			g.keys = append(g.keys, spec.canonical)
		}
		g.clauses[spec.canonical] = FilterClause{Field: tok.Field, Value: tok.Value, Negated: tok.Negated}
	}
	g.terms = append(g.terms, b.Terms...)
	return g
}

// Clause returns the clause stored for a canonical field.
func (g FilterGroup) Clause(canonical string) (FilterClause, bool) {
	c, ok := g.clauses[canonical]
	return c, ok
}

// Fields returns the canonical keys in order of first appearance.
func (g FilterGroup) Fields() []string {
	return append([]string(nil), g.keys...)
}

// Terms returns the free-text terms in query order.
func (g FilterGroup) Terms() []string {
	return append([]string(nil), g.terms...)
}

// Empty reports whether the group constrains nothing.
func (g FilterGroup) Empty() bool {
	return len(g.keys) == 0 && len(g.terms) == 0
}
