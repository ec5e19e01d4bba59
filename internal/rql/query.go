package rql

import "time"

// Mode tells how a query's groups combine.
type Mode int

const (
	// ModeAnd is a single group.
	ModeAnd Mode = iota
	// ModeOr is a union of groups, one per OR branch.
	ModeOr
)

func (m Mode) String() string {
	if m == ModeOr {
		return "or"
	}
	return "and"
}

// Query is a parsed RQL string. It is immutable and safe for concurrent use.
type Query struct {
	raw      string
	mode     Mode
	groups   []FilterGroup
	compiled []compiledGroup
	commands Pipeline
}

// Parser parses RQL strings. The zero value uses the wall clock.
type Parser struct {
	Resolver Resolver
}

// Parse parses raw with the wall clock.
func Parse(raw string) *Query {
	return Parser{}.Parse(raw)
}

// ParseAt parses raw with relative windows measured from now.
func ParseAt(raw string, now time.Time) *Query {
	return Parser{Resolver: Resolver{Now: func() time.Time { return now }}}.Parse(raw)
}

// Parse never fails: unknown fields and stray words are ignored, bad
// arguments fall back to defaults and impossible filters match nothing.
func (p Parser) Parse(raw string) *Query {
	ex := extract(raw)

	q := &Query{raw: raw}
	if ex.Or {
		q.mode = ModeOr
	}
	for _, b := range ex.Branches {
		g := newFilterGroup(b)
		q.groups = append(q.groups, g)
		q.compiled = append(q.compiled, buildGroup(g, p.Resolver))
	}
	for _, fields := range ex.Commands {
		q.commands = append(q.commands, newCommand(fields))
	}
	return q
}

// String returns the query text as given.
func (q *Query) String() string { return q.raw }

// Mode returns how the groups combine.
func (q *Query) Mode() Mode { return q.mode }

// Groups returns the filter groups: one in AND mode, one per branch in OR mode.
func (q *Query) Groups() []FilterGroup {
	return append([]FilterGroup(nil), q.groups...)
}

// Commands returns the command pipeline.
func (q *Query) Commands() Pipeline {
	return append(Pipeline(nil), q.commands...)
}

// Predicate returns the whole filter as a single predicate.
func (q *Query) Predicate() Predicate {
	if q.mode == ModeOr {
		branches := make(Any, 0, len(q.compiled))
		for _, c := range q.compiled {
			branches = append(branches, c.predicate())
		}
		return branches
	}
	return q.compiled[0].predicate()
}

// apply narrows v by the query's filter. In AND mode negated clauses go
// through Exclude; in OR mode each branch is folded into one predicate.
func (q *Query) apply(v View) View {
	if q.mode == ModeOr {
		return v.Filter(q.Predicate())
	}
	c := q.compiled[0]
	v = v.Filter(All(c.Filters))
	for _, ex := range c.Exclusions {
		v = v.Exclude(ex)
	}
	return v
}
