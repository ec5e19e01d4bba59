package rql

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/brainz-lab/recall/internal/model"
)

var (
	comparisonPattern = regexp.MustCompile(`^([><]=?)(.+)$`)

	// leadingNumber is the numeric prefix an operand is read from; a leading
	// '+' is left to ParseFloat. Underscores between digits are dropped first.
	leadingNumber = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d+)?|\.\d+)(?:[eE][+-]?\d+)?`)
)

// compiledGroup is a FilterGroup turned into predicates. Filters must hold;
// Exclusions must not.
type compiledGroup struct {
	Filters    []Predicate
	Exclusions []Predicate
}

// predicate returns the whole group as one predicate.
func (c compiledGroup) predicate() Predicate {
	all := make(All, 0, len(c.Filters)+len(c.Exclusions))
	all = append(all, c.Filters...)
	for _, ex := range c.Exclusions {
		all = append(all, Not{Inner: ex})
	}
	return all
}

// buildGroup compiles one group. since and until are resolved against r.
func buildGroup(g FilterGroup, r Resolver) compiledGroup {
	var out compiledGroup
	for _, key := range g.keys {
		clause := g.clauses[key]
		p := clausePredicate(key, clause, r)
		if p == nil {
			continue
		}
		if clause.Negated && negatable(key) {
			out.Exclusions = append(out.Exclusions, p)
		} else {
			out.Filters = append(out.Filters, p)
		}
	}
	for _, term := range g.terms {
		out.Filters = append(out.Filters, MessageContains{Term: term})
	}
	return out
}

func negatable(canonical string) bool {
	return canonical == model.ColumnLevel || canonical == model.ColumnEnvironment
}

// clausePredicate builds the positive form of a clause.
func clausePredicate(key string, c FilterClause, r Resolver) Predicate {
	switch key {
	case model.ColumnLevel:
		return levelPredicate(c)
	case FieldSince:
		return TimeBound{Op: AtOrAfter, At: r.Resolve(c.Value)}
	case FieldUntil:
		return TimeBound{Op: AtOrBefore, At: r.Resolve(c.Value)}
	}
	if strings.HasPrefix(key, dataPrefix) {
		return dataPredicate(parseDataPath(key), c.Value)
	}
	return FieldEquals{Field: key, Value: c.Value}
}

// levelPredicate keeps the known levels of a comma list. When none survive
// a positive clause matches nothing; a negated one excludes nothing.
func levelPredicate(c FilterClause) Predicate {
	var kept []string
	seen := make(map[string]bool)
	for _, v := range strings.Split(c.Value, ",") {
		v = strings.TrimSpace(v)
		if !model.Level(v).Valid() || seen[v] {
			continue
		}
		seen[v] = true
		kept = append(kept, v)
	}
	if len(kept) == 0 && !c.Negated {
		return MatchNone{}
	}
	return FieldIn{Field: model.ColumnLevel, Values: kept}
}

// parseOperand reads the longest numeric prefix of s, so "12abc" is 12 and
// "abc" is 0.
func parseOperand(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "_", "")
	f, err := strconv.ParseFloat(leadingNumber.FindString(s), 64)
	if err != nil {
		return 0
	}
	return f
}

func dataPredicate(path DataPath, value string) Predicate {
	if m := comparisonPattern.FindStringSubmatch(value); m != nil {
		return DataCompare{Path: path, Op: CompareOp(m[1]), Operand: parseOperand(m[2])}
	}
	if strings.Contains(value, "*") {
		return DataGlob{Path: path, Pattern: value}
	}
	return DataEquals{Path: path, Value: value}
}
