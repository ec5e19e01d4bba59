package rql

import (
	"regexp"
	"strings"

	"github.com/brainz-lab/recall/internal/model"
)

// Truth is a three-valued match result. Unknown arises when a condition
// reads an absent value; it behaves like SQL NULL, so a record is neither
// kept by Filter nor by Exclude of that condition.
type Truth int8

const (
	False Truth = iota
	True
	Unknown
)

func truth(b bool) Truth {
	if b {
		return True
	}
	return False
}

// Matches reports whether p definitely holds for r.
func Matches(p Predicate, r *model.LogRecord) bool {
	return Evaluate(p, r) == True
}

// Evaluate applies p to a single record.
func Evaluate(p Predicate, r *model.LogRecord) Truth {
	switch p := p.(type) {
	case FieldIn:
		v, ok := r.Column(p.Field)
		if !ok {
			return Unknown
		}
		for _, want := range p.Values {
			if v == want {
				return True
			}
		}
		return False

	case FieldEquals:
		v, ok := r.Column(p.Field)
		if !ok {
			return Unknown
		}
		return truth(v == p.Value)

	case TimeBound:
		if p.Op == AtOrAfter {
			return truth(!r.Timestamp.Before(p.At))
		}
		return truth(!r.Timestamp.After(p.At))

	case DataEquals:
		s, ok := dataString(p.Path, r)
		if !ok {
			return Unknown
		}
		return truth(s == p.Value)

	case DataGlob:
		s, ok := dataString(p.Path, r)
		if !ok {
			return Unknown
		}
		return truth(globRegexp(p.Pattern).MatchString(s))

	case DataCompare:
		v, ok := p.Path.Lookup(r.Data)
		if !ok {
			return Unknown
		}
		n, ok := Numeric(v)
		if !ok {
			return Unknown
		}
		return truth(p.Op.Compare(n, p.Operand))

	case MessageContains:
		if r.Message == "" {
			return Unknown
		}
		return truth(strings.Contains(strings.ToLower(r.Message), strings.ToLower(p.Term)))

	case Not:
		switch Evaluate(p.Inner, r) {
		case True:
			return False
		case False:
			return True
		}
		return Unknown

	case All:
		result := True
		for _, inner := range p {
			switch Evaluate(inner, r) {
			case False:
				return False
			case Unknown:
				result = Unknown
			}
		}
		return result

	case Any:
		result := False
		for _, inner := range p {
			switch Evaluate(inner, r) {
			case True:
				return True
			case Unknown:
				result = Unknown
			}
		}
		return result

	case MatchNone:
		return False
	}
	return False
}

func dataString(path DataPath, r *model.LogRecord) (string, bool) {
	v, ok := path.Lookup(r.Data)
	if !ok {
		return "", false
	}
	return Stringify(v)
}

// globRegexp compiles a * wildcard pattern anchored to the whole value.
func globRegexp(pattern string) *regexp.Regexp {
	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return regexp.MustCompile(`(?s)\A` + strings.Join(parts, ".*") + `\z`)
}
