package rql

import (
	"regexp"
	"strings"
)

var (
	// fieldTokenPattern matches field:value and field:!value. Quoted values may
	// contain escaped quotes, which are kept as written.
	fieldTokenPattern = regexp.MustCompile(`(\w+(?:\.\w+)*):(!)?("(?:[^"\\]|\\.)*"|\S+)`)

	// quotedTermPattern matches a free-text search term.
	quotedTermPattern = regexp.MustCompile(`"((?:[^"\\]|\\.)+)"`)
)

// rawToken is one field:value occurrence before field resolution.
type rawToken struct {
	Field   string
	Value   string
	Negated bool
}

// extracted is the output of the tokenizer for one query string.
type extracted struct {
	Branches []branch
	Or       bool
	Commands [][]string
}

// branch is the token content of one AND group.
type branch struct {
	Tokens []rawToken
	Terms  []string
}

// extract splits a query string into filter branches and command segments.
func extract(raw string) extracted {
	segments := splitOutsideQuotes(strings.TrimSpace(raw), pipeSeparator)

	var out extracted
	filterText := strings.TrimSpace(segments[0])

	if parts := splitOutsideQuotes(filterText, orSeparator); len(parts) > 1 {
		out.Or = true
		for _, p := range parts {
			out.Branches = append(out.Branches, extractBranch(p))
		}
	} else {
		out.Branches = []branch{extractBranch(filterText)}
	}

	for _, seg := range segments[1:] {
		fields := strings.Fields(seg)
		if len(fields) == 0 {
			continue
		}
		out.Commands = append(out.Commands, fields)
	}
	return out
}

// extractBranch pulls field tokens and quoted free-text terms out of one
// branch. Tokens are found anywhere, including inside a quoted run, and are
// cut out before the remainder is scanned for quoted terms. Bare words that
// are neither tokens nor quoted are dropped.
func extractBranch(text string) branch {
	var b branch

	var rest strings.Builder
	last := 0
	for _, m := range fieldTokenPattern.FindAllStringSubmatchIndex(text, -1) {
		b.Tokens = append(b.Tokens, rawToken{
			Field:   text[m[2]:m[3]],
			Negated: m[4] >= 0,
			Value:   unquote(text[m[6]:m[7]]),
		})
		rest.WriteString(text[last:m[0]])
		last = m[1]
	}
	rest.WriteString(text[last:])

	for _, m := range quotedTermPattern.FindAllStringSubmatch(rest.String(), -1) {
		b.Terms = append(b.Terms, m[1])
	}
	return b
}

// unquote strips one pair of surrounding double quotes.
func unquote(v string) string {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		return v[1 : len(v)-1]
	}
	return v
}

// separator reports the length of a separator starting at i, or 0.
type separator func(s string, i int) int

func pipeSeparator(s string, i int) int {
	if s[i] == '|' {
		return 1
	}
	return 0
}

// orSeparator matches whitespace, OR in any case, whitespace.
func orSeparator(s string, i int) int {
	if !isSpace(s[i]) {
		return 0
	}
	j := i
	for j < len(s) && isSpace(s[j]) {
		j++
	}
	if j+2 >= len(s) || !strings.EqualFold(s[j:j+2], "or") || !isSpace(s[j+2]) {
		return 0
	}
	j += 2
	for j < len(s) && isSpace(s[j]) {
		j++
	}
	return j - i
}

// splitOutsideQuotes splits s at every separator that is not inside a
// double-quoted run. It always returns at least one element.
func splitOutsideQuotes(s string, sep separator) []string {
	var parts []string
	inQuotes := false
	start := 0
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\\' && inQuotes && i+1 < len(s):
			i += 2
			continue
		case c == '"':
			inQuotes = !inQuotes
		case !inQuotes:
			if n := sep(s, i); n > 0 {
				parts = append(parts, s[start:i])
				i += n
				start = i
				continue
			}
		}
		i++
	}
	return append(parts, s[start:])
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}
