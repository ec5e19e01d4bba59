package duckdb

import (
	"fmt"
	"strings"
	"time"

	"github.com/brainz-lab/recall/internal/model"
	"github.com/brainz-lab/recall/internal/rql"
)

// logColumns is the select list shared by every record query. data is read
// back as text and decoded in Go.
const logColumns = `id, "timestamp", level, message, "commit", branch, environment, service, host, request_id, session_id, CAST(data AS VARCHAR)`

// filterColumns are the scalar columns predicates may reference.
var filterColumns = map[string]bool{
	model.ColumnLevel:       true,
	model.ColumnCommit:      true,
	model.ColumnBranch:      true,
	model.ColumnEnvironment: true,
	model.ColumnService:     true,
	model.ColumnHost:        true,
	model.ColumnRequestID:   true,
	model.ColumnSessionID:   true,
}

const sqlNull = "CAST(NULL AS BOOLEAN)"

// timeParam binds an instant as a UTC wall-clock literal so comparisons
// against the TIMESTAMP column never depend on the session time zone.
const timeParam = "CAST(? AS TIMESTAMP)"

func sqlTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05.999999")
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// likeEscaper escapes LIKE metacharacters for patterns using ESCAPE '\'.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// dataExpr reads the value at a data path as text. Missing paths and JSON
// nulls come back as NULL.
func dataExpr(p rql.DataPath) string {
	return fmt.Sprintf("json_extract_string(data, %s)", quoteLiteral(p.Pointer()))
}

// compile renders a predicate as a SQL boolean expression. SQL's NULL
// handling gives the same three-valued results as rql.Evaluate: absent
// columns, missing paths and failed numeric casts are NULL.
func compile(p rql.Predicate) (string, []any) {
	var b sqlBuilder
	b.write(p)
	return b.sb.String(), b.args
}

type sqlBuilder struct {
	sb   strings.Builder
	args []any
}

func (b *sqlBuilder) write(p rql.Predicate) {
	switch pr := p.(type) {
	case rql.FieldIn:
		if !filterColumns[pr.Field] {
			b.sb.WriteString(sqlNull)
			return
		}
		if len(pr.Values) == 0 {
			// false when present, unknown when absent
			fmt.Fprintf(&b.sb, "(%s IS NULL AND %s)", quoteIdent(pr.Field), sqlNull)
			return
		}
		b.sb.WriteString(quoteIdent(pr.Field))
		b.sb.WriteString(" IN (")
		for i, v := range pr.Values {
			if i > 0 {
				b.sb.WriteString(", ")
			}
			b.sb.WriteByte('?')
			b.args = append(b.args, v)
		}
		b.sb.WriteByte(')')

	case rql.FieldEquals:
		if !filterColumns[pr.Field] {
			b.sb.WriteString(sqlNull)
			return
		}
		b.sb.WriteString(quoteIdent(pr.Field))
		b.sb.WriteString(" = ?")
		b.args = append(b.args, pr.Value)

	case rql.TimeBound:
		if pr.Op == rql.AtOrAfter {
			b.sb.WriteString(`"timestamp" >= ` + timeParam)
		} else {
			b.sb.WriteString(`"timestamp" <= ` + timeParam)
		}
		b.args = append(b.args, sqlTime(pr.At))

	case rql.DataEquals:
		b.sb.WriteString(dataExpr(pr.Path))
		b.sb.WriteString(" = ?")
		b.args = append(b.args, pr.Value)

	case rql.DataGlob:
		b.sb.WriteString(dataExpr(pr.Path))
		b.sb.WriteString(` LIKE ? ESCAPE '\'`)
		parts := strings.Split(pr.Pattern, "*")
		for i := range parts {
			parts[i] = likeEscaper.Replace(parts[i])
		}
		b.args = append(b.args, strings.Join(parts, "%"))

	case rql.DataCompare:
		fmt.Fprintf(&b.sb, "TRY_CAST(%s AS DOUBLE) %s ?", dataExpr(pr.Path), compareOp(pr.Op))
		b.args = append(b.args, pr.Operand)

	case rql.MessageContains:
		b.sb.WriteString(`message ILIKE ? ESCAPE '\'`)
		b.args = append(b.args, "%"+likeEscaper.Replace(pr.Term)+"%")

	case rql.Not:
		b.sb.WriteString("NOT (")
		b.write(pr.Inner)
		b.sb.WriteByte(')')

	case rql.All:
		b.join(pr, " AND ", "TRUE")

	case rql.Any:
		b.join(pr, " OR ", "FALSE")

	case rql.MatchNone:
		b.sb.WriteString("FALSE")

	default:
		b.sb.WriteString("FALSE")
	}
}

func (b *sqlBuilder) join(preds []rql.Predicate, sep, empty string) {
	if len(preds) == 0 {
		b.sb.WriteString(empty)
		return
	}
	b.sb.WriteByte('(')
	for i, p := range preds {
		if i > 0 {
			b.sb.WriteString(sep)
		}
		b.sb.WriteByte('(')
		b.write(p)
		b.sb.WriteByte(')')
	}
	b.sb.WriteByte(')')
}

func compareOp(op rql.CompareOp) string {
	switch op {
	case rql.OpGreater, rql.OpGreaterEqual, rql.OpLess, rql.OpLessEqual:
		return string(op)
	}
	return "="
}
