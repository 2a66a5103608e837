// Package query implements the listing filter DSL: per-entity-kind ASTs that
// compose into SQL fragments appended to a raw query builder used by the
// paginated list endpoints. The builder guarantees parameter binding for
// every user-supplied value; AST nodes only ever emit fragments that
// reference fixed table/column names.
package query

import (
	"strconv"
	"strings"
)

// Builder accumulates WHERE conditions and their bound arguments on top of
// a base SELECT. Fragments use `?` placeholders which SQL() rewrites to
// postgres-style `$n` positions, so callers can compose conditions without
// tracking global placeholder numbering.
type Builder struct {
	base    string
	conds   []string
	args    []interface{}
	orderBy string
	limit   int
	offset  int
}

// NewBuilder starts a builder from a base SELECT (without WHERE). Initial
// args bind any `?` placeholders already present in base.
func NewBuilder(base string, args ...interface{}) *Builder {
	return &Builder{base: base, args: args, limit: -1, offset: -1}
}

// Where ANDs a condition fragment onto the statement. Every user value
// must be passed through args, never interpolated into the fragment.
func (b *Builder) Where(fragment string, args ...interface{}) *Builder {
	b.conds = append(b.conds, fragment)
	b.args = append(b.args, args...)
	return b
}

// OrderBy sets the ORDER BY clause. The column expression is fixed by the
// caller, never user input.
func (b *Builder) OrderBy(expr string) *Builder {
	b.orderBy = expr
	return b
}

// Paginate appends LIMIT/OFFSET as bound parameters.
func (b *Builder) Paginate(limit, offset int) *Builder {
	b.limit = limit
	b.offset = offset
	return b
}

// SQL renders the final statement, rewriting `?` placeholders to `$1..$n`
// in order of appearance, and returns it with the bound arguments.
func (b *Builder) SQL() (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(b.base)
	if len(b.conds) > 0 {
		if strings.Contains(strings.ToUpper(b.base), " WHERE ") {
			sb.WriteString(" AND ")
		} else {
			sb.WriteString(" WHERE ")
		}
		sb.WriteString("(" + strings.Join(b.conds, ") AND (") + ")")
	}
	if b.orderBy != "" {
		sb.WriteString(" ORDER BY " + b.orderBy)
	}
	args := append([]interface{}(nil), b.args...)
	if b.limit >= 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, b.limit)
	}
	if b.offset >= 0 {
		sb.WriteString(" OFFSET ?")
		args = append(args, b.offset)
	}
	return numberPlaceholders(sb.String()), args
}

// numberPlaceholders rewrites each `?` to its positional `$n` form. A `??`
// escapes a literal question mark.
func numberPlaceholders(sql string) string {
	var sb strings.Builder
	n := 0
	for i := 0; i < len(sql); i++ {
		if sql[i] != '?' {
			sb.WriteByte(sql[i])
			continue
		}
		if i+1 < len(sql) && sql[i+1] == '?' {
			sb.WriteByte('?')
			i++
			continue
		}
		n++
		sb.WriteString("$" + strconv.Itoa(n))
	}
	return sb.String()
}
