package queryir

import (
	"fmt"
	"slices"
)

// Schema maps each queryable table to its columns. Every table must have
// seq and id columns, the fixed result order.
type Schema map[string][]string

// HasColumn reports whether table has column.
func (s Schema) HasColumn(table, column string) bool {
	return slices.Contains(s[table], column)
}

// ValidationResult lists the problems found in a query.
type ValidationResult struct {
	// OK is true when the query can be compiled against the schema.
	OK bool

	// Problems lists every problem found. Empty when OK is true.
	Problems []string
}

// Validate checks a query against schema: known table and columns, an
// explicit column list, and literal values of supported types.
//
// Validate is a pure function with no side effects.
func Validate(query Query, schema Schema) ValidationResult {
	v := &validator{schema: schema, problems: []string{}}
	v.validateQuery(query)
	return ValidationResult{
		OK:       len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	schema   Schema
	table    string
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addProblem("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	default:
		v.addProblem("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	cols, ok := v.schema[sel.From]
	if !ok {
		v.addProblem("unknown table %q", sel.From)
		return
	}
	v.table = sel.From
	for _, required := range []string{"seq", "id"} {
		if !slices.Contains(cols, required) {
			v.addProblem("table %q has no %s column to order by", sel.From, required)
		}
	}

	if len(sel.Columns) == 0 {
		v.addProblem("empty column list (SELECT *) - columns must be explicit")
	}
	for _, c := range sel.Columns {
		v.column(c)
	}

	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) column(c string) {
	if !v.schema.HasColumn(v.table, c) {
		v.addProblem("unknown column %q in table %q", c, v.table)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.validateEquals(pred)
	case *Equals:
		v.validateEquals(*pred)
	case In:
		v.validateIn(pred)
	case *In:
		v.validateIn(*pred)
	case And:
		v.validateAnd(pred)
	case *And:
		v.validateAnd(*pred)
	default:
		v.addProblem("unknown predicate type: %T", p)
	}
}

func (v *validator) validateEquals(eq Equals) {
	v.column(eq.Column)
	v.value(eq.Column, eq.Value)
}

func (v *validator) validateIn(in In) {
	v.column(in.Column)
	for _, val := range in.Values {
		v.value(in.Column, val)
	}
}

func (v *validator) validateAnd(and And) {
	for _, sub := range and.Predicates {
		v.validatePredicate(sub)
	}
}

func (v *validator) value(column string, val Value) {
	switch val.(type) {
	case string, int64, bool:
	case nil:
		v.addProblem("column %q compared to NULL - use an explicit value", column)
	default:
		v.addProblem("column %q compared to unsupported value type %T", column, val)
	}
}
