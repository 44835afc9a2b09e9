package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/mirdump/internal/queryir"
)

// orderBy is appended to every query. Point states and runs are both keyed
// by a logical seq; id breaks ties.
const orderBy = " ORDER BY seq ASC, id COLLATE BINARY ASC"

// SQLCompiler compiles QueryIR to parameterized SQL for SQLite.
//
// CRITICAL: ALL queries end in ORDER BY seq, id for deterministic results.
// CRITICAL: All values are parameterized (never interpolated). Identifiers
// are interpolated only after validation against the schema.
type SQLCompiler struct {
	schema queryir.Schema
}

// NewSQLCompiler creates a compiler for tables described by schema.
func NewSQLCompiler(schema queryir.Schema) *SQLCompiler {
	return &SQLCompiler{schema: schema}
}

// Compile converts a QueryIR query to parameterized SQL.
// Returns (sql, params, error) tuple.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}
	if res := queryir.Validate(q, c.schema); !res.OK {
		return "", nil, fmt.Errorf("invalid query: %s", strings.Join(res.Problems, "; "))
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	var whereClause string
	var params []any
	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		whereClause = " WHERE " + filterSQL
		params = filterParams
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s%s",
		strings.Join(q.Columns, ", "),
		q.From,
		whereClause,
		orderBy)

	return sql, params, nil
}

// compilePredicate compiles a predicate to a WHERE clause fragment.
// CRITICAL: Values NEVER interpolated - always use ? placeholders.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case queryir.Equals:
		return c.compileEquals(pred)
	case *queryir.Equals:
		return c.compileEquals(*pred)
	case queryir.In:
		return c.compileIn(pred)
	case *queryir.In:
		return c.compileIn(*pred)
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileEquals(eq queryir.Equals) (string, []any, error) {
	return fmt.Sprintf("%s = ?", eq.Column), []any{eq.Value}, nil
}

// compileIn compiles "column IN (?, ?, ...)". An empty set matches no row.
func (c *SQLCompiler) compileIn(in queryir.In) (string, []any, error) {
	if len(in.Values) == 0 {
		return "1 = 0", nil, nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(in.Values)), ", ")
	params := make([]any, len(in.Values))
	copy(params, in.Values)
	return fmt.Sprintf("%s IN (%s)", in.Column, marks), params, nil
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil // Always true (vacuous truth)
	}

	var sqlParts []string
	var allParams []any
	for _, pred := range and.Predicates {
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		switch pred.(type) {
		case queryir.And, *queryir.And:
			sql = "(" + sql + ")"
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}

	return strings.Join(sqlParts, " AND "), allParams, nil
}
