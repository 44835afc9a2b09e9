// Package queryir provides the abstract query representation used to read
// stored analysis results.
//
// QueryIR is the boundary between callers that know what they want (the
// point states of one function in one run, say) and the backend that knows
// how to fetch it. The CLI and the harness build queries; querysql compiles
// them to parameterized SQLite.
//
// ARCHITECTURE:
//
//	[dump flags / store.PointFilter] → [Query IR] → [querysql] → SQLite
//
// FRAGMENT:
//
// The fragment is deliberately small:
//   - Select(from, filter, columns) over one table
//   - Predicates: Equals, In, And
//   - Explicit columns (no SELECT *)
//
// It excludes joins, OR, aggregation and NULL comparisons. Every result is
// ordered by (seq, id), which backends add themselves; a query cannot choose
// a different order.
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed with marker methods, so backends can switch
// over them exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	case In:
//	case And:
//	}
//
// SCHEMA CHECKS:
//
// Table and column names are identifiers, not parameters, so a backend has
// to interpolate them. Validate checks every identifier against a Schema
// first; querysql refuses to compile a query that fails validation.
package queryir
