package queryir

// Query represents an abstract query.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a filter condition in a Select.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Equals: column = value
//   - In: column IN (values...)
//   - And: all predicates must be true
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Value is a literal compared against a column. Only string, int64 and
// bool are accepted; Validate reports anything else.
type Value = any

// Select reads columns from one table.
//
// Semantics:
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY seq, id
//
// Example:
//
//	Select{
//	  From:    "point_states",
//	  Columns: []string{"id", "function", "seq", "location", "state", "places"},
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Column: "run_id", Value: runID},
//	    In{Column: "state", Values: []Value{"initialized", "moved_out"}},
//	  }},
//	}
type Select struct {
	From    string    // Table name
	Columns []string  // Explicit column list, in result order
	Filter  Predicate // WHERE conditions (nil = no filter)
}

func (Select) queryNode() {}

// Equals represents a column-equals-literal predicate.
//
// Semantics:
//
//	<column> = <value>
type Equals struct {
	Column string
	Value  Value
}

func (Equals) predicateNode() {}

// In represents a set membership predicate. An empty Values matches
// nothing.
//
// Semantics:
//
//	<column> IN (<values>...)
type In struct {
	Column string
	Values []Value
}

func (In) predicateNode() {}

// And represents a conjunction of predicates (all must be true). An empty
// Predicates slice is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Where combines predicates into one filter, dropping nils. It returns nil
// when nothing is left, and the predicate itself when only one is.
func Where(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return And{Predicates: kept}
}
