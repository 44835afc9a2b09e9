package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = Schema{
	"point_states": {"id", "run_id", "function", "seq", "location", "state", "places"},
	"runs":         {"id", "seq", "ir_version"},
	"broken":       {"name"},
}

func TestValidate_ValidQuery(t *testing.T) {
	query := Select{
		From:    "point_states",
		Columns: []string{"id", "seq", "places"},
		Filter: And{Predicates: []Predicate{
			Equals{Column: "run_id", Value: "run-1"},
			In{Column: "state", Values: []Value{"initialized", "moved_out"}},
			Equals{Column: "seq", Value: int64(3)},
		}},
	}

	result := Validate(query, testSchema)
	assert.True(t, result.OK)
	assert.Empty(t, result.Problems)
}

func TestValidate_PointerVariants(t *testing.T) {
	query := &Select{
		From:    "runs",
		Columns: []string{"id"},
		Filter:  &And{Predicates: []Predicate{&Equals{Column: "ir_version", Value: "1.0.0"}, &In{Column: "id"}}},
	}
	assert.True(t, Validate(query, testSchema).OK)
}

func TestValidate_Problems(t *testing.T) {
	tests := []struct {
		name    string
		query   Query
		problem string
	}{
		{"nil query", nil, "nil query"},
		{"unknown table", Select{From: "nope", Columns: []string{"id"}}, `unknown table "nope"`},
		{"no order columns", Select{From: "broken", Columns: []string{"name"}}, `table "broken" has no seq column`},
		{"select star", Select{From: "runs"}, "SELECT *"},
		{"unknown column", Select{From: "runs", Columns: []string{"id", "secret"}}, `unknown column "secret" in table "runs"`},
		{
			"unknown filter column",
			Select{From: "runs", Columns: []string{"id"}, Filter: Equals{Column: "id; DROP TABLE runs", Value: "x"}},
			`unknown column "id; DROP TABLE runs"`,
		},
		{
			"null value",
			Select{From: "runs", Columns: []string{"id"}, Filter: Equals{Column: "id", Value: nil}},
			"compared to NULL",
		},
		{
			"float value",
			Select{From: "runs", Columns: []string{"id"}, Filter: In{Column: "seq", Values: []Value{1.5}}},
			"unsupported value type float64",
		},
		{
			"nested and",
			Select{From: "runs", Columns: []string{"id"}, Filter: And{Predicates: []Predicate{
				And{Predicates: []Predicate{Equals{Column: "ghost", Value: "x"}}},
			}}},
			`unknown column "ghost"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.query, testSchema)
			assert.False(t, result.OK)
			require.NotEmpty(t, result.Problems)
			assert.Contains(t, result.Problems[0], tt.problem)
		})
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	query := Select{
		From:    "runs",
		Columns: []string{"a", "b"},
		Filter:  Equals{Column: "c", Value: int64(1)},
	}
	result := Validate(query, testSchema)
	assert.False(t, result.OK)
	assert.Len(t, result.Problems, 3)
}

func TestValidate_Idempotent(t *testing.T) {
	query := Select{From: "runs", Columns: []string{"id"}, Filter: Equals{Column: "id", Value: "r"}}
	assert.Equal(t, Validate(query, testSchema), Validate(query, testSchema))
}

func TestWhere(t *testing.T) {
	assert.Nil(t, Where())
	assert.Nil(t, Where(nil, nil))

	eq := Equals{Column: "id", Value: "r"}
	assert.Equal(t, eq, Where(nil, eq))

	in := In{Column: "state", Values: []Value{"borrowed"}}
	assert.Equal(t, And{Predicates: []Predicate{eq, in}}, Where(eq, nil, in))
}

func TestSealedInterfaces(t *testing.T) {
	var q Query = Select{}
	_, ok := q.(Select)
	assert.True(t, ok)

	for _, p := range []Predicate{Equals{}, In{}, And{}, &Equals{}, &In{}, &And{}} {
		assert.NotNil(t, p)
	}
}
