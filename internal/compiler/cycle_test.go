package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mirdump/internal/ir"
	"github.com/roach88/mirdump/internal/testutil"
)

func structOf(name string, fieldTypes ...string) ir.TypeDef {
	def := ir.TypeDef{Name: name, Kind: ir.KindStruct}
	for i, ty := range fieldTypes {
		def.Fields = append(def.Fields, ir.FieldDef{Name: string(rune('a' + i)), Type: ty})
	}
	return def
}

func TestAnalyzeTypeCycles_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeTypeCycles(nil))
}

func TestAnalyzeTypeCycles_DAG(t *testing.T) {
	assert.Empty(t, AnalyzeTypeCycles(testutil.ShapesBody().Types))
}

func TestAnalyzeTypeCycles_SelfLoop(t *testing.T) {
	cycles := AnalyzeTypeCycles(map[string]ir.TypeDef{
		"A": structOf("A", "i32", "A"),
	})
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"A", "A"}, cycles[0].Path)
	assert.Contains(t, cycles[0].Message, "type A contains itself by value")
}

func TestAnalyzeTypeCycles_Mutual(t *testing.T) {
	cycles := AnalyzeTypeCycles(map[string]ir.TypeDef{
		"A": structOf("A", "B"),
		"B": structOf("B", "(i32, C)"),
		"C": structOf("C", "A"),
		"D": structOf("D", "A"),
	})
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"A", "B", "C", "A"}, cycles[0].Path)
	assert.Equal(t, "types contain each other by value: A -> B -> C -> A", cycles[0].Message)
}

func TestAnalyzeTypeCycles_ThroughReferenceIsFine(t *testing.T) {
	assert.Empty(t, AnalyzeTypeCycles(map[string]ir.TypeDef{
		"Node": structOf("Node", "i32", "&Node", "*const Node"),
		"Pair": structOf("Pair", "&mut Pair", "(&Pair, u8)"),
	}))
}

func TestAnalyzeTypeCycles_SortedAndThroughVariants(t *testing.T) {
	cycles := AnalyzeTypeCycles(map[string]ir.TypeDef{
		"Z": structOf("Z", "Z"),
		"List": {Name: "List", Kind: ir.KindEnum, Variants: []ir.VariantDef{
			{Name: "Nil"},
			{Name: "Cons", Fields: []ir.FieldDef{{Name: "0", Type: "List"}}},
		}},
	})
	require.Len(t, cycles, 2)
	assert.Equal(t, "List", cycles[0].Path[0])
	assert.Equal(t, "Z", cycles[1].Path[0])
}
