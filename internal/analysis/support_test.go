package analysis

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator_ValidFormat(t *testing.T) {
	id := UUIDv7Generator{}.Generate()

	parsed, err := uuid.Parse(id)
	require.NoError(t, err, "run id should be a valid UUID")
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`, id)
}

func TestUUIDv7Generator_Uniqueness(t *testing.T) {
	gen := UUIDv7Generator{}
	seen := make(map[string]bool, 500)
	for i := 0; i < 500; i++ {
		id := gen.Generate()
		require.False(t, seen[id], "id %s generated twice", id)
		seen[id] = true
	}
}

func TestFixedGenerator_Sequence(t *testing.T) {
	gen := NewFixedGenerator("run-1", "run-2")

	assert.Equal(t, "run-1", gen.Generate())
	assert.Equal(t, "run-2", gen.Generate())
	assert.PanicsWithValue(t, "FixedGenerator: all ids exhausted", func() { gen.Generate() })
}

func TestClock_Next(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}

func TestClock_ConcurrentNextUnique(t *testing.T) {
	c := NewClock()
	var mu sync.Mutex
	seen := make(map[int64]bool)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				seq := c.Next()
				mu.Lock()
				seen[seq] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 800)
	assert.Equal(t, int64(800), c.Current())
}

func TestWorklist_FIFOAndDedup(t *testing.T) {
	w := newWorklist(3)
	assert.Equal(t, 3, w.len())

	w.push(1) // already pending
	w.push(9) // out of range
	w.push(-1)
	assert.Equal(t, 3, w.len())

	var order []int
	requeued := false
	for b, ok := w.pop(); ok; b, ok = w.pop() {
		order = append(order, b)
		if b == 0 && !requeued {
			w.push(0) // no longer pending, queued at the back
			requeued = true
		}
	}
	assert.Equal(t, []int{0, 1, 2, 0}, order)
}

func TestBudget(t *testing.T) {
	b := newBudget(2)
	require.NoError(t, b.spend("f"))
	require.NoError(t, b.spend("f"))

	err := b.spend("f")
	require.Error(t, err)
	assert.True(t, IsNoConvergenceError(err))
	assert.False(t, IsUnsupportedTypeError(err))

	var ae *AnalysisError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "3", ae.Details["visits"])
	assert.Contains(t, ae.Error(), "fn=f")
}
