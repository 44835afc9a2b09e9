package analysis

// worklist is a FIFO queue of block indices. A block already waiting is not
// queued twice, so a block whose inputs change several times before it is
// visited is visited once.
//
// Blocks are seeded in index order, which keeps visit order and therefore
// logs deterministic.
type worklist struct {
	blocks  []int
	pending []bool
}

func newWorklist(n int) *worklist {
	w := &worklist{
		blocks:  make([]int, 0, n),
		pending: make([]bool, n),
	}
	for b := 0; b < n; b++ {
		w.push(b)
	}
	return w
}

// push queues b unless it is already waiting or out of range.
func (w *worklist) push(b int) {
	if b < 0 || b >= len(w.pending) || w.pending[b] {
		return
	}
	w.pending[b] = true
	w.blocks = append(w.blocks, b)
}

// pop removes and returns the front block.
func (w *worklist) pop() (int, bool) {
	if len(w.blocks) == 0 {
		return 0, false
	}
	b := w.blocks[0]
	if len(w.blocks) == 1 {
		w.blocks = w.blocks[:0]
	} else {
		w.blocks = w.blocks[1:]
	}
	w.pending[b] = false
	return b, true
}

func (w *worklist) len() int {
	return len(w.blocks)
}
