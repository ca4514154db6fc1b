package rewrite

import (
	"github.com/roach88/tppenforce/internal/ir"
)

// worklist is a FIFO queue of nodes with set semantics: a node already
// waiting is not pushed twice.
//
// The worklist is private to one Apply call and is only touched by the
// goroutine running it.
type worklist struct {
	nodes   []ir.NodeID
	pending map[ir.NodeID]bool
}

func newWorklist() *worklist {
	return &worklist{
		nodes:   make([]ir.NodeID, 0, 64),
		pending: make(map[ir.NodeID]bool),
	}
}

// Push appends n unless it is already waiting.
// Returns true if n was added.
func (w *worklist) Push(n ir.NodeID) bool {
	if w.pending[n] {
		return false
	}
	w.pending[n] = true
	w.nodes = append(w.nodes, n)
	return true
}

// Pop removes and returns the front node.
// Returns (ir.NoNode, false) if the worklist is empty.
func (w *worklist) Pop() (ir.NodeID, bool) {
	if len(w.nodes) == 0 {
		return ir.NoNode, false
	}
	n := w.nodes[0]
	if len(w.nodes) == 1 {
		w.nodes = w.nodes[:0]
	} else {
		w.nodes = w.nodes[1:]
	}
	delete(w.pending, n)
	return n, true
}

// Len returns the number of waiting nodes.
func (w *worklist) Len() int {
	return len(w.nodes)
}
