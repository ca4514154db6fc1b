package rewrite

import (
	"fmt"

	"github.com/roach88/tppenforce/internal/ir"
)

// Pattern is a local rewrite offered to nodes of one kind.
//
// MatchAndRewrite inspects node n and either declines, returning
// (false, nil) without touching the function, or performs a complete
// rewrite through rw and returns (true, nil). Declining is the common case
// and is never an error. A non-nil error aborts the pass; the driver rolls
// back whatever the pattern did before failing.
type Pattern interface {
	// Name identifies the pattern in events, logs and the journal.
	Name() string

	// Root is the node kind the pattern applies to.
	Root() ir.Kind

	// MatchAndRewrite attempts the rewrite rooted at n.
	MatchAndRewrite(rw *Rewriter, n ir.NodeID) (bool, error)
}

// Rewriter is the mutation surface handed to a pattern for one attempt.
//
// New nodes are inserted immediately before the root node, so they precede
// every use of the root's results. The first mutation snapshots the
// function; the driver restores that snapshot if the attempt fails.
type Rewriter struct {
	f        *ir.Function
	root     ir.NodeID
	snapshot *ir.Function
	created  []ir.NodeID
	produced []ir.ValueID
}

func newRewriter(f *ir.Function, root ir.NodeID) *Rewriter {
	return &Rewriter{f: f, root: root}
}

// Function returns the function being rewritten. Patterns read through it
// and mutate only through the Rewriter.
func (rw *Rewriter) Function() *ir.Function {
	return rw.f
}

// Root returns the node the attempt is rooted at.
func (rw *Rewriter) Root() ir.NodeID {
	return rw.root
}

// Create inserts a node before the root and returns it.
func (rw *Rewriter) Create(kind ir.Kind, operands []ir.ValueID, attrs ir.Attrs) (ir.NodeID, error) {
	rw.mutate()
	n, err := rw.f.InsertBefore(rw.root, kind, operands, attrs)
	if err != nil {
		return ir.NoNode, err
	}
	rw.created = append(rw.created, n)
	rw.produced = append(rw.produced, rw.f.Results(n)...)
	return n, nil
}

// CreateValue is Create for single-result nodes; it returns the result.
func (rw *Rewriter) CreateValue(kind ir.Kind, operands []ir.ValueID, attrs ir.Attrs) (ir.ValueID, error) {
	n, err := rw.Create(kind, operands, attrs)
	if err != nil {
		return ir.NoValue, err
	}
	return rw.f.Result(n), nil
}

// ReplaceAllUses rewires every use of old to replacement.
func (rw *Rewriter) ReplaceAllUses(old, replacement ir.ValueID) error {
	rw.mutate()
	if err := rw.f.ReplaceAllUses(old, replacement); err != nil {
		return err
	}
	rw.produced = append(rw.produced, replacement)
	return nil
}

// ReplaceOp replaces every result of n with the matching value and erases n.
func (rw *Rewriter) ReplaceOp(n ir.NodeID, values ...ir.ValueID) error {
	results := rw.f.Results(n)
	if len(results) != len(values) {
		return fmt.Errorf("replace %s: %d replacement value(s) for %d result(s)", rw.f.Kind(n), len(values), len(results))
	}
	for i, r := range results {
		if err := rw.ReplaceAllUses(r, values[i]); err != nil {
			return err
		}
	}
	return rw.Erase(n)
}

// Erase removes n, which must have no remaining uses.
func (rw *Rewriter) Erase(n ir.NodeID) error {
	rw.mutate()
	return rw.f.Erase(n)
}

func (rw *Rewriter) mutate() {
	if rw.snapshot == nil {
		rw.snapshot = rw.f.Clone()
	}
}

func (rw *Rewriter) mutated() bool {
	return rw.snapshot != nil
}

func (rw *Rewriter) rollback() {
	if rw.snapshot != nil {
		rw.f.Restore(rw.snapshot)
		rw.snapshot = nil
	}
}

// liveCreated returns the nodes created by the attempt that survived it.
func (rw *Rewriter) liveCreated() []ir.NodeID {
	var out []ir.NodeID
	for _, n := range rw.created {
		if !rw.f.IsErased(n) {
			out = append(out, n)
		}
	}
	return out
}
