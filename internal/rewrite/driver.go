package rewrite

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/tppenforce/internal/ir"
)

// DefaultMaxIterations is the default cap on outer iterations per Apply.
const DefaultMaxIterations = 10

// Driver applies registered patterns to a function until a fixed point.
//
// A Driver holds no per-function state between Apply calls; the worklist
// and iteration budget are private to each call. A Driver must not be used
// from several goroutines at once.
type Driver struct {
	patterns      []Pattern // Registration order is evaluation order
	maxIterations int
	logger        *slog.Logger
	clock         *Clock
}

// Option configures a Driver.
type Option func(*Driver)

// WithMaxIterations sets the outer iteration cap.
//
// Default: 10 (DefaultMaxIterations). Values below 1 keep the default.
func WithMaxIterations(n int) Option {
	return func(d *Driver) {
		if n >= 1 {
			d.maxIterations = n
		}
	}
}

// WithLogger sets the logger used for match and summary records.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithClock shares clock across Apply calls so event Seq values stay
// unique over a whole run. By default each Apply numbers from 1.
func WithClock(clock *Clock) Option {
	return func(d *Driver) {
		d.clock = clock
	}
}

// NewDriver creates a Driver with no patterns.
func NewDriver(opts ...Option) *Driver {
	d := &Driver{
		maxIterations: DefaultMaxIterations,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RegisterPatterns appends patterns to the registration list.
//
// Registration order is evaluation order. Passing nil clears the list.
// A nil pattern, an empty name, or a name already registered rejects the
// whole call and leaves the list unchanged.
func (d *Driver) RegisterPatterns(patterns []Pattern) error {
	if patterns == nil {
		d.patterns = nil
		return nil
	}

	seen := make(map[string]bool, len(d.patterns)+len(patterns))
	for _, p := range d.patterns {
		seen[p.Name()] = true
	}
	for i, p := range patterns {
		if p == nil {
			return &Error{Code: ErrCodeInvalidPattern, Message: fmt.Sprintf("nil pattern at index %d", i), Node: ir.NoNode}
		}
		if p.Name() == "" {
			return &Error{Code: ErrCodeInvalidPattern, Message: fmt.Sprintf("pattern at index %d has no name", i), Node: ir.NoNode}
		}
		if seen[p.Name()] {
			return &Error{Code: ErrCodeDuplicatePattern, Message: "pattern already registered", Pattern: p.Name(), Node: ir.NoNode}
		}
		seen[p.Name()] = true
	}

	d.patterns = append(d.patterns, patterns...)
	return nil
}

// Patterns returns the registered pattern names in evaluation order.
func (d *Driver) Patterns() []string {
	names := make([]string, len(d.patterns))
	for i, p := range d.patterns {
		names[i] = p.Name()
	}
	return names
}

// Event records one applied rewrite.
type Event struct {
	Seq       int64       // Logical clock stamp
	Iteration int         // Outer iteration, starting at 1
	Pattern   string      // Name of the pattern that fired
	Root      ir.NodeID   // Node the rewrite was rooted at
	RootKind  ir.Kind     // Kind of the root node
	Created   []ir.NodeID // Nodes created by the rewrite that are still live
}

// Result summarizes an Apply call.
type Result struct {
	// Converged is true if the last iteration made no rewrite.
	Converged bool

	// Iterations is the number of outer iterations run.
	Iterations int

	// Rewrites lists every applied rewrite in order.
	Rewrites []Event
}

// Count returns the number of rewrites performed by pattern, or by every
// pattern when pattern is empty.
func (r *Result) Count(pattern string) int {
	if pattern == "" {
		return len(r.Rewrites)
	}
	count := 0
	for _, ev := range r.Rewrites {
		if ev.Pattern == pattern {
			count++
		}
	}
	return count
}

// Apply rewrites f in place until no pattern matches or the iteration cap
// is reached.
//
// The returned Result is non-nil even on error and describes the rewrites
// committed before the failure. A failing pattern leaves f as it was
// before that attempt.
func (d *Driver) Apply(f *ir.Function) (*Result, error) {
	clock := d.clock
	if clock == nil {
		clock = NewClock()
	}
	budget := NewIterationBudget(d.maxIterations)
	res := &Result{}

	for {
		if err := budget.Check(f.Name); err != nil {
			d.logger.Warn("rewrite stopped at iteration cap",
				"function", f.Name,
				"max_iterations", budget.MaxIterations(),
				"rewrites", len(res.Rewrites))
			break
		}
		res.Iterations = budget.Current()

		changed, err := d.iterate(f, res.Iterations, clock, res)
		if err != nil {
			return res, err
		}
		if !changed {
			res.Converged = true
			break
		}
	}

	d.logger.Info("rewrite complete",
		"function", f.Name,
		"rewrites", len(res.Rewrites),
		"iterations", res.Iterations,
		"converged", res.Converged)
	return res, nil
}

// iterate runs one outer iteration and reports whether anything changed.
func (d *Driver) iterate(f *ir.Function, iteration int, clock *Clock, res *Result) (bool, error) {
	wl := newWorklist()
	for _, n := range f.Body() {
		wl.Push(n)
	}

	changed := false
	for {
		n, ok := wl.Pop()
		if !ok {
			return changed, nil
		}
		if f.IsErased(n) {
			continue
		}

		kind := f.Kind(n)
		for _, p := range d.patterns {
			if p.Root() != kind {
				continue
			}
			rw, applied, err := d.attempt(f, p, n)
			if err != nil {
				return changed, err
			}
			if !applied {
				continue
			}

			changed = true
			ev := Event{
				Seq:       clock.Next(),
				Iteration: iteration,
				Pattern:   p.Name(),
				Root:      n,
				RootKind:  kind,
				Created:   rw.liveCreated(),
			}
			res.Rewrites = append(res.Rewrites, ev)
			d.logger.Debug("pattern applied",
				"pattern", ev.Pattern,
				"node", ev.Root,
				"kind", ev.RootKind.String(),
				"iteration", iteration,
				"seq", ev.Seq)

			for _, v := range rw.produced {
				if def, ok := f.DefiningNode(v); ok && f.IsErased(def) {
					continue
				}
				for _, u := range f.Users(v) {
					wl.Push(u)
				}
			}
			for _, c := range ev.Created {
				wl.Push(c)
			}
			break
		}
	}
}

// attempt runs one pattern on one node with rollback on failure.
func (d *Driver) attempt(f *ir.Function, p Pattern, n ir.NodeID) (*Rewriter, bool, error) {
	rw := newRewriter(f, n)
	applied, err := p.MatchAndRewrite(rw, n)
	if err != nil {
		rw.rollback()
		d.logger.Error("pattern failed",
			"pattern", p.Name(),
			"node", n,
			"error", err)
		return nil, false, newPatternError(p.Name(), n, err)
	}
	if !applied && rw.mutated() {
		rw.rollback()
		return nil, false, &Error{
			Code:    ErrCodeInvalidPattern,
			Message: "pattern mutated the function and reported no match",
			Pattern: p.Name(),
			Node:    n,
		}
	}
	return rw, applied, nil
}
