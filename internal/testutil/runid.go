package testutil

import (
	"fmt"
	"sync"
)

// SequentialRunIDs generates predictable run ids for tests.
//
// This enables deterministic journal contents and golden output comparison:
// the same test produces the same ids every time ("run-0001", "run-0002", ...).
//
// Thread-safety: SequentialRunIDs is safe for concurrent use via internal mutex.
type SequentialRunIDs struct {
	mu     sync.Mutex
	prefix string
	next   int
}

// NewSequentialRunIDs creates a generator producing prefix-0001, prefix-0002, ...
//
// If prefix is empty, "run" is used.
func NewSequentialRunIDs(prefix string) *SequentialRunIDs {
	if prefix == "" {
		prefix = "run"
	}
	return &SequentialRunIDs{prefix: prefix}
}

// Generate returns the next run id.
//
// Implements store.RunIDGenerator interface.
func (g *SequentialRunIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("%s-%04d", g.prefix, g.next)
}
