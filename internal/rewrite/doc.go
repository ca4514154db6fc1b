// Package rewrite implements the greedy pattern-rewrite driver.
//
// The driver owns a private worklist of nodes and offers each popped node to
// every registered Pattern whose root kind matches, in registration order.
// The first pattern that rewrites the node wins; the users of every value the
// rewrite produced, and every node it created, are pushed back onto the
// worklist.
//
// ARCHITECTURE:
//
// Outer iterations:
// Each outer iteration seeds the worklist with every live node in document
// order and drains it. If any rewrite happened, another iteration starts from
// the whole body. The driver stops at the first clean iteration (fixed point)
// or when the iteration budget is spent. Hitting the budget is not an error;
// Result.Converged reports it.
//
// All-or-nothing rewrites:
// A Rewriter snapshots the function before the first mutation of a pattern
// attempt. If the pattern fails, the function is restored and the error
// propagates out of Apply.
//
// CRITICAL PATTERNS:
//
// Logical clock:
// Every applied rewrite is stamped with a strictly increasing Seq from Clock.
// Wall-clock time never orders events.
//
// Deterministic scheduling:
// Patterns are tried in registration order, the worklist is FIFO and never
// ranges over a map. Given the same function and the same patterns, Apply
// performs the same rewrites in the same order.
package rewrite
