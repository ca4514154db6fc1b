// Package ir provides the tensor graph IR consumed by the rewrite driver and
// the TPP precondition patterns.
//
// A Function owns two arenas: nodes and values. Both are addressed by stable
// integer handles (NodeID, ValueID) so that erasing a node never leaves a
// dangling pointer behind. Every value records its producer and an ordered
// list of uses; every mutation (InsertBefore, ReplaceAllUses, Erase) keeps
// the use lists and the operand lists in agreement.
//
// This package imports nothing internal. All other internal packages import
// ir; ir is the foundational layer.
//
// Key design constraints:
//   - Shapes are fully static (no dynamic extents)
//   - Result types are a pure function of operand types and attributes
//   - Document order is explicit (Function.Body) and never derived from maps
//   - Erased nodes stay in the arena but are never visited again
package ir
