// Package tpp legalizes tagged contractions for TPP micro-kernels.
//
// A contraction tagged "tpp.matmul" can only be handed to the kernel library
// when its lane dimension (C's columns) is a multiple of 16 and its block
// dimension (C's rows) is a multiple of 6. Run rewrites a function until
// every such contraction satisfies both, by zero-padding its operands,
// computing on the padded shapes and extracting the original result.
//
// Patterns, in registration order:
//
//   - AlignContraction pads misaligned contractions.
//   - FoldPadChain merges two stacked high-only pads with the same fill,
//     which collapses the double pad alignment leaves on C.
//   - GeneralizePad lowers a high-only pad to empty+fill+insert. It is an
//     extension point that is only registered on request and, with the
//     default feasibility predicate, never fires.
package tpp
