// Package rewrite implements the graph-mutating passes that turn raw
// unzip/map/zip motifs into CoalescedMap and ParallelMap leafs.
//
// Every pass follows the same transaction: allocate the replacement leaf,
// move the boundary ports of the old region onto it, and only then destroy
// the old region. A pass aborts on the first violated invariant and returns
// an *ir.Error naming the offending process.
//
// Passes mutate the network in place and must run one at a time.
package rewrite
