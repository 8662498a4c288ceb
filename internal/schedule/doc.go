// Package schedule orders the leafs of a process network for sequential
// code emission.
//
// The order places every producer before its consumers. Feedback loops are
// broken at Delay leafs: a Delay may appear before the leaf that drives it,
// because the emitted code reads the stored value before the network body
// runs and stores the new value after it.
package schedule
