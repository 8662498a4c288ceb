// Package analysis finds structural patterns in a process network.
//
// A contained section is a pair of leafs {Unzip, Zip} such that all flow
// leaving the Unzip reconverges at the Zip and all flow reaching the Zip
// diverged at the Unzip. A section is data parallel when its branches are
// equal-length chains of structurally identical Map leafs.
//
// Every query here is read-only. Traversals use explicit work stacks so
// deep networks cannot exhaust the goroutine stack.
package analysis
