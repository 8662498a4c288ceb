// Package pipeline drives a process network through the rewrite passes and
// the scheduler.
//
// A Pipeline is built from a Config. It runs the passes strictly one after
// another on the caller's goroutine, because every pass mutates the network
// in place and later passes rely on the shape earlier passes leave behind
// (fusion expects split sections, for example).
//
// Each pass is reported to an optional Recorder with the network
// fingerprint before and after it, so a stored run shows exactly which
// passes changed the graph.
package pipeline
