// Package store provides SQLite-backed storage for pipeline runs.
//
// The store records:
//   - Runs: target, pass order, input network and outcome
//   - Pass records: fingerprint before and after each pass plus the
//     network snapshot it left behind
//   - Schedules: the final leaf order of a successful run
//
// Network snapshots are stored as msgpack blobs. Pass name lists are stored
// as canonical JSON text.
//
// # Ordering
//
// Runs are listed by seq, a per-store counter assigned on insert. Pass
// records by idx and schedules by position. Timestamps are informational
// only.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait up to 5s for locks
//   - foreign_keys=ON: Referential integrity
//
// Store implements pipeline.Recorder.
package store
