// Package ir provides the process network model that every other package
// operates on.
//
// A Network owns processes and ports in arenas. Handles are 1-based indices
// into those arenas and stay valid until the referenced entity is deleted.
// Connections live in one symmetric edge table.
//
// ir imports nothing internal. All other internal packages import ir.
package ir
