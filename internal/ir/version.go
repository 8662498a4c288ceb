package ir

// Version constants for the snapshot format and the tool.
const (
	// SnapshotVersion is the snapshot schema version recorded with stored runs.
	SnapshotVersion = "1"

	// ToolVersion is the parsynth version.
	ToolVersion = "0.1.0"
)
