// Package harness runs pipeline scenarios as executable contract tests.
//
// A scenario names one network, a pipeline configuration and assertions on
// the rewritten network, the pass trace and the schedule.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	source: networks/section.cue   # or an inline "network:" snapshot
//	network_name: section           # optional when source declares one network
//	config:
//	  target: cuda
//	  coalesce: true
//	assertions:
//	  - type: kind_count
//	    kind: parallelmap
//	    count: 1
//	  - type: schedule_valid
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - sections: Number of contained sections left in the final network
//   - data_parallel: Number of data parallel sections left
//   - kind_count: Number of processes of one kind
//   - functions: Function names carried by a process, in order
//   - schedule_before: One process is scheduled before another
//   - schedule_valid: The schedule passes schedule.Verify
//   - pass_changed: Whether a pass modified the network
//
// # Deterministic Testing
//
// All scenarios execute with a fixed clock and run ID. The pipeline records
// into an in-memory SQLite store and the trace is read back from it, so the
// trace is exactly what a stored run would show.
//
// Rewrites allocate process Ids deterministically, so identical scenarios
// produce identical traces for golden file comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/fuse_section.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
