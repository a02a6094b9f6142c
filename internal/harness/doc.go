// Package harness runs scripted canvas edit scenarios against the real
// service and checks the resulting event logs.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	delta_run_limit: 10
//	steps:
//	  - op: create
//	    canvas: a
//	    user: alice
//	  - op: set_colour
//	    user: alice
//	    color: "ff0000"
//	  - op: paint
//	    canvas: a
//	    user: alice
//	    cells: [0, 1]
//	    expect: { seq: 1, kind: delta }
//	  - op: undo
//	    canvas: a
//	    expect: { outcome: applied }
//	assertions:
//	  - type: key
//	    canvas: a
//	    fill: "ffffff"
//	    cells: { 0: "ff0000" }
//	  - type: log_shape
//	    canvas: a
//	    shape: "SD"
//
// Canvases are named by alias inside a scenario; the harness maps each
// alias to the id generated when the canvas is created. Painting an alias
// that was never created targets a canvas with no history.
//
// # Assertion Types
//
//   - key: the current key (or the key at seq) has the given cells
//   - log_shape: the log reads as the given S/D string, oldest first
//   - verified: replay finds no structural problem in the log
//   - user_colour: the user paints with the given colour
//   - op_count: the trace holds exactly count events for op
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory database with a
// deterministic clock (one second per append from testutil.Epoch) and
// sequential canvas ids, so transcripts are stable enough for golden
// file comparison.
package harness
