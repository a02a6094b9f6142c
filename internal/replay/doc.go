// Package replay derives canvas state from event log entries.
//
// Everything here is a pure fold over an in-memory slice of entries as
// returned by the store. Stored payloads are never modified: undo is
// expressed as "drop the newest entry, then fold forward from the
// latest remaining snapshot".
//
// # Folding
//
// Fold locates the latest snapshot in the slice and applies every later
// delta in sequence order. Deltas that precede the latest snapshot are
// never consulted. A slice with entries but no snapshot is an
// inconsistent log and yields an INCONSISTENT_LOG error.
//
// # Auditing
//
// DeltaRuns and Verify check a full history against the invariants the
// store is expected to maintain: dense sequence numbers starting at 0, a
// snapshot first, bounded delta runs, and a fixed canvas size.
package replay
