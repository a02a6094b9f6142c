// Package store provides SQLite-backed durable storage for canvas event logs.
//
// The store implements a per-canvas append-only log of snapshot and delta
// entries, plus the small tables the edit flow consults:
//   - canvas_log: (canvas_id, seq) ordered snapshots and deltas
//   - colour: each user's current paint colour
//   - image_hash: content-addressed image keys
//   - canvas_count: number of canvases ever created
//
// # Ordering and Compaction
//
// Sequence numbers start at 0 per canvas and are assigned at append time
// with no gaps. Entry 0 is always a snapshot. An edit supplied with a delta
// is stored as a delta only while fewer than DeltaRunLimit deltas follow the
// latest snapshot; otherwise the full key is stored. Replay depth is bounded
// by the same limit.
//
// # Serialization
//
// Append, RemoveLast and Undo take a per-canvas lock and run in a single
// transaction, so the compaction scan and the write it decides are atomic.
// Different canvases proceed concurrently up to SQLite's single writer.
// Reads are single statements and observe a committed state.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
