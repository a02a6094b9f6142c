// Package canvas provides the value types shared by every other package:
// colours, canvas keys, deltas, log entries and the error taxonomy.
//
// This package imports nothing internal. The store, replay, render and
// canvasd packages all depend on it; it depends on none of them.
//
// Key design constraints:
//   - A Key is N concatenated lowercase 6-hex colours, N = size*size
//   - Sizes are restricted to 5, 10, 15, 20 and 25
//   - Entry values are immutable once appended; undo only ever removes the newest entry
//   - Delta cells are applied in stored order (last write wins inside one delta)
package canvas
