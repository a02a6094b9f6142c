package canvas

import "time"

// Entry is one immutable record in a canvas's event log.
//
// Exactly one of Key and Delta is meaningful: a snapshot (IsDelta=false)
// carries the full Key, a delta carries only the changed cells.
type Entry struct {
	CanvasID  string    `json:"canvas_id"`
	Seq       int64     `json:"seq"`
	IsDelta   bool      `json:"is_delta"`
	Key       Key       `json:"key,omitempty"`
	Delta     Delta     `json:"delta,omitempty"`
	AuthorID  string    `json:"author_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Payload returns the stored string form of the entry.
func (e Entry) Payload() string {
	if e.IsDelta {
		return e.Delta.Encode()
	}
	return string(e.Key)
}

// Kind returns "delta" or "snapshot".
func (e Entry) Kind() string {
	if e.IsDelta {
		return "delta"
	}
	return "snapshot"
}

// MaxDeltaRun is the compaction threshold: once this many deltas follow the
// latest snapshot, the next edit is stored as a snapshot. Replay therefore
// never applies more than MaxDeltaRun deltas on top of a snapshot.
const MaxDeltaRun = 10
