package replay

import (
	"fmt"

	"github.com/roach88/pixelarts/internal/canvas"
)

// LatestSnapshot returns the index of the last snapshot in entries, or -1.
func LatestSnapshot(entries []canvas.Entry) int {
	for i := len(entries) - 1; i >= 0; i-- {
		if !entries[i].IsDelta {
			return i
		}
	}
	return -1
}

// Fold returns the canvas key after applying entries in order.
//
// Entries must be ascending by Seq and belong to one canvas. Returns a
// NOT_FOUND error for an empty slice and an INCONSISTENT_LOG error if no
// snapshot is present.
func Fold(entries []canvas.Entry) (canvas.Key, error) {
	if len(entries) == 0 {
		return "", canvas.NewNotFoundError("")
	}
	start := LatestSnapshot(entries)
	if start < 0 {
		last := entries[len(entries)-1]
		return "", canvas.NewInconsistentLogError(last.CanvasID, last.Seq)
	}

	key := entries[start].Key
	for _, e := range entries[start+1:] {
		next, err := key.Apply(e.Delta)
		if err != nil {
			return "", fmt.Errorf("apply %s/%d: %w", e.CanvasID, e.Seq, err)
		}
		key = next
	}
	return key, nil
}

// FoldAll returns the key after every entry, one per entry. The first
// entry must be a snapshot.
func FoldAll(entries []canvas.Entry) ([]canvas.Key, error) {
	keys := make([]canvas.Key, 0, len(entries))
	var key canvas.Key
	for _, e := range entries {
		if !e.IsDelta {
			key = e.Key
			keys = append(keys, key)
			continue
		}
		if key == "" {
			return nil, canvas.NewInconsistentLogError(e.CanvasID, e.Seq)
		}
		next, err := key.Apply(e.Delta)
		if err != nil {
			return nil, fmt.Errorf("apply %s/%d: %w", e.CanvasID, e.Seq, err)
		}
		key = next
		keys = append(keys, key)
	}
	return keys, nil
}

// KeyAt returns the key as it was right after the entry with the given seq.
// Only the entries from the nearest snapshot at or before seq are folded.
func KeyAt(entries []canvas.Entry, seq int64) (canvas.Key, error) {
	end := -1
	for i, e := range entries {
		if e.Seq == seq {
			end = i
			break
		}
	}
	if end < 0 {
		return "", &canvas.Error{
			Code:    canvas.ErrCodeNotFound,
			Message: fmt.Sprintf("no entry with seq %d", seq),
		}
	}
	return Fold(entries[:end+1])
}
