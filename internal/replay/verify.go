package replay

import (
	"fmt"

	"github.com/roach88/pixelarts/internal/canvas"
)

// DeltaRuns returns the length of every maximal run of deltas that
// follows a snapshot, in log order. A log whose snapshots are adjacent
// contributes zero-length runs.
func DeltaRuns(entries []canvas.Entry) []int {
	var runs []int
	run := -1
	for _, e := range entries {
		if !e.IsDelta {
			if run >= 0 {
				runs = append(runs, run)
			}
			run = 0
			continue
		}
		if run >= 0 {
			run++
		}
	}
	if run >= 0 {
		runs = append(runs, run)
	}
	return runs
}

// Problem is one invariant violation found by Verify.
type Problem struct {
	Seq     int64  `json:"seq"`
	Message string `json:"message"`
}

// Report summarises a history audit.
type Report struct {
	CanvasID  string     `json:"canvas_id"`
	Entries   int        `json:"entries"`
	Snapshots int        `json:"snapshots"`
	Deltas    int        `json:"deltas"`
	MaxRun    int        `json:"max_run"`
	Key       canvas.Key `json:"key,omitempty"`
	Problems  []Problem  `json:"problems,omitempty"`
}

// OK reports whether the audit found no problems.
func (r Report) OK() bool { return len(r.Problems) == 0 }

// Verify audits a full canvas history against the log invariants. limit
// is the maximum delta run allowed after a snapshot.
func Verify(canvasID string, entries []canvas.Entry, limit int) Report {
	r := Report{CanvasID: canvasID, Entries: len(entries)}
	add := func(seq int64, format string, args ...any) {
		r.Problems = append(r.Problems, Problem{Seq: seq, Message: fmt.Sprintf(format, args...)})
	}

	size := 0
	for i, e := range entries {
		if e.Seq != int64(i) {
			add(e.Seq, "expected seq %d", i)
		}
		if e.IsDelta {
			r.Deltas++
			if i == 0 {
				add(e.Seq, "first entry is a delta")
			}
			continue
		}
		r.Snapshots++
		s, err := e.Key.Size()
		if err != nil {
			add(e.Seq, "snapshot: %v", err)
			continue
		}
		if size == 0 {
			size = s
		} else if s != size {
			add(e.Seq, "snapshot size %d differs from %d", s, size)
		}
	}

	for _, n := range DeltaRuns(entries) {
		if n > r.MaxRun {
			r.MaxRun = n
		}
	}
	if r.MaxRun > limit {
		add(-1, "delta run of %d exceeds limit %d", r.MaxRun, limit)
	}

	if len(entries) > 0 {
		key, err := Fold(entries)
		if err != nil {
			add(entries[len(entries)-1].Seq, "fold: %v", err)
		} else {
			r.Key = key
		}
	}
	return r
}
