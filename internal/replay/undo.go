package replay

import (
	"github.com/roach88/pixelarts/internal/canvas"
)

// UndoOutcome says what an undo did.
type UndoOutcome int

const (
	// UndoEmpty means the log had no entries.
	UndoEmpty UndoOutcome = iota

	// UndoNothing means the log had one entry, which was kept. The
	// returned key is that entry's key.
	UndoNothing

	// UndoApplied means the newest entry was dropped and the returned key
	// is the state before it.
	UndoApplied
)

func (o UndoOutcome) String() string {
	switch o {
	case UndoEmpty:
		return "empty"
	case UndoNothing:
		return "nothing"
	case UndoApplied:
		return "applied"
	}
	return "unknown"
}

// UndoResult is the outcome of an undo together with the resulting key.
type UndoResult struct {
	Outcome UndoOutcome
	Key     canvas.Key
}

// Undo applies undo to an in-memory history. It returns the result and the
// entries that remain; entries itself is not modified.
func Undo(entries []canvas.Entry) (UndoResult, []canvas.Entry, error) {
	switch len(entries) {
	case 0:
		return UndoResult{Outcome: UndoEmpty}, entries, nil
	case 1:
		key, err := Fold(entries)
		if err != nil {
			return UndoResult{}, entries, err
		}
		return UndoResult{Outcome: UndoNothing, Key: key}, entries, nil
	}

	remaining := entries[:len(entries)-1:len(entries)-1]
	key, err := Fold(remaining)
	if err != nil {
		return UndoResult{}, remaining, err
	}
	return UndoResult{Outcome: UndoApplied, Key: key}, remaining, nil
}

// AfterRemoval folds the tail the store returns from its atomic undo.
// removed reports whether the store deleted an entry.
func AfterRemoval(tail []canvas.Entry, removed bool) (UndoResult, error) {
	if len(tail) == 0 {
		return UndoResult{Outcome: UndoEmpty}, nil
	}
	key, err := Fold(tail)
	if err != nil {
		return UndoResult{}, err
	}
	if !removed {
		return UndoResult{Outcome: UndoNothing, Key: key}, nil
	}
	return UndoResult{Outcome: UndoApplied, Key: key}, nil
}
