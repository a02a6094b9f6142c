package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/pixelarts/internal/canvas"
)

// Append records one edit for a canvas and returns the stored entry.
//
// full is the canvas key after the edit. delta lists the cells the edit
// changed; pass nil to force a snapshot. The first entry of a canvas is
// always a snapshot. Otherwise the entry is a delta unless DeltaRunLimit
// deltas already follow the latest snapshot, in which case full is stored.
//
// Input is validated before anything is written. The compaction scan and
// the insert it decides run in one transaction under the canvas lock.
func (s *Store) Append(ctx context.Context, canvasID string, full canvas.Key, delta canvas.Delta, authorID string) (canvas.Entry, error) {
	if canvasID == "" {
		return canvas.Entry{}, canvas.NewValidationError("canvas id is required")
	}
	key, err := canvas.ParseKey(string(full))
	if err != nil {
		return canvas.Entry{}, fmt.Errorf("append: %w", err)
	}
	if len(delta) > 0 {
		if err := delta.Validate(key.Cells()); err != nil {
			return canvas.Entry{}, fmt.Errorf("append: %w", err)
		}
	}

	unlock := s.locks.Lock(canvasID)
	defer unlock()

	var entry canvas.Entry
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		last, exists, err := lastSeq(ctx, tx, canvasID)
		if err != nil {
			return err
		}

		entry = canvas.Entry{
			CanvasID:  canvasID,
			Key:       key,
			AuthorID:  authorID,
			Timestamp: s.now().UTC().Truncate(time.Millisecond),
		}

		if exists {
			entry.Seq = last + 1

			if err := checkSize(ctx, tx, canvasID, key); err != nil {
				return err
			}

			if len(delta) > 0 {
				run, err := trailingDeltas(ctx, tx, canvasID, s.threshold)
				if err != nil {
					return err
				}
				if run < s.threshold {
					entry.IsDelta = true
					entry.Key = ""
					entry.Delta = delta
				}
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO canvas_log
			(canvas_id, seq, payload, is_delta, author_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			entry.CanvasID,
			entry.Seq,
			entry.Payload(),
			boolToInt(entry.IsDelta),
			entry.AuthorID,
			entry.Timestamp.UnixMilli(),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return canvas.NewConflictError(canvasID, entry.Seq, err)
			}
			return fmt.Errorf("insert entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return canvas.Entry{}, fmt.Errorf("append: %w", err)
	}

	s.metrics.Append(entry.Kind())
	return entry, nil
}

// RemoveLast deletes the highest-seq entry of a canvas and returns it.
// Returns a NotFound error if the canvas has no entries.
func (s *Store) RemoveLast(ctx context.Context, canvasID string) (canvas.Entry, error) {
	unlock := s.locks.Lock(canvasID)
	defer unlock()

	var removed canvas.Entry
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		removed, err = deleteLast(ctx, tx, canvasID)
		return err
	})
	if err != nil {
		return canvas.Entry{}, fmt.Errorf("remove last: %w", err)
	}

	s.metrics.Removal()
	return removed, nil
}

// UndoResult describes what Undo did to a canvas log.
type UndoResult struct {
	// Removed is the entry that was deleted, or nil if the log had a single
	// entry and was left untouched.
	Removed *canvas.Entry

	// Tail holds the entries from the latest remaining snapshot through the
	// new last entry, ascending. If no snapshot remains, Tail holds every
	// remaining entry so the caller can detect the inconsistency.
	Tail []canvas.Entry
}

// Undo removes the newest entry of a canvas unless it is the only one, and
// returns the entries needed to rebuild the resulting state. The removal
// and the read run in one transaction under the canvas lock.
//
// Returns a NotFound error if the canvas has no entries.
func (s *Store) Undo(ctx context.Context, canvasID string) (UndoResult, error) {
	unlock := s.locks.Lock(canvasID)
	defer unlock()

	var result UndoResult
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var count int64
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM canvas_log WHERE canvas_id = ?`, canvasID,
		).Scan(&count); err != nil {
			return fmt.Errorf("count entries: %w", err)
		}

		if count == 0 {
			return canvas.NewNotFoundError(canvasID)
		}

		if count > 1 {
			removed, err := deleteLast(ctx, tx, canvasID)
			if err != nil {
				return err
			}
			result.Removed = &removed
		}

		tail, err := querySinceSnapshot(ctx, tx, canvasID)
		if err != nil {
			return err
		}
		result.Tail = tail
		return nil
	})
	if err != nil {
		return UndoResult{}, fmt.Errorf("undo: %w", err)
	}

	if result.Removed != nil {
		s.metrics.Removal()
	}
	return result, nil
}

// lastSeq returns the highest seq for a canvas and whether any entry exists.
func lastSeq(ctx context.Context, tx *sql.Tx, canvasID string) (int64, bool, error) {
	var seq sql.NullInt64
	err := tx.QueryRowContext(ctx,
		`SELECT MAX(seq) FROM canvas_log WHERE canvas_id = ?`, canvasID,
	).Scan(&seq)
	if err != nil {
		return 0, false, fmt.Errorf("select last seq: %w", err)
	}
	return seq.Int64, seq.Valid, nil
}

// trailingDeltas counts deltas after the latest snapshot, stopping at limit.
// Reading the newest limit rows is enough to decide whether the run has
// reached the limit.
func trailingDeltas(ctx context.Context, tx *sql.Tx, canvasID string, limit int) (int, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT is_delta FROM canvas_log
		WHERE canvas_id = ?
		ORDER BY seq DESC
		LIMIT ?
	`, canvasID, limit)
	if err != nil {
		return 0, fmt.Errorf("scan delta run: %w", err)
	}
	defer rows.Close()

	run := 0
	for rows.Next() {
		var isDelta int
		if err := rows.Scan(&isDelta); err != nil {
			return 0, fmt.Errorf("scan delta run: %w", err)
		}
		if isDelta == 0 {
			break
		}
		run++
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate delta run: %w", err)
	}
	return run, nil
}

// checkSize rejects a key whose size differs from the canvas's latest snapshot.
func checkSize(ctx context.Context, tx *sql.Tx, canvasID string, key canvas.Key) error {
	var n sql.NullInt64
	err := tx.QueryRowContext(ctx, `
		SELECT length(payload) FROM canvas_log
		WHERE canvas_id = ? AND is_delta = 0
		ORDER BY seq DESC
		LIMIT 1
	`, canvasID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("select snapshot size: %w", err)
	}
	if n.Valid && int(n.Int64) != len(key) {
		return canvas.NewValidationError(fmt.Sprintf(
			"key has %d cells, canvas has %d", key.Cells(), int(n.Int64)/canvas.ColorWidth))
	}
	return nil
}

// deleteLast removes and returns the highest-seq entry of a canvas.
func deleteLast(ctx context.Context, tx *sql.Tx, canvasID string) (canvas.Entry, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM canvas_log
		WHERE canvas_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, canvasID)

	last, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return canvas.Entry{}, canvas.NewNotFoundError(canvasID)
	}
	if err != nil {
		return canvas.Entry{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM canvas_log WHERE canvas_id = ? AND seq = ?`, canvasID, last.Seq,
	); err != nil {
		return canvas.Entry{}, fmt.Errorf("delete entry: %w", err)
	}
	return last, nil
}

// isUniqueViolation reports whether err is a primary key or unique constraint failure.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
