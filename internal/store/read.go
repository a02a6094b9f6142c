package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/pixelarts/internal/canvas"
)

// entryColumns is the column list scanEntry expects.
const entryColumns = `canvas_id, seq, payload, is_delta, author_id, created_at`

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// History returns every entry of a canvas ordered by seq ascending.
//
// Returns an empty slice (not nil) if the canvas has no entries. The result
// is a consistent snapshot: a concurrent append is either fully visible or
// not visible at all.
func (s *Store) History(ctx context.Context, canvasID string) ([]canvas.Entry, error) {
	entries, err := queryEntries(ctx, s.db, `
		SELECT `+entryColumns+`
		FROM canvas_log
		WHERE canvas_id = ?
		ORDER BY seq ASC
	`, canvasID)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return entries, nil
}

// SinceSnapshot returns the latest snapshot of a canvas followed by every
// later delta, ordered by seq ascending. This is all replay needs to derive
// the current key.
//
// If the canvas has entries but no snapshot, every entry is returned so the
// caller can report the inconsistency.
func (s *Store) SinceSnapshot(ctx context.Context, canvasID string) ([]canvas.Entry, error) {
	entries, err := querySinceSnapshot(ctx, s.db, canvasID)
	if err != nil {
		return nil, fmt.Errorf("since snapshot: %w", err)
	}
	return entries, nil
}

// Len returns the number of entries logged for a canvas.
func (s *Store) Len(ctx context.Context, canvasID string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM canvas_log WHERE canvas_id = ?`, canvasID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// ListCanvases returns the ids of all canvases with at least one entry,
// in binary order.
func (s *Store) ListCanvases(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT canvas_id FROM canvas_log
		ORDER BY canvas_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list canvases: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan canvas id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate canvas ids: %w", err)
	}
	return ids, nil
}

func querySinceSnapshot(ctx context.Context, q queryer, canvasID string) ([]canvas.Entry, error) {
	return queryEntries(ctx, q, `
		SELECT `+entryColumns+`
		FROM canvas_log
		WHERE canvas_id = ?1
		  AND seq >= COALESCE(
			(SELECT MAX(seq) FROM canvas_log WHERE canvas_id = ?1 AND is_delta = 0), 0)
		ORDER BY seq ASC
	`, canvasID)
}

func queryEntries(ctx context.Context, q queryer, query string, args ...any) ([]canvas.Entry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []canvas.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// scanEntry decodes one canvas_log row.
func scanEntry(row rowScanner) (canvas.Entry, error) {
	var (
		e         canvas.Entry
		payload   string
		isDelta   int
		createdAt int64
	)
	if err := row.Scan(&e.CanvasID, &e.Seq, &payload, &isDelta, &e.AuthorID, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return canvas.Entry{}, err
		}
		return canvas.Entry{}, fmt.Errorf("scan entry: %w", err)
	}

	e.IsDelta = isDelta == 1
	e.Timestamp = time.UnixMilli(createdAt).UTC()

	if e.IsDelta {
		d, err := canvas.DecodeDelta(payload)
		if err != nil {
			return canvas.Entry{}, fmt.Errorf("decode entry %s/%d: %w", e.CanvasID, e.Seq, err)
		}
		e.Delta = d
	} else {
		e.Key = canvas.Key(payload)
	}
	return e, nil
}
