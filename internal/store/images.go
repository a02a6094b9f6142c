package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/pixelarts/internal/canvas"
)

// PutImageHash registers a key under its content hash and returns the hash.
// Registering the same key twice is a no-op.
func (s *Store) PutImageHash(ctx context.Context, size int, key canvas.Key) (string, error) {
	hash := canvas.ImageHash(size, key)
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO image_hash (hash, key) VALUES (?, ?)
	`, hash, fmt.Sprintf("%d-%s", size, key))
	if err != nil {
		return "", fmt.Errorf("put image hash: %w", err)
	}
	return hash, nil
}

// ImageKey resolves a hash registered with PutImageHash.
// ok is false if the hash is unknown or its stored form is unreadable.
func (s *Store) ImageKey(ctx context.Context, hash string) (size int, key canvas.Key, ok bool, err error) {
	var stored string
	err = s.db.QueryRowContext(ctx,
		`SELECT key FROM image_hash WHERE hash = ?`, hash,
	).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", false, nil
	}
	if err != nil {
		return 0, "", false, fmt.Errorf("image key: %w", err)
	}

	sizeStr, rest, found := strings.Cut(stored, "-")
	if !found {
		return 0, "", false, nil
	}
	size, convErr := strconv.Atoi(sizeStr)
	if convErr != nil {
		return 0, "", false, nil
	}
	return size, canvas.Key(rest), true, nil
}

// IncrementCanvasCount bumps the global canvas counter and returns the new value.
func (s *Store) IncrementCanvasCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO canvas_count (id, count) VALUES (0, 1)
		ON CONFLICT(id) DO UPDATE SET count = count + 1
		RETURNING count
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("increment canvas count: %w", err)
	}
	return n, nil
}

// CanvasCount returns the number of canvases ever created.
func (s *Store) CanvasCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT count FROM canvas_count WHERE id = 0`,
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("canvas count: %w", err)
	}
	return n, nil
}
