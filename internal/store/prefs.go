package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/pixelarts/internal/canvas"
)

// UserColour returns the colour a user paints with. A user seen for the
// first time is recorded with black.
func (s *Store) UserColour(ctx context.Context, userID string) (canvas.Color, error) {
	var v int64
	err := s.db.QueryRowContext(ctx,
		`SELECT hex_code FROM colour WHERE user_id = ?`, userID,
	).Scan(&v)
	if err == nil {
		return canvas.ColorFromInt(v), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("user colour: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO colour (user_id, hex_code) VALUES (?, 0)
		ON CONFLICT(user_id) DO NOTHING
	`, userID); err != nil {
		return "", fmt.Errorf("user colour: insert default: %w", err)
	}
	return canvas.Black, nil
}

// SetUserColour stores the colour a user paints with.
func (s *Store) SetUserColour(ctx context.Context, userID string, c canvas.Color) error {
	if !c.Valid() {
		return canvas.NewValidationError(fmt.Sprintf("invalid colour %q", c))
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO colour (user_id, hex_code) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET hex_code = excluded.hex_code
	`, userID, c.Int())
	if err != nil {
		return fmt.Errorf("set user colour: %w", err)
	}
	return nil
}
