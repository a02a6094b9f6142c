// Package canvasd is the canvas service: it turns user commands into
// event log writes and serves the derived state.
//
// Every read-modify-write of a canvas (paint, undo) holds a per-canvas
// lock for its whole duration, so the full key written with each entry
// is always derived from the latest entry. The store serialises its own
// writes independently; the two lock maps never nest in the other order.
package canvasd

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/roach88/pixelarts/internal/canvas"
	"github.com/roach88/pixelarts/internal/decor"
	"github.com/roach88/pixelarts/internal/keylock"
	"github.com/roach88/pixelarts/internal/palette"
	"github.com/roach88/pixelarts/internal/render"
	"github.com/roach88/pixelarts/internal/replay"
	"github.com/roach88/pixelarts/internal/store"
)

// DecorateTimeout bounds how long a user-facing request waits for swatch
// uploads and name lookups.
const DecorateTimeout = 60 * time.Second

// Swatcher resolves colours to uploaded swatches.
type Swatcher interface {
	Get(ctx context.Context, c canvas.Color) (decor.Asset, error)
}

// Service implements canvas operations on top of the store.
type Service struct {
	store    *store.Store
	renderer *render.Renderer
	swatches Swatcher
	names    palette.Namer
	palette  *palette.Palette
	ids      IDGenerator
	domain   string
	logger   *slog.Logger
	timeout  time.Duration

	locks keylock.Map
}

// Deps are the collaborators of a Service. Store is required; the rest
// are only needed by the operations that use them.
type Deps struct {
	Store    *store.Store
	Renderer *render.Renderer
	Swatches Swatcher
	Names    palette.Namer
	Palette  *palette.Palette
	IDs      IDGenerator
	Domain   string
	Logger   *slog.Logger

	// DecorateTimeout overrides DecorateTimeout when positive.
	DecorateTimeout time.Duration
}

// New returns a Service.
func New(d Deps) *Service {
	s := &Service{
		store:    d.Store,
		renderer: d.Renderer,
		swatches: d.Swatches,
		names:    d.Names,
		palette:  d.Palette,
		ids:      d.IDs,
		domain:   d.Domain,
		logger:   d.Logger,
		timeout:  d.DecorateTimeout,
	}
	if s.ids == nil {
		s.ids = UUIDv7Generator{}
	}
	if s.palette == nil {
		s.palette = palette.Default()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.timeout <= 0 {
		s.timeout = DecorateTimeout
	}
	return s
}

// Create starts a new all-white canvas and returns its first entry.
func (s *Service) Create(ctx context.Context, size int, authorID string) (canvas.Entry, error) {
	key, err := canvas.Fill(size, canvas.White)
	if err != nil {
		return canvas.Entry{}, err
	}
	id := s.ids.Generate()

	entry, err := s.store.Append(ctx, id, key, nil, authorID)
	if err != nil {
		return canvas.Entry{}, fmt.Errorf("create canvas: %w", err)
	}
	n, err := s.store.IncrementCanvasCount(ctx)
	if err != nil {
		return canvas.Entry{}, fmt.Errorf("count canvas: %w", err)
	}
	s.logger.Info("canvas created", "canvas", id, "size", size, "author", authorID, "total", n)
	return entry, nil
}

// PaintResult is the outcome of a paint.
type PaintResult struct {
	Entry canvas.Entry `json:"entry"`
	Key   canvas.Key   `json:"key"`
}

// Paint sets one cell to the user's current colour.
func (s *Service) Paint(ctx context.Context, canvasID, userID string, cell int) (PaintResult, error) {
	c, err := s.store.UserColour(ctx, userID)
	if err != nil {
		return PaintResult{}, fmt.Errorf("paint: %w", err)
	}
	return s.PaintCells(ctx, canvasID, userID, canvas.Delta{{Index: cell, Color: c}})
}

// PaintCells applies a delta on behalf of userID.
func (s *Service) PaintCells(ctx context.Context, canvasID, userID string, delta canvas.Delta) (PaintResult, error) {
	if len(delta) == 0 {
		return PaintResult{}, canvas.NewValidationError("paint needs at least one cell")
	}

	unlock := s.locks.Lock(canvasID)
	defer unlock()

	current, err := s.current(ctx, canvasID)
	if err != nil {
		return PaintResult{}, err
	}
	next, err := current.Apply(delta)
	if err != nil {
		return PaintResult{}, err
	}

	entry, err := s.store.Append(ctx, canvasID, next, delta, userID)
	if err != nil {
		return PaintResult{}, err
	}
	s.logger.Debug("painted", "canvas", canvasID, "user", userID, "seq", entry.Seq, "kind", entry.Kind())
	return PaintResult{Entry: entry, Key: next}, nil
}

// Undo drops the newest entry of a canvas unless it is the only one. An
// empty canvas yields UndoEmpty rather than an error.
func (s *Service) Undo(ctx context.Context, canvasID string) (replay.UndoResult, error) {
	unlock := s.locks.Lock(canvasID)
	defer unlock()

	res, err := s.store.Undo(ctx, canvasID)
	if canvas.IsNotFound(err) {
		return replay.UndoResult{Outcome: replay.UndoEmpty}, nil
	}
	if err != nil {
		return replay.UndoResult{}, err
	}

	out, err := replay.AfterRemoval(res.Tail, res.Removed != nil)
	if err != nil {
		s.logger.Error("undo left an inconsistent log", "canvas", canvasID, "error", err)
		return replay.UndoResult{}, err
	}
	return out, nil
}

// Current returns the latest key of a canvas.
func (s *Service) Current(ctx context.Context, canvasID string) (canvas.Key, error) {
	return s.current(ctx, canvasID)
}

func (s *Service) current(ctx context.Context, canvasID string) (canvas.Key, error) {
	tail, err := s.store.SinceSnapshot(ctx, canvasID)
	if err != nil {
		return "", err
	}
	if len(tail) == 0 {
		return "", canvas.NewNotFoundError(canvasID)
	}
	return replay.Fold(tail)
}

// KeyAt returns the key right after the entry with the given seq.
func (s *Service) KeyAt(ctx context.Context, canvasID string, seq int64) (canvas.Key, error) {
	history, err := s.History(ctx, canvasID)
	if err != nil {
		return "", err
	}
	return replay.KeyAt(history, seq)
}

// History returns every entry of a canvas. A canvas with no entries is
// NOT_FOUND.
func (s *Service) History(ctx context.Context, canvasID string) ([]canvas.Entry, error) {
	history, err := s.store.History(ctx, canvasID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, canvas.NewNotFoundError(canvasID)
	}
	return history, nil
}

// Canvases lists every canvas id.
func (s *Service) Canvases(ctx context.Context) ([]string, error) {
	return s.store.ListCanvases(ctx)
}

// Timelapse renders, or reuses, the video of a canvas's history. Edits do
// not invalidate a published video; callers wanting a fresh one discard it
// through the renderer first, as the CLI's render --force does.
func (s *Service) Timelapse(ctx context.Context, canvasID string) (render.Result, error) {
	if s.renderer == nil {
		return render.Result{}, fmt.Errorf("timelapse: no renderer configured")
	}
	return s.renderer.Timelapse(ctx, canvasID)
}

// Verify audits one canvas's history.
func (s *Service) Verify(ctx context.Context, canvasID string) (replay.Report, error) {
	history, err := s.store.History(ctx, canvasID)
	if err != nil {
		return replay.Report{}, err
	}
	r := replay.Verify(canvasID, history, s.store.DeltaRunLimit())

	// The state served to users comes from the tail alone; it must agree.
	if current, err := s.current(ctx, canvasID); err == nil && r.Key != "" && current != r.Key {
		r.Problems = append(r.Problems, replay.Problem{Seq: -1, Message: "tail fold differs from full fold"})
	}
	return r, nil
}

// VerifyAll audits every canvas.
func (s *Service) VerifyAll(ctx context.Context) ([]replay.Report, error) {
	ids, err := s.store.ListCanvases(ctx)
	if err != nil {
		return nil, err
	}
	reports := make([]replay.Report, 0, len(ids))
	for _, id := range ids {
		r, err := s.Verify(ctx, id)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// Colour returns a user's current colour.
func (s *Service) Colour(ctx context.Context, userID string) (canvas.Color, error) {
	return s.store.UserColour(ctx, userID)
}

// SetColour parses and stores a user's colour.
func (s *Service) SetColour(ctx context.Context, userID, raw string) (canvas.Color, error) {
	c, err := canvas.ParseColor(raw)
	if err != nil {
		return "", err
	}
	if err := s.store.SetUserColour(ctx, userID, c); err != nil {
		return "", err
	}
	return c, nil
}

// Swatch returns the uploaded swatch for a colour, waiting at most the
// decorate timeout.
func (s *Service) Swatch(ctx context.Context, c canvas.Color) (decor.Asset, error) {
	if s.swatches == nil {
		return decor.Asset{}, fmt.Errorf("swatch: no asset store configured")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.swatches.Get(ctx, c)
}

// Picker builds the colour picker for a user. extras are colours carried
// over from a previous picker.
func (s *Service) Picker(ctx context.Context, userID string, extras []canvas.Color) ([]palette.Option, error) {
	if s.names == nil || s.swatches == nil {
		return nil, fmt.Errorf("picker: colour names and swatches are required")
	}
	def, err := s.store.UserColour(ctx, userID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	pk := palette.NewPicker(s.palette, s.names, markupFunc(func(ctx context.Context, c canvas.Color) (string, error) {
		a, err := s.swatches.Get(ctx, c)
		return a.Markup, err
	}))
	return pk.Options(ctx, def, extras)
}

type markupFunc func(ctx context.Context, c canvas.Color) (string, error)

func (f markupFunc) Markup(ctx context.Context, c canvas.Color) (string, error) { return f(ctx, c) }

// ImageURL returns the address of the rendered image of a key.
func (s *Service) ImageURL(key canvas.Key, plot bool) string {
	u := s.domain + "/image/" + url.PathEscape(string(key)) + ".png"
	if plot {
		u += "?plot=True"
	}
	return u
}

// ImageHash registers a key and returns the short hash naming it.
func (s *Service) ImageHash(ctx context.Context, key canvas.Key) (string, error) {
	key, err := canvas.ParseKey(string(key))
	if err != nil {
		return "", err
	}
	size, err := key.Size()
	if err != nil {
		return "", err
	}
	return s.store.PutImageHash(ctx, size, key)
}

// ResolveImage returns the key registered under hash.
func (s *Service) ResolveImage(ctx context.Context, hash string) (canvas.Key, error) {
	_, key, ok, err := s.store.ImageKey(ctx, hash)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &canvas.Error{Code: canvas.ErrCodeNotFound, Message: fmt.Sprintf("no image with hash %q", hash)}
	}
	return key, nil
}

// Count returns how many canvases have been created.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.store.CanvasCount(ctx)
}
