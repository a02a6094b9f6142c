// Package decor manages the colour swatches shown next to colour choices.
//
// Swatches are uploaded to an external asset store whose slots are
// limited and whose write API is rate limited, so every lookup goes
// through a rescache.Cache: uploads are de-duplicated, serialised and
// spaced, and the least recently used swatch is deleted when the store
// is full.
package decor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/pixelarts/internal/canvas"
	"github.com/roach88/pixelarts/internal/rescache"
)

// Swatches resolves colours to uploaded swatch assets.
type Swatches struct {
	api    API
	cache  *rescache.Cache[Asset]
	logger *slog.Logger
}

// creator adapts an API to rescache.Creator.
type creator struct {
	api API
}

func (c creator) Create(ctx context.Context, key string) (Asset, error) {
	img, err := Swatch(canvas.Color(key))
	if err != nil {
		return Asset{}, err
	}
	a, err := c.api.Create(ctx, key, img)
	if err != nil {
		return Asset{}, fmt.Errorf("upload swatch: %w", err)
	}
	return a, nil
}

func (c creator) Release(ctx context.Context, _ string, a Asset) error {
	return c.api.Delete(ctx, a.ID)
}

// NormalizeKey canonicalises a colour for use as a cache key.
func NormalizeKey(raw string) (string, error) {
	c, err := canvas.ParseColor(raw)
	if err != nil {
		return "", err
	}
	return string(c), nil
}

// New returns a stopped Swatches. opts are passed to the cache; the name
// and key normaliser are fixed.
func New(api API, logger *slog.Logger, opts ...rescache.Option) (*Swatches, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append(opts,
		rescache.WithName("swatch"),
		rescache.WithNormalizer(NormalizeKey),
		rescache.WithLogger(logger),
	)
	cache, err := rescache.New[Asset](creator{api: api}, opts...)
	if err != nil {
		return nil, err
	}
	return &Swatches{api: api, cache: cache, logger: logger}, nil
}

// Preload seeds the cache with assets already in the store. Assets that
// are not named by a colour are ignored.
func (s *Swatches) Preload(ctx context.Context) (int, error) {
	assets, err := s.api.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("preload swatches: %w", err)
	}
	found := make(map[string]Asset, len(assets))
	for _, a := range assets {
		key, err := NormalizeKey(a.Name)
		if err != nil {
			continue
		}
		found[key] = a
	}
	skipped := s.cache.Seed(found)
	if len(skipped) > 0 {
		s.logger.Warn("swatch store over capacity", "skipped", len(skipped))
	}
	n := len(found) - len(skipped)
	s.logger.Info("swatches preloaded", "count", n)
	return n, nil
}

// Start launches the upload worker.
func (s *Swatches) Start(ctx context.Context) { s.cache.Start(ctx) }

// Close stops the upload worker.
func (s *Swatches) Close() { s.cache.Close() }

// Get returns the swatch for a colour, uploading it if needed.
func (s *Swatches) Get(ctx context.Context, c canvas.Color) (Asset, error) {
	return s.cache.Get(ctx, string(c))
}

// Len returns the number of cached swatches.
func (s *Swatches) Len() int { return s.cache.Len() }
