package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/pixelarts/internal/canvas"
	"github.com/roach88/pixelarts/internal/keylock"
	"github.com/roach88/pixelarts/internal/telemetry"
)

// HistorySource returns the full ordered log of a canvas.
type HistorySource interface {
	History(ctx context.Context, canvasID string) ([]canvas.Entry, error)
}

// Result describes a finished render.
type Result struct {
	CanvasID string        `json:"canvas_id"`
	Path     string        `json:"path"`
	Frames   int           `json:"frames"`
	Reused   bool          `json:"reused"`
	Layout   Layout        `json:"-"`
	Took     time.Duration `json:"took"`
}

// Renderer produces one timelapse artifact per canvas in Dir.
type Renderer struct {
	source  HistorySource
	encoder Encoder
	dir     string
	logger  *slog.Logger
	metrics *telemetry.Metrics
	now     func() time.Time

	// locks serialises runs and Discard per canvas, so an abandoned run
	// has cleaned up before the next one checks for an artifact.
	locks keylock.Map

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is one encoder run shared by every caller waiting on it. Its
// context belongs to no single caller and is cancelled once the last
// waiter leaves.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int

	done chan struct{}
	res  Result
	err  error
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Renderer) { r.metrics = m }
}

// WithClock sets the time source used for durations.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

// NewRenderer returns a renderer writing artifacts under dir.
func NewRenderer(source HistorySource, encoder Encoder, dir string, opts ...Option) *Renderer {
	r := &Renderer{
		source:  source,
		encoder: encoder,
		dir:     dir,
		logger:  slog.Default(),
		now:     time.Now,
		flights: make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var canvasIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// ArtifactPath returns where the timelapse of canvasID lives.
func (r *Renderer) ArtifactPath(canvasID string) (string, error) {
	if !canvasIDPattern.MatchString(canvasID) {
		return "", canvas.NewValidationError(fmt.Sprintf("invalid canvas id %q", canvasID))
	}
	return filepath.Join(r.dir, canvasID+".mp4"), nil
}

// Timelapse renders the full history of a canvas, or returns the existing
// artifact if one is already on disk. Concurrent calls for the same canvas
// share one encoder run.
//
// A caller whose ctx ends stops waiting and gets ctx.Err(); the shared
// run is only cancelled, and its partial output removed, when every
// caller has left.
//
// An artifact is reused until Discard removes it, so edits made after a
// render are not reflected until then.
//
// Returns a NOT_FOUND error if the canvas has no history.
func (r *Renderer) Timelapse(ctx context.Context, canvasID string) (Result, error) {
	path, err := r.ArtifactPath(canvasID)
	if err != nil {
		return Result{}, err
	}
	if exists(path) {
		r.metrics.Render("reused")
		return Result{CanvasID: canvasID, Path: path, Reused: true}, nil
	}

	fl, shared := r.join(ctx, canvasID, path)
	defer r.leave(fl)
	if shared {
		r.logger.Debug("render shared", "canvas", canvasID)
	}

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-fl.done:
		return fl.res, fl.err
	}
}

// join attaches the caller to the live run for canvasID, starting one if
// there is none.
func (r *Renderer) join(ctx context.Context, canvasID, path string) (fl *flight, shared bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if fl, ok := r.flights[canvasID]; ok && fl.ctx.Err() == nil {
		fl.waiters++
		return fl, true
	}

	fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	fl = &flight{ctx: fctx, cancel: cancel, waiters: 1, done: make(chan struct{})}
	r.flights[canvasID] = fl
	go r.fly(fl, canvasID, path)
	return fl, false
}

// leave detaches a caller. The last one out cancels the run.
func (r *Renderer) leave(fl *flight) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fl.waiters--
	if fl.waiters == 0 {
		fl.cancel()
	}
}

func (r *Renderer) fly(fl *flight, canvasID, path string) {
	defer func() {
		r.mu.Lock()
		if r.flights[canvasID] == fl {
			delete(r.flights, canvasID)
		}
		r.mu.Unlock()
		close(fl.done)
	}()

	unlock := r.locks.Lock(canvasID)
	defer unlock()

	// An earlier run may have published while this one waited for the lock.
	if exists(path) {
		r.metrics.Render("reused")
		fl.res = Result{CanvasID: canvasID, Path: path, Reused: true}
		return
	}
	if err := fl.ctx.Err(); err != nil {
		fl.err = err
		return
	}
	fl.res, fl.err = r.render(fl.ctx, canvasID, path)
}

func (r *Renderer) render(ctx context.Context, canvasID, path string) (res Result, err error) {
	start := r.now()
	defer func() {
		switch {
		case err == nil:
			r.metrics.Render("ok")
			r.metrics.RenderTook(r.now().Sub(start))
		case canvas.IsNotFound(err):
			r.metrics.Render("empty")
		default:
			r.metrics.Render("error")
		}
	}()

	entries, err := r.source.History(ctx, canvasID)
	if err != nil {
		return Result{}, fmt.Errorf("load history: %w", err)
	}
	if len(entries) == 0 {
		return Result{}, canvas.NewNotFoundError(canvasID)
	}
	if entries[0].IsDelta {
		return Result{}, canvas.NewInconsistentLogError(canvasID, entries[0].Seq)
	}
	size, err := entries[0].Key.Size()
	if err != nil {
		return Result{}, err
	}
	layout, err := NewLayout(size)
	if err != nil {
		return Result{}, err
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create preview dir: %w", err)
	}
	tmp := filepath.Join(r.dir, fmt.Sprintf(".%s-%s.mp4.tmp", canvasID, uuid.NewString()))

	frames := 0
	err = r.encoder.Encode(ctx, layout, tmp, func(w io.Writer) error {
		f := NewFrame(layout)
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := f.Apply(e); err != nil {
				return err
			}
			if _, err := w.Write(f.Bytes()); err != nil {
				return err
			}
			frames++
		}
		return nil
	})
	if err != nil {
		_ = os.Remove(tmp)
		r.logger.Warn("render failed", "canvas", canvasID, "frames", frames, "error", err)
		return Result{}, fmt.Errorf("render %s: %w", canvasID, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return Result{}, fmt.Errorf("publish artifact: %w", err)
	}
	r.metrics.Frames(frames)

	took := r.now().Sub(start)
	r.logger.Info("render complete", "canvas", canvasID, "frames", frames, "path", path, "took", took)
	return Result{CanvasID: canvasID, Path: path, Frames: frames, Layout: layout, Took: took}, nil
}

// Discard removes a canvas's artifact so the next Timelapse re-renders it.
func (r *Renderer) Discard(canvasID string) error {
	path, err := r.ArtifactPath(canvasID)
	if err != nil {
		return err
	}
	unlock := r.locks.Lock(canvasID)
	defer unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("discard artifact: %w", err)
	}
	return nil
}

func exists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}
