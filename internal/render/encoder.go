package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/roach88/pixelarts/internal/canvas"
)

// FrameWriter streams every frame of a timelapse into w.
type FrameWriter func(w io.Writer) error

// Encoder turns a frame stream into a video file at dst.
//
// Implementations must leave nothing at dst when they return an error.
type Encoder interface {
	Encode(ctx context.Context, l Layout, dst string, frames FrameWriter) error
}

// FFmpeg encodes frames with an ffmpeg child process reading raw RGB24
// from stdin.
type FFmpeg struct {
	// Path is the ffmpeg binary. Defaults to "ffmpeg" on PATH.
	Path string

	// FPS is the input and output frame rate. Defaults to 1.
	FPS int

	// CRF is the libx264 quality target. Defaults to 18.
	CRF int

	// Preset is the libx264 speed preset. Defaults to "fast".
	Preset string

	Logger *slog.Logger
}

// Available reports whether the configured binary can be found.
func (f FFmpeg) Available() bool {
	_, err := exec.LookPath(f.path())
	return err == nil
}

func (f FFmpeg) path() string {
	if f.Path == "" {
		return "ffmpeg"
	}
	return f.Path
}

// Args returns the ffmpeg command line for a layout and output path.
func (f FFmpeg) Args(l Layout, dst string) []string {
	fps, crf, preset := f.FPS, f.CRF, f.Preset
	if fps <= 0 {
		fps = 1
	}
	if crf <= 0 {
		crf = 18
	}
	if preset == "" {
		preset = "fast"
	}
	return []string{
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", l.Dimensions(),
		"-r", strconv.Itoa(fps),
		"-i", "-",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-preset", preset,
		"-crf", strconv.Itoa(crf),
		"-f", "mp4",
		dst,
	}
}

// Encode starts ffmpeg, streams the frames into its stdin and waits for
// it to exit. On any failure the process is killed and dst is removed.
func (f FFmpeg) Encode(parent context.Context, l Layout, dst string, frames FrameWriter) (err error) {
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.path(), f.Args(l, dst)...)
	stderr := &tailBuffer{max: 4096}
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return canvas.NewExternalError("ffmpeg stdin pipe", err)
	}

	defer func() {
		if err != nil {
			if rmErr := os.Remove(dst); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				logger.Warn("remove partial output", "path", dst, "error", rmErr)
			}
		}
	}()

	if err := cmd.Start(); err != nil {
		return canvas.NewExternalError("start ffmpeg", err)
	}
	logger.Debug("ffmpeg started", "pid", cmd.Process.Pid, "dst", dst, "size", l.Dimensions())

	writeErr := frames(stdin)
	closeErr := stdin.Close()
	if writeErr != nil {
		// Stop the encoder before waiting so a half-written stream never
		// becomes an output file.
		cancel()
	}
	waitErr := cmd.Wait()

	var ce *canvas.Error
	switch {
	case parent.Err() != nil:
		return parent.Err()
	case writeErr != nil && errors.As(writeErr, &ce):
		return fmt.Errorf("stream frames: %w", writeErr)
	case writeErr != nil:
		e := canvas.NewExternalError("write frames to ffmpeg", writeErr)
		e.Details = map[string]string{"stderr": stderr.String()}
		return e
	case waitErr != nil:
		e := canvas.NewExternalError("ffmpeg failed", waitErr)
		e.Details = map[string]string{"stderr": stderr.String()}
		return e
	case closeErr != nil:
		return canvas.NewExternalError("close ffmpeg stdin", closeErr)
	}
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(p)
	if len(p) > b.max {
		p = p[len(p)-b.max:]
	}
	if over := b.buf.Len() + len(p) - b.max; over > 0 {
		b.buf.Next(over)
	}
	b.buf.Write(p)
	return n, nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
