package render

import (
	"fmt"

	"github.com/roach88/pixelarts/internal/canvas"
)

// Target output edge lengths in pixels.
const (
	smallTarget = 500
	largeTarget = 750
)

// BytesPerPixel is the RGB24 pixel width.
const BytesPerPixel = 3

// Layout fixes the geometry of a timelapse: Size logical cells per edge,
// each drawn as Scale x Scale output pixels, for a Width x Width frame.
type Layout struct {
	Size  int
	Scale int
	Width int
}

// NewLayout derives the layout for a canvas edge length. Size 5 targets
// 500 pixels and every other size targets 750.
func NewLayout(size int) (Layout, error) {
	if !canvas.ValidSize(size) {
		return Layout{}, canvas.NewValidationError(fmt.Sprintf("unsupported canvas size %d", size))
	}
	target := largeTarget
	if size == canvas.DefaultSize {
		target = smallTarget
	}
	scale := target / size
	return Layout{Size: size, Scale: scale, Width: scale * size}, nil
}

// Cells is the number of logical cells.
func (l Layout) Cells() int { return l.Size * l.Size }

// FrameBytes is the length of one RGB24 frame.
func (l Layout) FrameBytes() int { return l.Width * l.Width * BytesPerPixel }

// Dimensions formats the frame size the way ffmpeg expects it.
func (l Layout) Dimensions() string { return fmt.Sprintf("%dx%d", l.Width, l.Width) }

// PixelMap lists, for every logical cell, the byte offset of each output
// row segment the cell covers. Each segment is Scale pixels wide.
type PixelMap struct {
	layout Layout
	rows   [][]int
}

// NewPixelMap precomputes the offsets for a layout.
func NewPixelMap(l Layout) PixelMap {
	stride := l.Width * BytesPerPixel
	rows := make([][]int, l.Cells())
	for cell := range rows {
		cx, cy := cell%l.Size, cell/l.Size
		offsets := make([]int, l.Scale)
		for y := 0; y < l.Scale; y++ {
			offsets[y] = (cy*l.Scale+y)*stride + cx*l.Scale*BytesPerPixel
		}
		rows[cell] = offsets
	}
	return PixelMap{layout: l, rows: rows}
}

// Rows returns the row segment offsets of a cell.
func (m PixelMap) Rows(cell int) []int { return m.rows[cell] }

// SegmentBytes is the byte length of one row segment.
func (m PixelMap) SegmentBytes() int { return m.layout.Scale * BytesPerPixel }
