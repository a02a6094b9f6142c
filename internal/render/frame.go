package render

import (
	"fmt"

	"github.com/roach88/pixelarts/internal/canvas"
)

// Frame is the incrementally updated output buffer of a timelapse.
type Frame struct {
	layout Layout
	pixels PixelMap
	colors []canvas.Color
	buf    []byte
	seeded bool

	// writes counts cell redraws, for tests and metrics.
	writes int
}

// NewFrame returns a black frame with no cell colours set.
func NewFrame(l Layout) *Frame {
	return &Frame{
		layout: l,
		pixels: NewPixelMap(l),
		colors: make([]canvas.Color, l.Cells()),
		buf:    make([]byte, l.FrameBytes()),
	}
}

// Apply folds one history entry into the frame.
func (f *Frame) Apply(e canvas.Entry) error {
	if !e.IsDelta {
		if e.Key.Cells() != f.layout.Cells() || len(e.Key)%canvas.ColorWidth != 0 {
			return canvas.NewValidationError(fmt.Sprintf(
				"snapshot %d has %d cells, frame has %d", e.Seq, e.Key.Cells(), f.layout.Cells()))
		}
		for i := range f.colors {
			f.paint(i, e.Key.At(i))
		}
		f.seeded = true
		return nil
	}

	if !f.seeded {
		return canvas.NewInconsistentLogError(e.CanvasID, e.Seq)
	}
	if err := e.Delta.Validate(f.layout.Cells()); err != nil {
		return err
	}
	for _, c := range e.Delta {
		if f.colors[c.Index] == c.Color {
			continue
		}
		f.paint(c.Index, c.Color)
	}
	return nil
}

func (f *Frame) paint(cell int, c canvas.Color) {
	f.colors[cell] = c
	f.writes++

	r, g, b := c.RGB()
	seg := f.pixels.SegmentBytes()
	for _, off := range f.pixels.Rows(cell) {
		row := f.buf[off : off+seg]
		for p := 0; p < seg; p += BytesPerPixel {
			row[p], row[p+1], row[p+2] = r, g, b
		}
	}
}

// Bytes returns the current frame. The slice is reused by later Apply calls.
func (f *Frame) Bytes() []byte { return f.buf }

// Color returns the current colour of a cell, or "" if never set.
func (f *Frame) Color(cell int) canvas.Color { return f.colors[cell] }

// Writes returns how many cell redraws have happened so far.
func (f *Frame) Writes() int { return f.writes }
