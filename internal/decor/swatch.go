package decor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/vector"

	"github.com/roach88/pixelarts/internal/canvas"
)

// Swatch geometry in pixels.
const (
	SwatchSize   = 96
	SwatchRadius = 12
)

// Swatch renders a rounded colour square as PNG.
func Swatch(c canvas.Color) ([]byte, error) {
	if !c.Valid() {
		return nil, canvas.NewValidationError(fmt.Sprintf("invalid colour %q", c))
	}
	img := swatchImage(c, SwatchSize, SwatchRadius)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode swatch: %w", err)
	}
	return buf.Bytes(), nil
}

func swatchImage(c canvas.Color, size, radius int) *image.RGBA {
	s, r := float32(size), float32(radius)

	z := vector.NewRasterizer(size, size)
	z.MoveTo(r, 0)
	z.LineTo(s-r, 0)
	z.QuadTo(s, 0, s, r)
	z.LineTo(s, s-r)
	z.QuadTo(s, s, s-r, s)
	z.LineTo(r, s)
	z.QuadTo(0, s, 0, s-r)
	z.LineTo(0, r)
	z.QuadTo(0, 0, r, 0)
	z.ClosePath()

	red, green, blue := c.RGB()
	src := image.NewUniform(color.RGBA{R: red, G: green, B: blue, A: 0xff})

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	z.Draw(dst, dst.Bounds(), src, image.Point{})
	return dst
}

