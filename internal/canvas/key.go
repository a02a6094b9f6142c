package canvas

import (
	"fmt"
	"strings"
)

// Key encodes a whole canvas: size*size colours concatenated in row-major order.
type Key string

// Supported canvas edge lengths.
var Sizes = []int{5, 10, 15, 20, 25}

// DefaultSize is the edge length used when none is given.
const DefaultSize = 5

// ValidSize reports whether size is one of Sizes.
func ValidSize(size int) bool {
	for _, s := range Sizes {
		if s == size {
			return true
		}
	}
	return false
}

// Fill returns a key of the given size where every cell is c.
func Fill(size int, c Color) (Key, error) {
	if !ValidSize(size) {
		return "", NewValidationError(fmt.Sprintf("unsupported canvas size %d", size))
	}
	if !c.Valid() {
		return "", NewValidationError(fmt.Sprintf("invalid colour %q", c))
	}
	return Key(strings.Repeat(string(c), size*size)), nil
}

// ParseKey validates a raw key string.
func ParseKey(raw string) (Key, error) {
	k := Key(strings.ToLower(strings.TrimSpace(raw)))
	if _, err := k.Size(); err != nil {
		return "", err
	}
	for i := 0; i < len(k); i += ColorWidth {
		if !isHex6(string(k[i : i+ColorWidth])) {
			return "", NewValidationError(fmt.Sprintf("invalid colour %q at cell %d", k[i:i+ColorWidth], i/ColorWidth))
		}
	}
	return k, nil
}

// Size derives the edge length from the key length.
func (k Key) Size() (int, error) {
	if len(k)%ColorWidth != 0 {
		return 0, NewValidationError(fmt.Sprintf("key length %d is not a multiple of %d", len(k), ColorWidth))
	}
	cells := len(k) / ColorWidth
	for _, s := range Sizes {
		if s*s == cells {
			return s, nil
		}
	}
	return 0, NewValidationError(fmt.Sprintf("key has %d cells, not a supported square", cells))
}

// Cells returns the number of cells encoded by k.
func (k Key) Cells() int {
	return len(k) / ColorWidth
}

// At returns the colour of cell i. Panics if i is out of range.
func (k Key) At(i int) Color {
	off := i * ColorWidth
	return Color(k[off : off+ColorWidth])
}

// Colors splits the key into its cells.
func (k Key) Colors() []Color {
	out := make([]Color, k.Cells())
	for i := range out {
		out[i] = k.At(i)
	}
	return out
}

// Apply overwrites the cells named in d, in order, and returns the new key.
// The receiver is not modified.
func (k Key) Apply(d Delta) (Key, error) {
	if err := d.Validate(k.Cells()); err != nil {
		return "", err
	}
	buf := []byte(k)
	for _, c := range d {
		copy(buf[c.Index*ColorWidth:], string(c.Color))
	}
	return Key(buf), nil
}

// Diff returns the cells where next differs from k, in index order.
// Both keys must have the same number of cells.
func (k Key) Diff(next Key) (Delta, error) {
	if len(k) != len(next) {
		return nil, NewValidationError(fmt.Sprintf("key size mismatch: %d vs %d cells", k.Cells(), next.Cells()))
	}
	var d Delta
	for i := 0; i < k.Cells(); i++ {
		if c := next.At(i); c != k.At(i) {
			d = append(d, Cell{Index: i, Color: c})
		}
	}
	return d, nil
}
