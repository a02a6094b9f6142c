package canvas

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Color is a lowercase 6-digit hex colour without a leading '#'.
type Color string

// Well-known colours.
const (
	Black Color = "000000"
	White Color = "ffffff"
)

// ColorWidth is the number of characters a colour occupies in a Key.
const ColorWidth = 6

// ParseColor normalises user input into a Color.
//
// Input is NFKC-normalised first so full-width digits and letters typed on
// some keyboards fold to ASCII, then an optional leading '#' is stripped and
// the result lowercased. Anything that is not exactly six hex digits is a
// validation error.
func ParseColor(raw string) (Color, error) {
	s := norm.NFKC.String(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "#")
	s = strings.ToLower(s)

	if !isHex6(s) {
		return "", NewValidationError(fmt.Sprintf("invalid colour %q: want 6 hex digits", raw))
	}
	return Color(s), nil
}

// MustColor is ParseColor for constants and tests. Panics on invalid input.
func MustColor(raw string) Color {
	c, err := ParseColor(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// Valid reports whether c is already in normalised form.
func (c Color) Valid() bool {
	return isHex6(string(c))
}

// RGB returns the colour's channels. Invalid colours decode as black.
func (c Color) RGB() (r, g, b byte) {
	if !c.Valid() {
		return 0, 0, 0
	}
	return hexByte(c[0], c[1]), hexByte(c[2], c[3]), hexByte(c[4], c[5])
}

// Int returns the colour as a 24-bit integer.
func (c Color) Int() int64 {
	r, g, b := c.RGB()
	return int64(r)<<16 | int64(g)<<8 | int64(b)
}

// ColorFromInt formats a 24-bit integer as a Color. Out of range values are masked.
func ColorFromInt(v int64) Color {
	return Color(fmt.Sprintf("%06x", v&0xffffff))
}

// Upper returns "#RRGGBB", the display form used as a fallback label.
func (c Color) Upper() string {
	return "#" + strings.ToUpper(string(c))
}

func isHex6(s string) bool {
	if len(s) != ColorWidth {
		return false
	}
	for i := 0; i < len(s); i++ {
		if hexVal(s[i]) < 0 {
			return false
		}
	}
	return true
}

func hexVal(ch byte) int {
	switch {
	case ch >= '0' && ch <= '9':
		return int(ch - '0')
	case ch >= 'a' && ch <= 'f':
		return int(ch-'a') + 10
	}
	return -1
}

func hexByte(hi, lo byte) byte {
	return byte(hexVal(hi)<<4 | hexVal(lo))
}
