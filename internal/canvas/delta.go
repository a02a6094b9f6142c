package canvas

import (
	"fmt"
	"strconv"
	"strings"
)

// Cell is one (index, colour) assignment.
type Cell struct {
	Index int   `json:"index" yaml:"cell"`
	Color Color `json:"color" yaml:"color"`
}

// Delta is an ordered list of cell assignments.
type Delta []Cell

// Validate checks every cell against a canvas of the given cell count.
func (d Delta) Validate(cells int) error {
	for _, c := range d {
		if c.Index < 0 || c.Index >= cells {
			return NewValidationError(fmt.Sprintf("cell index %d out of range [0,%d)", c.Index, cells))
		}
		if !c.Color.Valid() {
			return NewValidationError(fmt.Sprintf("invalid colour %q for cell %d", c.Color, c.Index))
		}
	}
	return nil
}

// Encode renders the delta in its storage form: "idx:hex,idx:hex".
func (d Delta) Encode() string {
	var b strings.Builder
	for i, c := range d {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(c.Index))
		b.WriteByte(':')
		b.WriteString(string(c.Color))
	}
	return b.String()
}

// DecodeDelta parses the storage form produced by Encode.
func DecodeDelta(s string) (Delta, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, NewValidationError("empty delta payload")
	}
	parts := strings.Split(s, ",")
	d := make(Delta, 0, len(parts))
	for _, p := range parts {
		idxStr, hex, ok := strings.Cut(p, ":")
		if !ok {
			return nil, NewValidationError(fmt.Sprintf("malformed delta cell %q", p))
		}
		idx, err := strconv.Atoi(idxStr)
		if err != nil {
			return nil, NewValidationError(fmt.Sprintf("malformed delta index %q", idxStr))
		}
		c := Color(hex)
		if !c.Valid() {
			return nil, NewValidationError(fmt.Sprintf("malformed delta colour %q", hex))
		}
		d = append(d, Cell{Index: idx, Color: c})
	}
	return d, nil
}
