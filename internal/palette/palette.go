// Package palette holds the preset colours and builds colour picker menus.
//
// Presets are declared in CUE. The embedded schema constrains every hex
// to six lowercase digits and every name to dash-separated lowercase
// words; a custom palette file is unified with the same schema.
package palette

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/pixelarts/internal/canvas"
)

//go:embed schema.cue
var schemaSrc []byte

//go:embed presets.cue
var presetsSrc []byte

// Preset is one named palette colour.
type Preset struct {
	Name   string       `json:"name"`
	Hex    canvas.Color `json:"hex"`
	Markup string       `json:"markup,omitempty"`
}

// Palette is an ordered list of presets.
type Palette struct {
	Presets []Preset
	byHex   map[canvas.Color]int
}

// Default returns the built-in palette.
func Default() *Palette {
	p, err := Load(presetsSrc, "presets.cue")
	if err != nil {
		panic(fmt.Sprintf("palette: built-in presets invalid: %v", err))
	}
	return p
}

// LoadFile reads a palette from a CUE file.
func LoadFile(path string) (*Palette, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read palette: %w", err)
	}
	return Load(src, path)
}

// Load compiles src against the palette schema.
func Load(src []byte, filename string) (*Palette, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile palette schema: %w", err)
	}
	data := ctx.CompileBytes(src, cue.Filename(filename))
	if err := data.Err(); err != nil {
		return nil, fmt.Errorf("compile %s: %w", filename, err)
	}

	value := schema.Unify(data)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, canvas.NewValidationError(fmt.Sprintf("palette %s: %v", filename, err))
	}

	var presets []Preset
	if err := value.LookupPath(cue.ParsePath("presets")).Decode(&presets); err != nil {
		return nil, fmt.Errorf("decode presets: %w", err)
	}
	return newPalette(presets)
}

func newPalette(presets []Preset) (*Palette, error) {
	if len(presets) == 0 {
		return nil, canvas.NewValidationError("palette has no presets")
	}
	if len(presets) > MaxOptions {
		return nil, canvas.NewValidationError(fmt.Sprintf("palette has %d presets, at most %d fit a picker", len(presets), MaxOptions))
	}

	p := &Palette{Presets: presets, byHex: make(map[canvas.Color]int, len(presets))}
	names := make(map[string]bool, len(presets))
	for i, pr := range presets {
		if names[pr.Name] {
			return nil, canvas.NewValidationError(fmt.Sprintf("duplicate preset name %q", pr.Name))
		}
		if _, dup := p.byHex[pr.Hex]; dup {
			return nil, canvas.NewValidationError(fmt.Sprintf("duplicate preset colour %q", pr.Hex))
		}
		names[pr.Name] = true
		p.byHex[pr.Hex] = i
	}
	return p, nil
}

// IsPreset reports whether c is one of the presets.
func (p *Palette) IsPreset(c canvas.Color) bool {
	_, ok := p.byHex[c]
	return ok
}

// Lookup returns the preset with the given name.
func (p *Palette) Lookup(name string) (Preset, bool) {
	for _, pr := range p.Presets {
		if pr.Name == name {
			return pr, true
		}
	}
	return Preset{}, false
}
