package palette

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/pixelarts/internal/canvas"
)

// MaxOptions is how many colour options a picker holds before the
// trailing custom entry.
const MaxOptions = 24

// CustomValue is the option value that asks for a free-form hex.
const CustomValue = "custom"

// Option is one entry of a colour picker.
type Option struct {
	Label       string `json:"label"`
	Value       string `json:"value"`
	Description string `json:"description"`
	Markup      string `json:"markup,omitempty"`
	Default     bool   `json:"default,omitempty"`
}

// Namer names colours that are not presets.
type Namer interface {
	Name(ctx context.Context, c canvas.Color) (string, error)
}

// Marker returns the inline swatch markup for a colour.
type Marker interface {
	Markup(ctx context.Context, c canvas.Color) (string, error)
}

// Picker builds picker menus from a palette.
type Picker struct {
	palette *Palette
	namer   Namer
	marker  Marker
}

// NewPicker returns a Picker. namer and marker are used for colours that
// are not presets.
func NewPicker(p *Palette, namer Namer, marker Marker) *Picker {
	return &Picker{palette: p, namer: namer, marker: marker}
}

// Label turns a preset name such as "red-orange" into "Red Orange".
func Label(name string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(name, "-", " "))
}

// Options lists presets, then extras, then def if not already present,
// trimmed to MaxOptions by dropping the earliest colours that are neither
// presets nor def, followed by the custom entry.
func (pk *Picker) Options(ctx context.Context, def canvas.Color, extras []canvas.Color) ([]Option, error) {
	var opts []Option
	used := make(map[canvas.Color]bool)

	for _, pr := range pk.palette.Presets {
		used[pr.Hex] = true
		opts = append(opts, Option{
			Label:       Label(pr.Name),
			Value:       string(pr.Hex),
			Description: pr.Hex.Upper(),
			Markup:      pr.Markup,
			Default:     pr.Hex == def,
		})
	}

	var wanted []canvas.Color
	for _, c := range extras {
		if !used[c] {
			used[c] = true
			wanted = append(wanted, c)
		}
	}
	if !used[def] {
		used[def] = true
		wanted = append(wanted, def)
	}

	custom := make([]Option, len(wanted))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range wanted {
		g.Go(func() error {
			name, err := pk.namer.Name(gctx, c)
			if err != nil {
				return err
			}
			markup, err := pk.marker.Markup(gctx, c)
			if err != nil {
				return err
			}
			custom[i] = Option{
				Label:       name,
				Value:       string(c),
				Description: c.Upper(),
				Markup:      markup,
				Default:     c == def,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	opts = append(opts, custom...)

	for len(opts) > MaxOptions {
		drop := -1
		for i, o := range opts {
			c := canvas.Color(o.Value)
			if !pk.palette.IsPreset(c) && c != def {
				drop = i
				break
			}
		}
		if drop < 0 {
			break
		}
		opts = append(opts[:drop], opts[drop+1:]...)
	}

	opts = append(opts, Option{
		Label:       "Custom Colour",
		Value:       CustomValue,
		Description: "Enter a custom hex",
	})
	return opts, nil
}

// ExtrasFrom recovers the extra colours from the values of a rendered
// picker: everything from the first non-preset value up to the custom
// entry.
func (p *Palette) ExtrasFrom(values []string) []canvas.Color {
	var colours []canvas.Color
	for _, v := range values {
		v = strings.ToLower(v)
		if v == CustomValue {
			break
		}
		colours = append(colours, canvas.Color(v))
	}
	for i, c := range colours {
		if !p.IsPreset(c) {
			return colours[i:]
		}
	}
	return nil
}
