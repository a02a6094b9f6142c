package palette

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pixelarts/internal/canvas"
)

type fakeNamer struct{}

func (fakeNamer) Name(_ context.Context, c canvas.Color) (string, error) {
	return "name-" + string(c), nil
}

type fakeMarker struct{ err error }

func (m fakeMarker) Markup(_ context.Context, c canvas.Color) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return "<:" + string(c) + ":1>", nil
}

func TestDefault(t *testing.T) {
	p := Default()
	require.Len(t, p.Presets, 17)
	assert.Equal(t, Preset{Name: "red", Hex: "ff0000"}, p.Presets[0])
	assert.Equal(t, Preset{Name: "white", Hex: "ffffff"}, p.Presets[16])

	assert.True(t, p.IsPreset("00a368"))
	assert.False(t, p.IsPreset("123456"))

	pr, ok := p.Lookup("red-orange")
	require.True(t, ok)
	assert.Equal(t, canvas.Color("ff4500"), pr.Hex)
}

func TestLoad_RejectsBadPalettes(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "uppercase hex", src: `presets: [{name: "red", hex: "FF0000"}]`},
		{name: "short hex", src: `presets: [{name: "red", hex: "fff"}]`},
		{name: "bad name", src: `presets: [{name: "Red Colour", hex: "ff0000"}]`},
		{name: "missing hex", src: `presets: [{name: "red"}]`},
		{name: "duplicate hex", src: `presets: [{name: "a", hex: "ff0000"}, {name: "b", hex: "ff0000"}]`},
		{name: "duplicate name", src: `presets: [{name: "a", hex: "ff0000"}, {name: "a", hex: "00ff00"}]`},
		{name: "empty", src: `presets: []`},
		{name: "syntax", src: `presets: [`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.src), "test.cue")
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mine.cue")
	src := `presets: [
	{name: "ink", hex: "101010", markup: "<:ink:9>"},
	{name: "paper", hex: "fafafa"},
]`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	p, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []Preset{
		{Name: "ink", Hex: "101010", Markup: "<:ink:9>"},
		{Name: "paper", Hex: "fafafa"},
	}, p.Presets)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.cue"))
	assert.Error(t, err)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Red Orange", Label("red-orange"))
	assert.Equal(t, "Sky", Label("sky"))
}

func TestOptions_PresetsExtrasAndDefault(t *testing.T) {
	pk := NewPicker(Default(), fakeNamer{}, fakeMarker{})

	opts, err := pk.Options(context.Background(), "abcdef", []canvas.Color{"123456", "ff0000"})
	require.NoError(t, err)

	// 17 presets, one extra, the default, then custom.
	require.Len(t, opts, 20)
	assert.Equal(t, Option{Label: "Red", Value: "ff0000", Description: "#FF0000"}, opts[0])
	assert.Equal(t, Option{Label: "name-123456", Value: "123456", Description: "#123456", Markup: "<:123456:1>"}, opts[17])
	assert.Equal(t, "abcdef", opts[18].Value)
	assert.True(t, opts[18].Default)
	assert.Equal(t, CustomValue, opts[19].Value)
}

func TestOptions_DefaultPresetIsMarked(t *testing.T) {
	pk := NewPicker(Default(), fakeNamer{}, fakeMarker{})

	opts, err := pk.Options(context.Background(), "00a368", nil)
	require.NoError(t, err)
	require.Len(t, opts, 18)
	for _, o := range opts {
		assert.Equal(t, o.Value == "00a368", o.Default, o.Value)
	}
}

func TestOptions_TrimsOldestExtras(t *testing.T) {
	pk := NewPicker(Default(), fakeNamer{}, fakeMarker{})

	var extras []canvas.Color
	for i := 1; i <= 10; i++ {
		extras = append(extras, canvas.Color(fmt.Sprintf("0000%02d", i)))
	}
	opts, err := pk.Options(context.Background(), "abcdef", extras)
	require.NoError(t, err)

	require.Len(t, opts, MaxOptions+1)
	var values []string
	for _, o := range opts[17:] {
		values = append(values, o.Value)
	}
	// 17 presets + 10 extras + default = 28; the four oldest extras go.
	assert.Equal(t, []string{"000005", "000006", "000007", "000008", "000009", "000010", "abcdef", CustomValue}, values)
}

func TestOptions_PropagatesLookupErrors(t *testing.T) {
	boom := errors.New("upload failed")
	pk := NewPicker(Default(), fakeNamer{}, fakeMarker{err: boom})

	_, err := pk.Options(context.Background(), "abcdef", nil)
	assert.ErrorIs(t, err, boom)
}

func TestExtrasFrom(t *testing.T) {
	p := Default()
	values := []string{"ff0000", "00a368", "123456", "FF4500", "abcdef", "custom", "999999"}

	assert.Equal(t, []canvas.Color{"123456", "ff4500", "abcdef"}, p.ExtrasFrom(values))
	assert.Nil(t, p.ExtrasFrom([]string{"ff0000", "custom"}))
	assert.Nil(t, p.ExtrasFrom(nil))
}
