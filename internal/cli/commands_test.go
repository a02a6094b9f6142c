package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pixelarts/internal/canvas"
	"github.com/roach88/pixelarts/internal/canvasd"
	"github.com/roach88/pixelarts/internal/decor"
	"github.com/roach88/pixelarts/internal/palette"
	"github.com/roach88/pixelarts/internal/render"
	"github.com/roach88/pixelarts/internal/store"
	"github.com/roach88/pixelarts/internal/testutil"
)

// countingEncoder counts frames and writes a placeholder artifact.
type countingEncoder struct {
	mu     sync.Mutex
	runs   int
	frames int
}

func (e *countingEncoder) Encode(_ context.Context, l render.Layout, dst string, frames render.FrameWriter) error {
	var buf bytes.Buffer
	if err := frames(&buf); err != nil {
		return err
	}
	e.mu.Lock()
	e.runs++
	e.frames += buf.Len() / l.FrameBytes()
	e.mu.Unlock()
	return os.WriteFile(dst, []byte("mp4"), 0o644)
}

type cliEnv struct {
	dir  string
	opts *RootOptions
	enc  *countingEncoder
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	enc := &countingEncoder{}
	return &cliEnv{
		dir: t.TempDir(),
		enc: enc,
		opts: &RootOptions{
			Encoder: enc,
			IDs:     testutil.NewSequentialIDs("canvas"),
			Now:     testutil.NewDeterministicClock(testutil.Epoch, time.Second).Now,
		},
	}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := newRootCommand(e.opts)
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--data-dir", e.dir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (e *cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, "pixelarts %s", strings.Join(args, " "))
	return out
}

type jsonResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
}

// runJSON runs a command with --format json and decodes the envelope.
// Data is decoded into v when v is non-nil and the status is ok.
func (e *cliEnv) runJSON(t *testing.T, v any, args ...string) (jsonResponse, error) {
	t.Helper()
	out, err := e.run(t, append([]string{"--format", "json"}, args...)...)
	var resp jsonResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	if v != nil && resp.Status == "ok" {
		require.NoError(t, json.Unmarshal(resp.Data, v))
	}
	return resp, err
}

func (e *cliEnv) dbPath() string { return filepath.Join(e.dir, "data.db") }

func whiteKey() canvas.Key { return canvas.Key(strings.Repeat("ffffff", 25)) }

func TestCreateAndShow(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun(t, "create", "--author", "alice")
	assert.Equal(t, "canvas-1\n", out)

	out = env.mustRun(t, "show", "canvas-1")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	for _, line := range lines {
		assert.Equal(t, "ffffff ffffff ffffff ffffff ffffff", line)
	}
}

func TestCreateJSON(t *testing.T) {
	env := newCLIEnv(t)

	var view CanvasView
	resp, err := env.runJSON(t, &view, "create", "--size", "10")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "canvas-1", view.CanvasID)
	assert.Equal(t, int64(0), view.Seq)
	assert.Equal(t, 10, view.Size)
	assert.Equal(t, 100, view.Key.Cells())
}

func TestCreateInvalidSize(t *testing.T) {
	env := newCLIEnv(t)

	resp, err := env.runJSON(t, nil, "create", "--size", "7")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION", resp.Error.Code)
}

func TestPaintWithUserColour(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "create")
	env.mustRun(t, "colour", "set", "--user", "alice", "ff0000")

	var res canvasd.PaintResult
	_, err := env.runJSON(t, &res, "paint", "canvas-1", "6", "--user", "alice")
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.Entry.Seq)
	assert.True(t, res.Entry.IsDelta)
	assert.Equal(t, "alice", res.Entry.AuthorID)
	assert.Equal(t, canvas.Delta{{Index: 6, Color: "ff0000"}}, res.Entry.Delta)
	assert.Equal(t, canvas.Color("ff0000"), res.Key.At(6))
	assert.Equal(t, canvas.Color("ffffff"), res.Key.At(5))
}

func TestPaintDefaultsToBlack(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "create")

	var res canvasd.PaintResult
	_, err := env.runJSON(t, &res, "paint", "canvas-1", "0", "--user", "bob")
	require.NoError(t, err)
	assert.Equal(t, canvas.Color("000000"), res.Key.At(0))
}

func TestPaintManyCellsWithColour(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "create")

	out := env.mustRun(t, "paint", "canvas-1", "0", "1", "2", "3", "4", "--color", "00FF00")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "seq 1 (delta)", lines[0])
	assert.Equal(t, "00ff00 00ff00 00ff00 00ff00 00ff00", lines[1])
	assert.Equal(t, "ffffff ffffff ffffff ffffff ffffff", lines[2])
}

func TestPaintErrors(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "create")

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"non-numeric cell", []string{"paint", "canvas-1", "x"}, "VALIDATION"},
		{"cell out of range", []string{"paint", "canvas-1", "25"}, "VALIDATION"},
		{"bad colour", []string{"paint", "canvas-1", "0", "--color", "red"}, "VALIDATION"},
		{"unknown canvas", []string{"paint", "canvas-9", "0"}, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := env.runJSON(t, nil, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}

	// Nothing was written by the failed paints.
	var entries []canvas.Entry
	_, err := env.runJSON(t, &entries, "history", "canvas-1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestUndoFlow(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "create")
	env.mustRun(t, "paint", "canvas-1", "0", "--color", "ff0000")

	var view UndoView
	_, err := env.runJSON(t, &view, "undo", "canvas-1")
	require.NoError(t, err)
	assert.Equal(t, "applied", view.Outcome)
	assert.Equal(t, whiteKey(), view.Key)

	_, err = env.runJSON(t, &view, "undo", "canvas-1")
	require.NoError(t, err)
	assert.Equal(t, "nothing", view.Outcome)
	assert.Equal(t, whiteKey(), view.Key)

	out := env.mustRun(t, "undo", "canvas-404")
	assert.Equal(t, "canvas has no history\n", out)
}

func TestShowAt(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "create")
	env.mustRun(t, "paint", "canvas-1", "0", "--color", "ff0000")
	env.mustRun(t, "paint", "canvas-1", "1", "--color", "00ff00")

	var view CanvasView
	_, err := env.runJSON(t, &view, "show", "canvas-1", "--at", "1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), view.Seq)
	assert.Equal(t, canvas.Color("ff0000"), view.Key.At(0))
	assert.Equal(t, canvas.Color("ffffff"), view.Key.At(1))

	_, err = env.runJSON(t, &view, "show", "canvas-1")
	require.NoError(t, err)
	assert.Equal(t, canvas.Color("00ff00"), view.Key.At(1))

	resp, err := env.runJSON(t, nil, "show", "canvas-1", "--at", "9")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestShowURL(t *testing.T) {
	t.Setenv("PIXELARTS_DOMAIN_URL", "https://img.example.com/")
	env := newCLIEnv(t)
	env.mustRun(t, "create")

	var view CanvasView
	_, err := env.runJSON(t, &view, "show", "canvas-1", "--plot")
	require.NoError(t, err)
	assert.Equal(t, "https://img.example.com/image/"+string(whiteKey())+".png?plot=True", view.URL)

	out := env.mustRun(t, "show", "canvas-1", "--url")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), string(whiteKey())+".png"))
}

func TestHistoryCompacts(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "create")
	for i := 0; i < canvas.MaxDeltaRun+1; i++ {
		env.mustRun(t, "paint", "canvas-1", fmt.Sprint(i), "--color", "123456")
	}

	var entries []canvas.Entry
	_, err := env.runJSON(t, &entries, "history", "canvas-1")
	require.NoError(t, err)
	require.Len(t, entries, canvas.MaxDeltaRun+2)

	snapshots := 0
	for i, e := range entries {
		assert.Equal(t, int64(i), e.Seq)
		if !e.IsDelta {
			snapshots++
		}
	}
	assert.Equal(t, 2, snapshots)
	assert.False(t, entries[len(entries)-1].IsDelta, "run limit forces a snapshot")
	assert.Equal(t, testutil.Epoch, entries[0].Timestamp.UTC())

	out := env.mustRun(t, "history", "canvas-1")
	assert.Contains(t, out, "   0  snapshot  -")
	assert.Contains(t, out, "2:123456")
}

func TestHistoryUnknownCanvas(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, "history", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestList(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun(t, "list")
	assert.Contains(t, out, "No canvases found.")

	env.mustRun(t, "create")
	env.mustRun(t, "create")

	var list CanvasList
	_, err := env.runJSON(t, &list, "list")
	require.NoError(t, err)
	assert.Equal(t, []string{"canvas-1", "canvas-2"}, list.Canvases)
	assert.Equal(t, int64(2), list.Created)
}

func TestRenderReusesArtifact(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "create")
	env.mustRun(t, "paint", "canvas-1", "0", "--color", "ff0000")

	path := filepath.Join(env.dir, "preview", "canvas-1.mp4")

	out := env.mustRun(t, "render", "canvas-1")
	assert.Equal(t, fmt.Sprintf("rendered 2 frames to %s\n", path), out)
	assert.FileExists(t, path)

	var view RenderView
	_, err := env.runJSON(t, &view, "render", "canvas-1")
	require.NoError(t, err)
	assert.True(t, view.Reused)
	assert.Equal(t, path, view.Path)
	assert.Equal(t, 1, env.enc.runs)

	_, err = env.runJSON(t, &view, "render", "canvas-1", "--force")
	require.NoError(t, err)
	assert.False(t, view.Reused)
	assert.Equal(t, 2, view.Frames)
	assert.Equal(t, 500, view.Width)
	assert.Equal(t, 2, env.enc.runs)
	assert.Equal(t, 4, env.enc.frames)
}

func TestRenderUnknownCanvas(t *testing.T) {
	env := newCLIEnv(t)

	resp, err := env.runJSON(t, nil, "render", "canvas-1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	assert.Equal(t, 0, env.enc.runs)
}

func TestVerify(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun(t, "verify")
	assert.Contains(t, out, "No canvases found in database.")

	env.mustRun(t, "create")
	env.mustRun(t, "create")
	env.mustRun(t, "paint", "canvas-1", "3", "--color", "abcdef")

	out = env.mustRun(t, "verify")
	assert.Contains(t, out, "Verify Summary: 2 canvas(es)")
	assert.Contains(t, out, "✓ Canvas: canvas-1")
	assert.Contains(t, out, "✓ All canvases verified")

	var result VerifyResult
	_, err := env.runJSON(t, &result, "verify", "canvas-2")
	require.NoError(t, err)
	assert.True(t, result.AllOK)
	require.Len(t, result.Canvases, 1)
	assert.Equal(t, 1, result.Canvases[0].Entries)
}

func TestVerifyDetectsMissingSnapshot(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "create")
	env.mustRun(t, "paint", "canvas-1", "3", "--color", "abcdef")

	st, err := store.Open(env.dbPath())
	require.NoError(t, err)
	_, err = st.DB().Exec(`DELETE FROM canvas_log WHERE canvas_id = 'canvas-1' AND seq = 0`)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	resp, err := env.runJSON(t, nil, "verify")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeVerify, resp.Error.Code)

	var result VerifyResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.False(t, result.AllOK)
	assert.NotEmpty(t, result.Canvases[0].Problems)

	out, err := env.run(t, "verify")
	require.Error(t, err)
	assert.Contains(t, out, "✗ Canvas: canvas-1")
	assert.Contains(t, out, "first entry is a delta")
}

func TestColourGetSet(t *testing.T) {
	env := newCLIEnv(t)

	assert.Equal(t, "000000\n", env.mustRun(t, "colour", "get", "--user", "alice"))
	assert.Equal(t, "ff8800\n", env.mustRun(t, "colour", "set", "--user", "alice", "#FF8800"))
	assert.Equal(t, "ff8800\n", env.mustRun(t, "color", "get", "--user", "alice"))

	var view ColourView
	_, err := env.runJSON(t, &view, "colour", "set", "--user", "alice", "red-orange")
	require.NoError(t, err)
	assert.Equal(t, canvas.Color("ff4500"), view.Colour)

	resp, err := env.runJSON(t, nil, "colour", "set", "--user", "alice", "zzz")
	require.Error(t, err)
	assert.Equal(t, "VALIDATION", resp.Error.Code)
}

func TestImageHashResolve(t *testing.T) {
	env := newCLIEnv(t)
	key := strings.Repeat("ff0000", 25)

	out := env.mustRun(t, "image", "hash", key)
	hash := strings.TrimSpace(out)
	assert.Equal(t, canvas.ImageHash(5, canvas.Key(key)), hash)

	// Registering again is idempotent.
	assert.Equal(t, out, env.mustRun(t, "image", "hash", strings.ToUpper(key)))

	var view ImageView
	_, err := env.runJSON(t, &view, "image", "resolve", hash, "--plot")
	require.NoError(t, err)
	assert.Equal(t, canvas.Key(key), view.Key)
	assert.Equal(t, "/image/"+key+".png?plot=True", view.URL)

	resp, err := env.runJSON(t, nil, "image", "resolve", "deadbeef")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)

	resp, err = env.runJSON(t, nil, "image", "hash", "abc")
	require.Error(t, err)
	assert.Equal(t, "VALIDATION", resp.Error.Code)
}

func TestDecorate(t *testing.T) {
	env := newCLIEnv(t)

	var assets []decor.Asset
	_, err := env.runJSON(t, &assets, "decorate", "FF0000", "00ff00")
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, decor.Markup("ff0000", "ff0000"), assets[0].Markup)
	assert.FileExists(t, filepath.Join(env.dir, "assets", "ff0000.png"))
	assert.FileExists(t, filepath.Join(env.dir, "assets", "00ff00.png"))

	// A second process finds the existing swatch through preload.
	out := env.mustRun(t, "decorate", "ff0000")
	assert.Equal(t, "<:ff0000:ff0000>\n", out)

	resp, err := env.runJSON(t, nil, "decorate", "nope")
	require.Error(t, err)
	assert.Equal(t, "VALIDATION", resp.Error.Code)
}

func TestPicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/id" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `{"name":{"value":"Name of %s"}}`, r.URL.Query().Get("hex"))
	}))
	defer srv.Close()
	t.Setenv("PIXELARTS_COLOR_API__BASE_URL", srv.URL)
	t.Setenv("PIXELARTS_CACHE__CREATE_DELAY", "1ms")

	env := newCLIEnv(t)
	env.mustRun(t, "colour", "set", "--user", "alice", "ff8800")

	var options []palette.Option
	_, err := env.runJSON(t, &options, "picker", "--user", "alice", "--extra", "123456")
	require.NoError(t, err)

	presets := len(palette.Default().Presets)
	require.Len(t, options, presets+3)
	assert.Equal(t, "Red", options[0].Label)
	assert.Equal(t, "123456", options[presets].Value)
	assert.Equal(t, "Name of 123456", options[presets].Label)

	def := options[presets+1]
	assert.Equal(t, "ff8800", def.Value)
	assert.True(t, def.Default)
	assert.Equal(t, "<:ff8800:ff8800>", def.Markup)

	assert.Equal(t, palette.CustomValue, options[len(options)-1].Value)
}

func TestConfigCommand(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun(t, "config")
	assert.Contains(t, out, "data_dir: "+env.dir)
	assert.Contains(t, out, "create_delay: 300ms")

	var cfg struct {
		Database string `json:"database"`
	}
	_, err := env.runJSON(t, &cfg, "config", "--db", "/tmp/elsewhere.db")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/elsewhere.db", cfg.Database)
}

func TestConfigFile(t *testing.T) {
	env := newCLIEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "pixelarts.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("render:\n  crf: 23\n"), 0o644))

	var cfg struct {
		Render struct {
			CRF int `json:"crf"`
		} `json:"render"`
	}
	_, err := env.runJSON(t, &cfg, "config", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 23, cfg.Render.CRF)
}

func TestMissingConfigFileIsCommandError(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, "--config", filepath.Join(env.dir, "missing.yaml"), "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
