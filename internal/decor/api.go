package decor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/roach88/pixelarts/internal/canvas"
)

// Asset is an uploaded swatch as the chat platform knows it.
type Asset struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Markup string `json:"markup"`
}

// API is the external asset store swatches are uploaded to.
type API interface {
	Create(ctx context.Context, name string, image []byte) (Asset, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Asset, error)
}

// Markup formats the inline reference a message uses to show an asset.
func Markup(name, id string) string {
	return fmt.Sprintf("<:%s:%s>", name, id)
}

// DirAPI is an API backed by PNG files in a directory. The asset id is the
// file's base name without extension.
type DirAPI struct {
	dir string
	mu  sync.Mutex
}

// NewDirAPI returns a DirAPI rooted at dir, creating it if needed.
func NewDirAPI(dir string) (*DirAPI, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}
	return &DirAPI{dir: dir}, nil
}

func (d *DirAPI) Create(ctx context.Context, name string, image []byte) (Asset, error) {
	if err := ctx.Err(); err != nil {
		return Asset{}, err
	}
	if !validName(name) {
		return Asset{}, canvas.NewValidationError(fmt.Sprintf("invalid asset name %q", name))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	path := filepath.Join(d.dir, name+".png")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, image, 0o644); err != nil {
		return Asset{}, canvas.NewExternalError("write asset", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return Asset{}, canvas.NewExternalError("publish asset", err)
	}
	return Asset{ID: name, Name: name, Markup: Markup(name, name)}, nil
}

func (d *DirAPI) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validName(id) {
		return canvas.NewValidationError(fmt.Sprintf("invalid asset id %q", id))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	err := os.Remove(filepath.Join(d.dir, id+".png"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return canvas.NewExternalError("delete asset", err)
	}
	return nil
}

func (d *DirAPI) List(ctx context.Context) ([]Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	files, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, canvas.NewExternalError("list assets", err)
	}
	assets := make([]Asset, 0, len(files))
	for _, f := range files {
		name, ok := strings.CutSuffix(f.Name(), ".png")
		if !ok || f.IsDir() || !validName(name) {
			continue
		}
		assets = append(assets, Asset{ID: name, Name: name, Markup: Markup(name, name)})
	}
	return assets, nil
}

func validName(s string) bool {
	if s == "" || len(s) > 32 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}
