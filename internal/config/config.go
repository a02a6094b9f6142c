// Package config loads pixelarts configuration.
//
// Sources, lowest priority first: built-in defaults, a YAML file, then
// PIXELARTS_* environment variables. A double underscore in a variable
// name separates nesting levels, so PIXELARTS_RENDER__CRF sets render.crf
// while PIXELARTS_DATA_DIR sets data_dir.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/pixelarts/internal/rescache"
)

// Config is the full runtime configuration.
type Config struct {
	DataDir    string `koanf:"data_dir" json:"data_dir" yaml:"data_dir"`
	Database   string `koanf:"database" json:"database" yaml:"database"`
	PreviewDir string `koanf:"preview_dir" json:"preview_dir" yaml:"preview_dir"`
	AssetDir   string `koanf:"asset_dir" json:"asset_dir" yaml:"asset_dir"`
	DomainURL  string `koanf:"domain_url" json:"domain_url" yaml:"domain_url"`

	// Palette is an optional CUE file replacing the built-in presets.
	Palette string `koanf:"palette" json:"palette,omitempty" yaml:"palette,omitempty"`

	Log      LogConfig      `koanf:"log" json:"log" yaml:"log"`
	Render   RenderConfig   `koanf:"render" json:"render" yaml:"render"`
	Cache    CacheConfig    `koanf:"cache" json:"cache" yaml:"cache"`
	ColorAPI ColorAPIConfig `koanf:"color_api" json:"color_api" yaml:"color_api"`
}

type LogConfig struct {
	Level string `koanf:"level" json:"level" yaml:"level"`
}

type RenderConfig struct {
	FFmpeg string `koanf:"ffmpeg" json:"ffmpeg" yaml:"ffmpeg"`
	FPS    int    `koanf:"fps" json:"fps" yaml:"fps"`
	CRF    int    `koanf:"crf" json:"crf" yaml:"crf"`
	Preset string `koanf:"preset" json:"preset" yaml:"preset"`
}

type CacheConfig struct {
	Capacity    int           `koanf:"capacity" json:"capacity" yaml:"capacity"`
	CreateDelay time.Duration `koanf:"create_delay" json:"create_delay" yaml:"create_delay"`
}

type ColorAPIConfig struct {
	BaseURL string        `koanf:"base_url" json:"base_url" yaml:"base_url"`
	Timeout time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataDir: "data",
		Log:     LogConfig{Level: "info"},
		Render: RenderConfig{
			FFmpeg: "ffmpeg",
			FPS:    1,
			CRF:    18,
			Preset: "fast",
		},
		Cache: CacheConfig{
			Capacity:    rescache.DefaultCapacity,
			CreateDelay: rescache.DefaultCreateDelay,
		},
		ColorAPI: ColorAPIConfig{
			BaseURL: "https://www.thecolorapi.com",
			Timeout: 5 * time.Second,
		},
	}
}

// Resolve fills paths left empty from DataDir.
func (c *Config) Resolve() {
	if c.Database == "" {
		c.Database = filepath.Join(c.DataDir, "data.db")
	}
	if c.PreviewDir == "" {
		c.PreviewDir = filepath.Join(c.DataDir, "preview")
	}
	if c.AssetDir == "" {
		c.AssetDir = filepath.Join(c.DataDir, "assets")
	}
	c.DomainURL = strings.TrimRight(c.DomainURL, "/")
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.DataDir == "" && (c.Database == "" || c.PreviewDir == "" || c.AssetDir == "") {
		return fmt.Errorf("data_dir is required unless database, preview_dir and asset_dir are all set")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Render.FPS <= 0 {
		return fmt.Errorf("render.fps must be positive, got %d", c.Render.FPS)
	}
	if c.Render.CRF < 0 || c.Render.CRF > 51 {
		return fmt.Errorf("render.crf must be in 0..51, got %d", c.Render.CRF)
	}
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity must be positive, got %d", c.Cache.Capacity)
	}
	if c.Cache.CreateDelay < 0 {
		return fmt.Errorf("cache.create_delay must not be negative, got %s", c.Cache.CreateDelay)
	}
	if c.ColorAPI.Timeout <= 0 {
		return fmt.Errorf("color_api.timeout must be positive, got %s", c.ColorAPI.Timeout)
	}
	for key, raw := range map[string]string{"domain_url": c.DomainURL, "color_api.base_url": c.ColorAPI.BaseURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
		}
	}
	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}
