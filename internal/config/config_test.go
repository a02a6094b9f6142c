package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pixelarts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewLoader(WithEnvPrefix("PIXELARTS_TEST_NONE_")).Load()
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, filepath.Join("data", "data.db"), cfg.Database)
	assert.Equal(t, filepath.Join("data", "preview"), cfg.PreviewDir)
	assert.Equal(t, filepath.Join("data", "assets"), cfg.AssetDir)
	assert.Equal(t, 2000, cfg.Cache.Capacity)
	assert.Equal(t, 300*time.Millisecond, cfg.Cache.CreateDelay)
	assert.Equal(t, 1, cfg.Render.FPS)
	assert.Equal(t, 18, cfg.Render.CRF)
	assert.Equal(t, "fast", cfg.Render.Preset)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
data_dir: /srv/pixel
domain_url: https://img.example.com/
render:
  crf: 23
cache:
  create_delay: 1s
`)
	cfg, err := NewLoader(WithConfigFile(path), WithEnvPrefix("PIXELARTS_TEST_NONE_")).Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/pixel/data.db", cfg.Database)
	assert.Equal(t, "https://img.example.com", cfg.DomainURL)
	assert.Equal(t, 23, cfg.Render.CRF)
	assert.Equal(t, "fast", cfg.Render.Preset, "unset keys keep defaults")
	assert.Equal(t, time.Second, cfg.Cache.CreateDelay)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "render:\n  crf: 23\n")
	t.Setenv("PIXELARTS_RENDER__CRF", "30")
	t.Setenv("PIXELARTS_DATA_DIR", "/var/lib/pixelarts")
	t.Setenv("PIXELARTS_CACHE__CAPACITY", "50")

	cfg, err := NewLoader(WithConfigFile(path)).Load()
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Render.CRF)
	assert.Equal(t, "/var/lib/pixelarts", cfg.DataDir)
	assert.Equal(t, 50, cfg.Cache.Capacity)
}

func TestLoad_SetOverridesEverything(t *testing.T) {
	t.Setenv("PIXELARTS_DATABASE", "/env.db")

	l := NewLoader()
	l.Set("database", "/flag.db")
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "/flag.db", cfg.Database)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader(WithConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))).Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "fps", mutate: func(c *Config) { c.Render.FPS = 0 }, want: "render.fps"},
		{name: "crf high", mutate: func(c *Config) { c.Render.CRF = 52 }, want: "render.crf"},
		{name: "capacity", mutate: func(c *Config) { c.Cache.Capacity = 0 }, want: "cache.capacity"},
		{name: "delay", mutate: func(c *Config) { c.Cache.CreateDelay = -time.Second }, want: "cache.create_delay"},
		{name: "timeout", mutate: func(c *Config) { c.ColorAPI.Timeout = 0 }, want: "color_api.timeout"},
		{name: "level", mutate: func(c *Config) { c.Log.Level = "loud" }, want: "log.level"},
		{name: "domain", mutate: func(c *Config) { c.DomainURL = "not a url" }, want: "domain_url"},
		{name: "no dirs", mutate: func(c *Config) { c.DataDir = "" }, want: "data_dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	cfg := Default()
	cfg.Resolve()
	assert.NoError(t, cfg.Validate())
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", l.String())
}
