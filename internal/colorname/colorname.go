// Package colorname looks up human-readable names for colours.
//
// Names come from an HTTP colour API (GET {base}/id?hex=rrggbb returning
// {"name":{"value":"..."}}). Any failure resolves to "#RRGGBB", and that
// fallback is cached like a real name so a failing API is asked at most
// once per colour.
package colorname

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/pixelarts/internal/canvas"
	"github.com/roach88/pixelarts/internal/rescache"
)

// DefaultBaseURL is the public colour API.
const DefaultBaseURL = "https://www.thecolorapi.com"

// Resolver maps colours to names.
type Resolver struct {
	cache *rescache.Cache[string]
}

type fetcher struct {
	base   string
	client *http.Client
	logger *slog.Logger
}

type apiResponse struct {
	Name struct {
		Value string `json:"value"`
	} `json:"name"`
}

func (f fetcher) Create(ctx context.Context, key string) (string, error) {
	c := canvas.Color(key)
	name, err := f.fetch(ctx, c)
	if err != nil {
		f.logger.Debug("colour name lookup failed", "hex", key, "error", err)
		return c.Upper(), nil
	}
	return name, nil
}

func (f fetcher) Release(context.Context, string, string) error { return nil }

func (f fetcher) fetch(ctx context.Context, c canvas.Color) (string, error) {
	u := f.base + "/id?" + url.Values{"hex": {string(c)}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	var body apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	name := strings.TrimSpace(body.Name.Value)
	if name == "" {
		return "", fmt.Errorf("empty name")
	}
	return name, nil
}

// Options configures a Resolver.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
	Logger  *slog.Logger
}

// New returns a stopped Resolver. cacheOpts are passed to the cache.
func New(o Options, cacheOpts ...rescache.Option) (*Resolver, error) {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Client == nil {
		timeout := o.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		o.Client = &http.Client{Timeout: timeout}
	}

	f := fetcher{base: strings.TrimRight(o.BaseURL, "/"), client: o.Client, logger: o.Logger}
	opts := append([]rescache.Option{rescache.WithCreateDelay(0)}, cacheOpts...)
	opts = append(opts,
		rescache.WithName("colour_name"),
		rescache.WithNormalizer(normalize),
		rescache.WithLogger(o.Logger),
	)
	cache, err := rescache.New[string](f, opts...)
	if err != nil {
		return nil, err
	}
	return &Resolver{cache: cache}, nil
}

func normalize(raw string) (string, error) {
	c, err := canvas.ParseColor(raw)
	if err != nil {
		return "", err
	}
	return string(c), nil
}

// Start launches the lookup worker.
func (r *Resolver) Start(ctx context.Context) { r.cache.Start(ctx) }

// Close stops the lookup worker.
func (r *Resolver) Close() { r.cache.Close() }

// Name returns the name of a colour. Only an invalid colour or a cancelled
// ctx produce an error.
func (r *Resolver) Name(ctx context.Context, c canvas.Color) (string, error) {
	return r.cache.Get(ctx, string(c))
}
