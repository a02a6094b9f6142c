package rescache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/roach88/pixelarts/internal/telemetry"
)

// ErrClosed is returned by Get after Close.
var ErrClosed = errors.New("rescache: closed")

// Defaults for the decoration cache.
const (
	DefaultCapacity    = 2000
	DefaultCreateDelay = 300 * time.Millisecond
)

// Creator creates and releases the external resource behind a key.
type Creator[V any] interface {
	Create(ctx context.Context, key string) (V, error)
	Release(ctx context.Context, key string, value V) error
}

// Cache is a capacity-bounded LRU whose misses are filled by a single
// rate-limited worker. Call Start before Get can complete a miss.
type Cache[V any] struct {
	name      string
	creator   Creator[V]
	capacity  int
	delay     time.Duration
	normalize func(string) (string, error)
	logger    *slog.Logger
	metrics   *telemetry.Metrics

	mu  sync.Mutex
	lru *simplelru.LRU[string, V]

	flights singleflight.Group
	queue   *taskQueue[V]
	limiter *rate.Limiter

	startOnce sync.Once
	closeOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	name      string
	capacity  int
	delay     time.Duration
	normalize func(string) (string, error)
	logger    *slog.Logger
	metrics   *telemetry.Metrics
}

// WithName labels log lines and metrics.
func WithName(name string) Option { return func(o *options) { o.name = name } }

// WithCapacity bounds the number of live entries.
func WithCapacity(n int) Option { return func(o *options) { o.capacity = n } }

// WithCreateDelay sets the minimum gap between the end of one creation
// attempt and the start of the next.
func WithCreateDelay(d time.Duration) Option { return func(o *options) { o.delay = d } }

// WithNormalizer canonicalises keys before lookup. A normaliser error is
// returned from Get unchanged.
func WithNormalizer(fn func(string) (string, error)) Option {
	return func(o *options) { o.normalize = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *telemetry.Metrics) Option { return func(o *options) { o.metrics = m } }

// New returns a stopped cache backed by creator.
func New[V any](creator Creator[V], opts ...Option) (*Cache[V], error) {
	o := options{
		name:     "resource",
		capacity: DefaultCapacity,
		delay:    DefaultCreateDelay,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.capacity <= 0 {
		return nil, fmt.Errorf("rescache: capacity must be positive, got %d", o.capacity)
	}
	if o.delay < 0 {
		return nil, fmt.Errorf("rescache: negative create delay %s", o.delay)
	}

	lru, err := simplelru.NewLRU[string, V](o.capacity, nil)
	if err != nil {
		return nil, fmt.Errorf("rescache: %w", err)
	}

	return &Cache[V]{
		name:      o.name,
		creator:   creator,
		capacity:  o.capacity,
		delay:     o.delay,
		normalize: o.normalize,
		logger:    o.logger.With("cache", o.name),
		metrics:   o.metrics,
		lru:       lru,
		queue:     newTaskQueue[V](),
		limiter:   newLimiter(o.delay),
		done:      make(chan struct{}),
	}, nil
}

// Start launches the creation worker. It stops when ctx is cancelled or
// Close is called. Calling Start more than once has no effect.
func (c *Cache[V]) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		ctx, c.cancel = context.WithCancel(ctx)
		go c.run(ctx)
	})
}

// Close stops the worker and fails every queued request with ErrClosed.
// Entries already cached are left alone; releasing them is the owner's
// decision.
func (c *Cache[V]) Close() {
	c.closeOnce.Do(func() {
		for _, t := range c.queue.close() {
			t.reply <- result[V]{err: ErrClosed}
		}
		// Prevent a later Start, or wait for a concurrent one to finish.
		c.startOnce.Do(func() {})
		if c.cancel != nil {
			c.cancel()
			<-c.done
		}
	})
}

// Get returns the value for key, creating it if needed. It blocks while
// the request waits in the creation queue. Cancelling ctx abandons the
// wait but not the creation, which still completes for other waiters.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, error) {
	var zero V

	key, err := c.key(key)
	if err != nil {
		return zero, err
	}

	if v, ok := c.lookup(key); ok {
		return v, nil
	}

	ch := c.flights.DoChan(key, func() (any, error) {
		reply := make(chan result[V], 1)
		if !c.queue.enqueue(task[V]{key: key, reply: reply}) {
			return zero, ErrClosed
		}
		r := <-reply
		return r.value, r.err
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		v, _ := r.Val.(V)
		return v, nil
	}
}

// Peek returns a cached value without creating it or refreshing recency.
func (c *Cache[V]) Peek(key string) (V, bool) {
	var zero V
	key, err := c.key(key)
	if err != nil {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Peek(key)
}

// Seed records resources that already exist, such as ones found at
// startup. Entries beyond capacity are not added; their keys are returned.
func (c *Cache[V]) Seed(entries map[string]V) (skipped []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for raw, v := range entries {
		key, err := c.key(raw)
		if err != nil {
			skipped = append(skipped, raw)
			continue
		}
		if !c.lru.Contains(key) && c.lru.Len() >= c.capacity {
			skipped = append(skipped, raw)
			continue
		}
		c.lru.Add(key, v)
	}
	c.metrics.Entries(c.name, c.lru.Len())
	return skipped
}

// Len returns the number of cached entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Pending returns the number of queued creations.
func (c *Cache[V]) Pending() int {
	return c.queue.len()
}

// Keys returns cached keys from least to most recently used.
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Keys()
}

func (c *Cache[V]) key(raw string) (string, error) {
	if c.normalize == nil {
		return raw, nil
	}
	return c.normalize(raw)
}

func (c *Cache[V]) lookup(key string) (V, bool) {
	c.mu.Lock()
	v, ok := c.lru.Get(key)
	c.mu.Unlock()
	c.metrics.Lookup(c.name, ok)
	return v, ok
}

// run is the single creation worker.
func (c *Cache[V]) run(ctx context.Context) {
	defer close(c.done)

	for {
		if err := ctx.Err(); err != nil {
			c.drain(err)
			return
		}

		t, ok := c.queue.tryDequeue()
		if !ok {
			select {
			case <-ctx.Done():
				c.drain(ctx.Err())
				return
			case _, open := <-c.queue.wait():
				if !open {
					return
				}
			}
			continue
		}

		v, err := c.fill(ctx, t.key)
		t.reply <- result[V]{value: v, err: err}
	}
}

// drain fails whatever is still queued once the worker stops.
func (c *Cache[V]) drain(cause error) {
	for _, t := range c.queue.close() {
		t.reply <- result[V]{err: fmt.Errorf("%w: %v", ErrClosed, cause)}
	}
}

// fill creates the value for key unless it appeared meanwhile.
func (c *Cache[V]) fill(ctx context.Context, key string) (V, error) {
	var zero V

	c.mu.Lock()
	v, ok := c.lru.Get(key)
	c.mu.Unlock()
	if ok {
		return v, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrClosed, err)
	}
	defer c.pace()

	if err := c.evict(ctx); err != nil {
		c.metrics.Creation(c.name, err)
		return zero, err
	}

	v, err := c.creator.Create(ctx, key)
	c.metrics.Creation(c.name, err)
	if err != nil {
		c.logger.Warn("create failed", "key", key, "error", err)
		return zero, fmt.Errorf("create %s %q: %w", c.name, key, err)
	}

	c.mu.Lock()
	c.lru.Add(key, v)
	n := c.lru.Len()
	c.mu.Unlock()
	c.metrics.Entries(c.name, n)

	c.logger.Debug("created", "key", key, "entries", n)
	return v, nil
}

func newLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// pace restarts the creation interval when an attempt ends, successful or
// not, so a slow creation is still followed by the full delay. Only the
// worker goroutine touches the limiter.
func (c *Cache[V]) pace() {
	if c.delay <= 0 {
		return
	}
	c.limiter = newLimiter(c.delay)
	c.limiter.Allow()
}

// evict releases least recently used entries until there is room for one
// more. A release failure keeps the entry and aborts the creation.
func (c *Cache[V]) evict(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.lru.Len() < c.capacity {
			c.mu.Unlock()
			return nil
		}
		key, v, _ := c.lru.GetOldest()
		c.mu.Unlock()

		if err := c.creator.Release(ctx, key, v); err != nil {
			c.logger.Warn("release failed", "key", key, "error", err)
			return fmt.Errorf("release %s %q: %w", c.name, key, err)
		}

		c.mu.Lock()
		c.lru.Remove(key)
		c.mu.Unlock()
		c.metrics.Eviction(c.name)
		c.logger.Debug("evicted", "key", key)
	}
}
