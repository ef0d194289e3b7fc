// Package cache provides a bounded, expiring memo for expensive lookups such as
// query embeddings and geocoder results. Concurrent misses for the same key are
// coalesced so that only one load runs.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// ErrInvalidSize is returned by New when size is not positive.
var ErrInvalidSize = errors.New("cache: size must be positive")

// Outcome describes how a value was obtained by Load.
type Outcome int

const (
	// Hit means the value was already cached.
	Hit Outcome = iota
	// Loaded means this call ran the loader.
	Loaded
	// Shared means another in-flight call ran the loader and this call reused its result.
	Shared
)

func (o Outcome) String() string {
	switch o {
	case Hit:
		return "hit"
	case Loaded:
		return "loaded"
	case Shared:
		return "shared"
	default:
		return "unknown"
	}
}

// LoadFunc produces the value for key on a miss.
type LoadFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits   uint64
	Loads  uint64
	Shared uint64
	Errors uint64
}

// DefaultLoadTimeout bounds a load when no WithLoadTimeout option is given.
const DefaultLoadTimeout = 30 * time.Second

// Option configures a Cache.
type Option func(*options)

type options struct {
	loadTimeout time.Duration
}

// WithLoadTimeout bounds each load. Non-positive values keep the default.
func WithLoadTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.loadTimeout = d
		}
	}
}

// LogValue implements slog.LogValuer.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("hits", s.Hits),
		slog.Uint64("loads", s.Loads),
		slog.Uint64("shared", s.Shared),
		slog.Uint64("errors", s.Errors),
	)
}

// Cache memoizes successful loads. Failed loads are never stored.
type Cache[K comparable, V any] struct {
	entries     *expirable.LRU[K, V]
	flights     singleflight.Group
	loadTimeout time.Duration
	flightKey   func(K) string

	hits   atomic.Uint64
	loads  atomic.Uint64
	shared atomic.Uint64
	errs   atomic.Uint64
}

// New creates a cache holding at most size entries. Entries older than ttl are
// dropped; ttl <= 0 disables expiry. flightKey maps a key to the string used to
// coalesce concurrent loads and must be injective.
func New[K comparable, V any](
	size int, ttl time.Duration, flightKey func(K) string, opts ...Option,
) (*Cache[K, V], error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	o := options{loadTimeout: DefaultLoadTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	return &Cache[K, V]{
		entries:     expirable.NewLRU[K, V](size, nil, ttl),
		flightKey:   flightKey,
		loadTimeout: o.loadTimeout,
	}, nil
}

// Load returns the cached value for key or runs load to produce it.
// The load is detached from the caller's cancellation and bounded by the load
// timeout, so one caller giving up does not fail the others waiting on the
// same key. A caller whose ctx ends stops waiting and gets ctx.Err().
func (c *Cache[K, V]) Load(ctx context.Context, key K, load LoadFunc[K, V]) (V, Outcome, error) {
	var zero V

	if v, ok := c.entries.Get(key); ok {
		c.hits.Add(1)

		return v, Hit, nil
	}

	results := c.flights.DoChan(c.flightKey(key), func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()

		loaded, loadErr := load(loadCtx, key)
		if loadErr != nil {
			return nil, loadErr
		}

		c.entries.Add(key, loaded)

		return loaded, nil
	})

	select {
	case <-ctx.Done():
		c.errs.Add(1)

		return zero, Loaded, ctx.Err()
	case res := <-results:
		outcome := Loaded
		if res.Shared {
			outcome = Shared
			c.shared.Add(1)
		} else {
			c.loads.Add(1)
		}

		if res.Err != nil {
			c.errs.Add(1)

			return zero, outcome, res.Err
		}

		return res.Val.(V), outcome, nil
	}
}

// Len returns the number of live entries.
func (c *Cache[K, V]) Len() int {
	return c.entries.Len()
}

// Stats returns the current counters.
func (c *Cache[K, V]) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Loads:  c.loads.Load(),
		Shared: c.shared.Load(),
		Errors: c.errs.Load(),
	}
}
