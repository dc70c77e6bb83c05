// Package querycache caches listing query results under canonical keys.
//
// At most one load runs per key at a time; concurrent callers share it. A caller whose context ends stops
// waiting but never cancels the shared load. Mutations describe what they touched as an Invalidation and
// the cache purges the matching entries.
package querycache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Store is the backing key/value storage for cached results.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Stats counts cache activity since start.
type Stats struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Loads         uint64 `json:"loads"`
	Invalidations uint64 `json:"invalidations"`
}

type Cache struct {
	store Store
	ttl   time.Duration
	group singleflight.Group

	// gen advances on every invalidation; a load that started under an older gen does not write back.
	gen atomic.Uint64

	hits, misses, loads, invalidations atomic.Uint64
}

// New returns a cache over store. ttl <= 0 keeps entries until invalidated.
func New(store Store, ttl time.Duration) *Cache {
	return &Cache{store: store, ttl: ttl}
}

func (c *Cache) Stats() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Loads:         c.loads.Load(),
		Invalidations: c.invalidations.Load(),
	}
}

// Fetch returns the cached value for key or computes it with load. Values are stored JSON-encoded.
// A nil cache always calls load.
func Fetch[T any](ctx context.Context, c *Cache, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T
	if c == nil {
		return load(ctx)
	}
	b, err := c.fetch(ctx, key, func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return zero, fmt.Errorf("querycache: decode %q: %w", key, err)
	}
	return out, nil
}

func (c *Cache) fetch(ctx context.Context, key string, load func(context.Context) ([]byte, error)) ([]byte, error) {
	if b, ok := c.lookup(ctx, key); ok {
		c.hits.Add(1)
		return b, nil
	}
	c.misses.Add(1)

	gen := c.gen.Load()
	flightKey := strconv.FormatUint(gen, 10) + "|" + key
	// The load outlives any single caller.
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey, func() (interface{}, error) {
		if b, ok := c.lookup(loadCtx, key); ok {
			return b, nil
		}
		c.loads.Add(1)
		b, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.storeIfCurrent(loadCtx, key, b, gen)
		return b, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// storeIfCurrent writes b back only while no invalidation has happened since the load began. An
// invalidation that lands during the write is caught by the second check and the entry is dropped again.
func (c *Cache) storeIfCurrent(ctx context.Context, key string, b []byte, gen uint64) {
	if c.gen.Load() != gen {
		return
	}
	if err := c.store.Set(ctx, key, b, c.ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("querycache: store set failed")
		return
	}
	if c.gen.Load() != gen {
		if err := c.store.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("querycache: stale entry delete failed")
		}
	}
}

func (c *Cache) lookup(ctx context.Context, key string) ([]byte, bool) {
	b, ok, err := c.store.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("querycache: store get failed, loading")
		return nil, false
	}
	return b, ok
}

// Invalidate purges every entry named by inv.
func (c *Cache) Invalidate(ctx context.Context, inv Invalidation) error {
	if c == nil || inv.Empty() {
		return nil
	}
	c.gen.Add(1)
	c.invalidations.Add(1)
	var errs []error
	for _, p := range inv.Prefixes {
		if err := c.store.DeletePrefix(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("delete prefix %q: %w", p, err))
		}
	}
	if len(inv.Keys) > 0 {
		if err := c.store.Delete(ctx, inv.Keys...); err != nil {
			errs = append(errs, fmt.Errorf("delete keys: %w", err))
		}
	}
	return errors.Join(errs...)
}
