// ABOUTME: Sample cache for decoded one-shot sounds
// ABOUTME: Deduplicates concurrent decodes and remembers failures until cleared
package cache

import (
	"context"
	"errors"
	"log"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/beatmix/beatmix/pkg/audio"
)

// Decoder produces canonical PCM for a file path
type Decoder interface {
	DecodeFile(ctx context.Context, path string) (*audio.PCMBuffer, error)
}

// entry is a cached decode result; buf is nil for a negative result
type entry struct {
	buf *audio.PCMBuffer
	err error
}

// maxFlightRetries bounds how often a waiter restarts a cancelled flight
const maxFlightRetries = 3

// scope names one of the two logical caches
type scope string

const (
	scopeUser    scope = "user"
	scopeDefault scope = "default"
)

// Stats is a point-in-time view of cache contents
type Stats struct {
	Entries   int
	Defaults  int
	Negatives int
	Decodes   int64
}

// Cache owns decoded sample buffers keyed by normalized path. User content
// is dropped by Clear; the default sub-cache lives as long as the Cache.
type Cache struct {
	decoder Decoder
	group   singleflight.Group

	mu       sync.RWMutex
	user     map[string]entry
	defaults map[string]entry

	// generation invalidates in-flight user decodes across Clear
	generation atomic.Uint64
	decodes    atomic.Int64
}

// New creates an empty cache
func New(decoder Decoder) *Cache {
	return &Cache{
		decoder:  decoder,
		user:     make(map[string]entry),
		defaults: make(map[string]entry),
	}
}

// Normalize returns the cache identity for a path
func Normalize(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// GetOrCreate returns the decoded buffer for path, decoding it at most once
// no matter how many goroutines ask concurrently. Unplayable files are
// remembered and return the same error without decoding again.
func (c *Cache) GetOrCreate(ctx context.Context, path string) (*audio.PCMBuffer, error) {
	return c.get(ctx, scopeUser, Normalize(path))
}

// GetOrCreateDefault is GetOrCreate for assets that ship with the player.
// These survive Clear.
func (c *Cache) GetOrCreateDefault(ctx context.Context, path string) (*audio.PCMBuffer, error) {
	return c.get(ctx, scopeDefault, Normalize(path))
}

// CreateMany prefetches paths in parallel. Individual decode failures are
// cached as negative results; only cancellation is returned.
func (c *Cache) CreateMany(ctx context.Context, paths []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for _, p := range paths {
		g.Go(func() error {
			_, err := c.GetOrCreate(gctx, p)
			if isCancellation(err) {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

// Clear drops every user entry. The default sub-cache is kept.
func (c *Cache) Clear() {
	c.mu.Lock()
	n := len(c.user)
	c.user = make(map[string]entry)
	c.generation.Add(1)
	c.mu.Unlock()

	log.Printf("Sample cache cleared (%d entries)", n)
}

// Stats reports cache sizes and the total number of decodes performed
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{
		Entries:  len(c.user),
		Defaults: len(c.defaults),
		Decodes:  c.decodes.Load(),
	}
	for _, e := range c.user {
		if e.buf == nil {
			s.Negatives++
		}
	}
	for _, e := range c.defaults {
		if e.buf == nil {
			s.Negatives++
		}
	}
	return s
}

func (c *Cache) lookup(sc scope, key string) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m := c.user
	if sc == scopeDefault {
		m = c.defaults
	}
	e, ok := m[key]
	return e, ok
}

func (c *Cache) get(ctx context.Context, sc scope, key string) (*audio.PCMBuffer, error) {
	if e, ok := c.lookup(sc, key); ok {
		return e.buf, e.err
	}

	for attempt := 0; ; attempt++ {
		gen := c.generation.Load()
		ch := c.group.DoChan(string(sc)+":"+key, func() (interface{}, error) {
			// Double-check after winning the flight
			if e, ok := c.lookup(sc, key); ok {
				return e, nil
			}

			c.decodes.Add(1)
			buf, err := c.decoder.DecodeFile(ctx, key)
			e := entry{buf: buf, err: err}
			if isCancellation(err) {
				return e, nil
			}
			if err != nil {
				log.Printf("Sample unplayable, caching negative result: %v", err)
			}
			c.store(sc, key, e, gen)
			return e, nil
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			e := res.Val.(entry)
			// The flight belonged to a caller that gave up; try again with ours
			if isCancellation(e.err) && ctx.Err() == nil && attempt < maxFlightRetries {
				continue
			}
			return e.buf, e.err
		}
	}
}

func (c *Cache) store(sc scope, key string, e entry, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sc == scopeDefault {
		c.defaults[key] = e
		return
	}
	// A Clear happened while decoding; the result belongs to an old context
	if c.generation.Load() != gen {
		return
	}
	c.user[key] = e
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
