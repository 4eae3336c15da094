package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

type cacheKey struct {
	name      string
	signature string
}

// cacheEntry serializes construction of one key. stage stays nil until a
// construction succeeds.
type cacheEntry struct {
	mu    sync.Mutex
	stage Stage
}

// Cache lazily constructs stages and keeps them keyed by (name, signature),
// so identical configuration never builds a stage twice.
//
// A Cache is owned by whoever created it and is safe for concurrent use.
// Concurrent first requests for the same key construct exactly once; requests
// for different keys construct in parallel.
type Cache struct {
	registry *Registry
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[cacheKey]*cacheEntry

	constructions atomic.Int64
}

// NewCache creates an empty cache backed by registry.
func NewCache(registry *Registry, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		registry: registry,
		logger:   logger.With("component", "stage_cache"),
		entries:  make(map[cacheKey]*cacheEntry),
	}
}

// Registry returns the registry the cache constructs from.
func (c *Cache) Registry() *Registry {
	return c.registry
}

// Get returns the stage for name under props, constructing it on first use.
// The cache key is the name plus the signature of the properties relevant to
// that stage; a changed signature yields a fresh instance.
func (c *Cache) Get(name string, props Properties) (Stage, error) {
	f, ok := c.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnregisteredStage, name)
	}
	key := cacheKey{name: name, signature: signature(name, f.SignatureKeys, props)}

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{}
		c.entries[key] = e
	}
	c.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stage != nil {
		return e.stage, nil
	}

	c.logger.Debug("constructing stage", "stage", name, "signature", key.signature)
	s, err := f.New(props)
	if err != nil {
		return nil, &StageError{Stage: name, Kind: ErrStageConstruction, Err: err}
	}
	if s == nil {
		return nil, &StageError{Stage: name, Kind: ErrStageConstruction, Err: fmt.Errorf("factory returned nil stage")}
	}
	c.constructions.Add(1)
	e.stage = s
	return s, nil
}

// Len returns the number of constructed stages held.
func (c *Cache) Len() int {
	c.mu.Lock()
	entries := make([]*cacheEntry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	c.mu.Unlock()

	n := 0
	for _, e := range entries {
		e.mu.Lock()
		if e.stage != nil {
			n++
		}
		e.mu.Unlock()
	}
	return n
}

// Constructions returns how many stages the cache has built over its lifetime.
func (c *Cache) Constructions() int64 {
	return c.constructions.Load()
}

// Reset drops every entry. Stages implementing io.Closer are closed.
// Pipelines built before Reset keep working with the stages they hold.
func (c *Cache) Reset() {
	c.mu.Lock()
	old := c.entries
	c.entries = make(map[cacheKey]*cacheEntry)
	c.mu.Unlock()

	for key, e := range old {
		e.mu.Lock()
		s := e.stage
		e.mu.Unlock()
		if closer, ok := s.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				c.logger.Warn("failed to close stage", "stage", key.name, "error", err)
			}
		}
	}
	c.logger.Debug("stage cache reset", "dropped", len(old))
}
