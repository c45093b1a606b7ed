// Package cache persists classification verdicts keyed by URL with a TTL and
// a size cap enforced on write.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Veraticus/do-one-thing/internal/common"
	"github.com/Veraticus/do-one-thing/internal/model"
	"github.com/Veraticus/do-one-thing/internal/service"
)

// Defaults for Config.
const (
	DefaultTTL          = time.Hour
	DefaultMaxEntries   = 1000
	DefaultLowWatermark = 800
)

// Config controls expiry and eviction.
type Config struct {
	TTL          time.Duration
	MaxEntries   int
	LowWatermark int
}

// DefaultConfig returns the standard cache limits.
func DefaultConfig() Config {
	return Config{
		TTL:          DefaultTTL,
		MaxEntries:   DefaultMaxEntries,
		LowWatermark: DefaultLowWatermark,
	}
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	if c.LowWatermark <= 0 || c.LowWatermark > c.MaxEntries {
		c.LowWatermark = c.MaxEntries * 4 / 5
	}
	return c
}

// Cache stores every verdict in a single document under service.KeyURLCache.
// Each operation is a read-modify-write of that document; the mutex serializes
// them within the process.
type Cache struct {
	kv     service.KVStore
	logger *slog.Logger
	now    func() time.Time
	cfg    Config
	mu     sync.Mutex
}

// New creates a cache backed by kv.
func New(kv service.KVStore, cfg Config, logger *slog.Logger) *Cache {
	return &Cache{
		kv:     kv,
		logger: common.LoggerOrDefault(logger),
		cfg:    cfg.withDefaults(),
		now:    time.Now,
	}
}

// SetClock replaces the time source used for expiry checks.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Config returns the effective limits.
func (c *Cache) Config() Config {
	return c.cfg
}

// Get returns the verdict cached for url. An expired entry is purged and
// reported as absent.
func (c *Cache) Get(ctx context.Context, url string) (model.Verdict, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.load(ctx)
	if err != nil {
		return model.Verdict{}, false, err
	}

	verdict, ok := entries[url]
	if !ok {
		return model.Verdict{}, false, nil
	}

	if verdict.Expired(c.now(), c.cfg.TTL) {
		delete(entries, url)
		if err := c.save(ctx, entries); err != nil {
			return model.Verdict{}, false, err
		}
		return model.Verdict{}, false, nil
	}

	return verdict, true, nil
}

// Put upserts one verdict.
func (c *Cache) Put(ctx context.Context, verdict model.Verdict) error {
	return c.PutMany(ctx, []model.Verdict{verdict})
}

// PutMany upserts verdicts in one write. If the cache then holds more than
// MaxEntries, the oldest entries not written by this call are evicted until
// LowWatermark of them remain.
func (c *Cache) PutMany(ctx context.Context, verdicts []model.Verdict) error {
	if len(verdicts) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.load(ctx)
	if err != nil {
		return err
	}

	written := make(map[string]struct{}, len(verdicts))
	for _, v := range verdicts {
		entries[v.URL] = v
		written[v.URL] = struct{}{}
	}

	if len(entries) > c.cfg.MaxEntries {
		evicted := c.evict(entries, written)
		c.logger.Debug("Evicted cached verdicts",
			"evicted", evicted,
			"remaining", len(entries))
	}

	return c.save(ctx, entries)
}

// evict removes the oldest entries outside written, keeping LowWatermark of them.
// Sorting the whole cache on each overflow is fine at the default cap but
// would need an ordered index if MaxEntries grows by orders of magnitude.
func (c *Cache) evict(entries map[string]model.Verdict, written map[string]struct{}) int {
	candidates := make([]model.Verdict, 0, len(entries))
	for url, v := range entries {
		if _, ok := written[url]; !ok {
			candidates = append(candidates, v)
		}
	}

	excess := len(candidates) - c.cfg.LowWatermark
	if excess <= 0 {
		return 0
	}

	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].Timestamp.Equal(candidates[j].Timestamp) {
			return candidates[i].Timestamp.Before(candidates[j].Timestamp)
		}
		return candidates[i].URL < candidates[j].URL
	})

	for _, v := range candidates[:excess] {
		delete(entries, v.URL)
	}
	return excess
}

// Remove drops the entry for url, if any.
func (c *Cache) Remove(ctx context.Context, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := entries[url]; !ok {
		return nil
	}
	delete(entries, url)
	return c.save(ctx, entries)
}

// Clear drops every entry.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.kv.Remove(ctx, service.KeyURLCache); err != nil {
		return fmt.Errorf("%w: %w", common.ErrCacheIO, err)
	}
	return nil
}

// Len returns the number of stored entries, including expired ones not yet purged.
func (c *Cache) Len(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.load(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (c *Cache) load(ctx context.Context) (map[string]model.Verdict, error) {
	raw, err := c.kv.Get(ctx, service.KeyURLCache)
	if errors.Is(err, common.ErrNotFound) {
		return make(map[string]model.Verdict), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrCacheIO, err)
	}

	entries := make(map[string]model.Verdict)
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: failed to decode cache: %w", common.ErrCacheIO, err)
	}
	return entries, nil
}

func (c *Cache) save(ctx context.Context, entries map[string]model.Verdict) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("%w: failed to encode cache: %w", common.ErrCacheIO, err)
	}
	if err := c.kv.Set(ctx, service.KeyURLCache, raw); err != nil {
		return fmt.Errorf("%w: %w", common.ErrCacheIO, err)
	}
	return nil
}
