package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oguzk/shortkit/internal/app/model"
	"github.com/oguzk/shortkit/internal/app/repository"
	"github.com/oguzk/shortkit/internal/infra/metrics"
	"go.uber.org/zap"
)

// CacheStore is the key-value surface the cache layer needs from its backend.
// The redis adapter implements it; tests substitute an in-memory fake.
type CacheStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// negativeEntry marks a cached "not found" result so repeated lookups of
// garbage codes never reach the persistent store.
const negativeEntry = "null"

const defaultCacheOpTimeout = 200 * time.Millisecond

// cacheEntry is the cached projection of a ShortURL. The activity flag and
// expiry are stored rather than filtered out so callers get a precise reason
// on resolution failure.
type cacheEntry struct {
	TargetURL string     `json:"target_url"`
	IsActive  bool       `json:"is_active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// URLCacheConfig tunes TTLs and per-call timeouts.
type URLCacheConfig struct {
	TTL         time.Duration
	NegativeTTL time.Duration
	OpTimeout   time.Duration
}

// URLCache is a cache-aside layer in front of the persistent URL store. It is
// never the source of truth; every entry is reconstructable from the store.
type URLCache struct {
	store       CacheStore
	repo        repository.URLRepository
	logger      *zap.Logger
	ttl         time.Duration
	negativeTTL time.Duration
	opTimeout   time.Duration
	keyPrefix   string
}

// NewURLCache creates a cache layer over the given store and repository.
func NewURLCache(store CacheStore, repo repository.URLRepository, cfg URLCacheConfig, logger *zap.Logger) *URLCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.NegativeTTL <= 0 {
		cfg.NegativeTTL = time.Minute
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = defaultCacheOpTimeout
	}

	return &URLCache{
		store:       store,
		repo:        repo,
		logger:      logger,
		ttl:         cfg.TTL,
		negativeTTL: cfg.NegativeTTL,
		opTimeout:   cfg.OpTimeout,
		keyPrefix:   "url:",
	}
}

// Resolve returns the target URL for a code. Cache hits never touch the
// persistent store; misses fall through, repopulate and return. When the cache
// store is unreachable the resolve degrades to a direct store read.
func (c *URLCache) Resolve(ctx context.Context, code string) (string, error) {
	key := c.keyPrefix + code

	getCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	raw, found, err := c.store.Get(getCtx, key)
	cancel()

	if err != nil {
		metrics.CacheDegraded.Inc()
		c.logger.Warn("cache store unavailable, falling back to persistent store",
			zap.String("code", code), zap.Error(err))
		return c.resolveFromStore(ctx, code, false)
	}

	if found {
		if raw == negativeEntry {
			metrics.CacheHit.WithLabelValues("negative").Inc()
			return "", ErrNotFound
		}
		var entry cacheEntry
		if err := json.Unmarshal([]byte(raw), &entry); err == nil {
			metrics.CacheHit.WithLabelValues("positive").Inc()
			return entryTarget(entry, time.Now())
		}
		// Undecodable entry: treat as a miss and let the store rewrite it.
		c.logger.Warn("dropping undecodable cache entry", zap.String("code", code))
	}

	metrics.CacheMiss.Inc()
	return c.resolveFromStore(ctx, code, true)
}

func (c *URLCache) resolveFromStore(ctx context.Context, code string, populate bool) (string, error) {
	url, err := c.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			if populate {
				c.populateNegative(ctx, code)
			}
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: load short url: %v", ErrDependencyUnavailable, err)
	}

	if populate {
		c.Populate(ctx, url)
	}
	return entryTarget(cacheEntry{
		TargetURL: url.TargetURL,
		IsActive:  url.IsActive,
		ExpiresAt: url.ExpiresAt,
	}, time.Now())
}

// Populate writes a record's cache entry. Failures are logged and swallowed;
// a cache-populate failure must never fail the caller.
func (c *URLCache) Populate(ctx context.Context, url *model.ShortURL) {
	entry := cacheEntry{
		TargetURL: url.TargetURL,
		IsActive:  url.IsActive,
		ExpiresAt: url.ExpiresAt,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Error("failed to encode cache entry", zap.String("code", url.Code), zap.Error(err))
		return
	}

	setCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.store.Set(setCtx, c.keyPrefix+url.Code, string(data), c.ttl); err != nil {
		c.logger.Warn("failed to populate cache", zap.String("code", url.Code), zap.Error(err))
	}
}

func (c *URLCache) populateNegative(ctx context.Context, code string) {
	setCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.store.Set(setCtx, c.keyPrefix+code, negativeEntry, c.negativeTTL); err != nil {
		c.logger.Warn("failed to populate negative cache entry", zap.String("code", code), zap.Error(err))
	}
}

// Invalidate removes a code's cache entry. It is idempotent and must be called
// synchronously before any mutation of the record is acknowledged, bounding
// the staleness window to reads already in flight.
func (c *URLCache) Invalidate(ctx context.Context, code string) error {
	delCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.store.Del(delCtx, c.keyPrefix+code); err != nil {
		return fmt.Errorf("invalidate cache entry: %w", err)
	}
	return nil
}

func entryTarget(entry cacheEntry, now time.Time) (string, error) {
	if !entry.IsActive {
		return "", ErrInactive
	}
	if entry.ExpiresAt != nil && now.After(*entry.ExpiresAt) {
		return "", ErrExpired
	}
	return entry.TargetURL, nil
}
