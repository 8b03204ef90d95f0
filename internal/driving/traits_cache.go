// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package driving

import (
	"context"
	"time"

	"github.com/tomtom215/drivecast/internal/cache"
	"github.com/tomtom215/drivecast/internal/logging"
	"github.com/tomtom215/drivecast/internal/metrics"
)

const (
	DefaultHotTTL       = 20 * time.Second
	DefaultWarmTTL      = 24 * time.Hour
	DefaultWarmInterval = 24 * time.Hour
)

// CacheConfig sizes the trait cache tiers.
type CacheConfig struct {
	HotTTL       time.Duration
	WarmTTL      time.Duration
	WarmInterval time.Duration
}

// CachedTraits resolves characters from the hot cache, then the warm cache,
// then the trait source. Users without a character are remembered in the hot
// tier too so they are not refetched every second.
type CachedTraits struct {
	source       TraitSource
	hot          *cache.Cache
	warm         *cache.Cache
	warmInterval time.Duration
}

// NewCachedTraits wraps source. Call Close to stop the cache sweepers.
func NewCachedTraits(source TraitSource, cfg CacheConfig) *CachedTraits {
	if cfg.HotTTL <= 0 {
		cfg.HotTTL = DefaultHotTTL
	}
	if cfg.WarmTTL <= 0 {
		cfg.WarmTTL = DefaultWarmTTL
	}
	if cfg.WarmInterval <= 0 {
		cfg.WarmInterval = DefaultWarmInterval
	}
	return &CachedTraits{
		source:       source,
		hot:          cache.New(cfg.HotTTL),
		warm:         cache.New(cfg.WarmTTL),
		warmInterval: cfg.WarmInterval,
	}
}

// Lookup returns the characters known for userIDs. Users without a character,
// or whose lookup failed, are absent from the result.
func (c *CachedTraits) Lookup(ctx context.Context, userIDs []string) map[string]string {
	out := make(map[string]string, len(userIDs))
	for _, id := range userIDs {
		if character, ok := c.lookupOne(ctx, id); ok {
			out[id] = character
		}
	}
	return out
}

func (c *CachedTraits) lookupOne(ctx context.Context, userID string) (string, bool) {
	if v, ok := c.hot.Get(userID); ok {
		metrics.RecordTraitLookup("hot", true)
		character, _ := v.(string)
		return character, character != ""
	}
	if v, ok := c.warm.Get(userID); ok {
		metrics.RecordTraitLookup("warm", true)
		character, _ := v.(string)
		c.hot.Set(userID, character)
		return character, character != ""
	}

	character, ok, err := c.source.GetOne(ctx, userID)
	if err != nil {
		metrics.RecordTraitLookup("remote", false)
		logging.Ctx(ctx).Debug().Err(err).Str("user_id", userID).Msg("Trait lookup failed")
		return "", false
	}
	metrics.RecordTraitLookup("remote", true)
	if !ok {
		character = ""
	}
	c.hot.Set(userID, character)
	return character, ok
}

// Warm fills the warm tier from the bulk endpoint and returns how many
// characters were stored.
func (c *CachedTraits) Warm(ctx context.Context) (int, error) {
	start := time.Now()
	traits, err := c.source.GetBulk(ctx)
	if err != nil {
		return 0, err
	}
	for id, character := range traits {
		c.warm.Set(id, character)
	}
	logging.Info().
		Int("stored", len(traits)).
		Dur("duration", time.Since(start)).
		Msg("Trait warm cache refreshed")
	return len(traits), nil
}

// Run warms the cache immediately and then every warm interval until ctx is
// done. Warm failures are logged and retried on the next tick.
func (c *CachedTraits) Run(ctx context.Context) error {
	if _, err := c.Warm(ctx); err != nil {
		logging.Warn().Err(err).Msg("Trait warm cache refresh failed")
	}

	ticker := time.NewTicker(c.warmInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := c.Warm(ctx); err != nil {
				logging.Warn().Err(err).Msg("Trait warm cache refresh failed")
			}
		}
	}
}

// Close stops the cache sweepers.
func (c *CachedTraits) Close() {
	c.hot.Close()
	c.warm.Close()
}
