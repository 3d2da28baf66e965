package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"gardenplots/internal/domain"
	"gardenplots/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverListingCache reads through the primary cache and switches to the
// fallback while the primary is failing, retrying it once a minute.
type FailoverListingCache struct {
	primary   domain.ListingCache
	fallback  domain.ListingCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverListingCache(primary, fallback domain.ListingCache, logger *zerolog.Logger) *FailoverListingCache {
	return &FailoverListingCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (c *FailoverListingCache) markDown(err error) {
	if !c.isDown.Swap(true) {
		c.logger.Error().Err(err).Msg("Primary listing cache failed, falling back to memory")
	}
	c.mu.Lock()
	c.lastCheck = time.Now()
	c.mu.Unlock()
}

// usePrimary reports whether the primary should be tried for this call.
func (c *FailoverListingCache) usePrimary() bool {
	if !c.isDown.Load() {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastCheck) > recoveryInterval
}

func (c *FailoverListingCache) recovered() {
	if c.isDown.Swap(false) {
		c.logger.Info().Msg("Primary listing cache recovered")
	}
}

func (c *FailoverListingCache) GetGardens(ctx context.Context, key string) ([]*models.Garden, bool, error) {
	if c.usePrimary() {
		gardens, ok, err := c.primary.GetGardens(ctx, key)
		if err == nil {
			c.recovered()
			return gardens, ok, nil
		}
		c.markDown(err)
	}
	return c.fallback.GetGardens(ctx, key)
}

func (c *FailoverListingCache) SetGardens(ctx context.Context, key string, gardens []*models.Garden, ttl time.Duration) error {
	if c.usePrimary() {
		err := c.primary.SetGardens(ctx, key, gardens, ttl)
		if err == nil {
			c.recovered()
			return nil
		}
		c.markDown(err)
	}
	return c.fallback.SetGardens(ctx, key, gardens, ttl)
}

// Invalidate clears both layers; the primary is tried even while down so it
// does not keep stale lists through an outage.
func (c *FailoverListingCache) Invalidate(ctx context.Context, keys ...string) error {
	_ = c.fallback.Invalidate(ctx, keys...)
	if err := c.primary.Invalidate(ctx, keys...); err != nil {
		c.markDown(err)
	}
	return nil
}
