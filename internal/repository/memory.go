package repository

import (
	"context"
	"sync"
	"time"

	"gardenplots/internal/models"
)

type cacheEntry struct {
	gardens   []*models.Garden
	expiresAt time.Time
}

// MemoryListingCache is the in-process fallback for RedisListingCache.
type MemoryListingCache struct {
	entries sync.Map
	now     func() time.Time
}

func NewMemoryListingCache() *MemoryListingCache {
	return &MemoryListingCache{now: time.Now}
}

func (c *MemoryListingCache) GetGardens(ctx context.Context, key string) ([]*models.Garden, bool, error) {
	val, ok := c.entries.Load(key)
	if !ok {
		return nil, false, nil
	}
	entry := val.(*cacheEntry)
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		c.entries.Delete(key)
		return nil, false, nil
	}
	return entry.gardens, true, nil
}

func (c *MemoryListingCache) SetGardens(ctx context.Context, key string, gardens []*models.Garden, ttl time.Duration) error {
	entry := &cacheEntry{gardens: gardens}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.entries.Store(key, entry)
	return nil
}

func (c *MemoryListingCache) Invalidate(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		c.entries.Delete(k)
	}
	return nil
}

// MemoryBroker delivers chat events within a single process.
// Slow subscribers lose events rather than block the sender.
type MemoryBroker struct {
	mu     sync.Mutex
	topics map[string]map[chan models.ChatEvent]struct{}
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{topics: make(map[string]map[chan models.ChatEvent]struct{})}
}

func (b *MemoryBroker) Publish(ctx context.Context, topic string, event models.ChatEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.topics[topic] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, topic string) (<-chan models.ChatEvent, error) {
	ch := make(chan models.ChatEvent, 16)

	b.mu.Lock()
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[chan models.ChatEvent]struct{})
	}
	b.topics[topic][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.topics[topic], ch)
		if len(b.topics[topic]) == 0 {
			delete(b.topics, topic)
		}
		close(ch)
		b.mu.Unlock()
	}()
	return ch, nil
}

// Subscribers returns the number of live subscriptions on topic.
func (b *MemoryBroker) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}
