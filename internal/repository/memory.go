package repository

import (
	"context"
	"sync"
	"time"

	"rentflow/internal/models"
)

type memoryEntry struct {
	item      models.Item
	expiresAt time.Time
}

// MemoryItemCache is the in-process fallback cache. Entries expire lazily on read.
type MemoryItemCache struct {
	items sync.Map
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryItemCache(ttl time.Duration) *MemoryItemCache {
	return &MemoryItemCache{
		ttl: ttl,
		now: time.Now,
	}
}

func (r *MemoryItemCache) Get(_ context.Context, id int64) (*models.Item, error) {
	val, ok := r.items.Load(id)
	if !ok {
		return nil, nil
	}
	entry := val.(*memoryEntry)
	if r.ttl > 0 && r.now().After(entry.expiresAt) {
		r.items.CompareAndDelete(id, val)
		return nil, nil
	}
	item := entry.item
	return &item, nil
}

func (r *MemoryItemCache) Set(_ context.Context, item *models.Item) error {
	r.items.Store(item.ID, &memoryEntry{item: *item, expiresAt: r.now().Add(r.ttl)})
	return nil
}

func (r *MemoryItemCache) Invalidate(_ context.Context, id int64) error {
	r.items.Delete(id)
	return nil
}
