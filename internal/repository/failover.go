package repository

import (
	"context"
	"sync/atomic"
	"time"

	"rentflow/internal/domain"
	"rentflow/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverItemCache serves from primary (redis) and switches to fallback (memory) on the
// first primary error. The primary is retried once recoveryInterval has passed.
type FailoverItemCache struct {
	primary   domain.ItemCache
	fallback  domain.ItemCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time
}

func NewFailoverItemCache(primary, fallback domain.ItemCache, logger *zerolog.Logger) *FailoverItemCache {
	return &FailoverItemCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (r *FailoverItemCache) markDown(err error) {
	if r.isDown.CompareAndSwap(false, true) {
		r.logger.Error().Err(err).Msg("Primary item cache failed, falling back to memory")
	}
	r.lastCheck.Store(r.now().UnixNano())
}

// usePrimary reports whether the next call should go to the primary cache.
func (r *FailoverItemCache) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return r.now().Sub(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverItemCache) recovered() {
	if r.isDown.CompareAndSwap(true, false) {
		r.logger.Info().Msg("Primary item cache recovered")
	}
}

func (r *FailoverItemCache) Get(ctx context.Context, id int64) (*models.Item, error) {
	if r.usePrimary() {
		item, err := r.primary.Get(ctx, id)
		if err == nil {
			r.recovered()
			return item, nil
		}
		r.markDown(err)
	}

	return r.fallback.Get(ctx, id)
}

func (r *FailoverItemCache) Set(ctx context.Context, item *models.Item) error {
	if r.usePrimary() {
		err := r.primary.Set(ctx, item)
		if err == nil {
			r.recovered()
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.Set(ctx, item)
}

// Invalidate always clears the fallback too, so a recovered primary never
// leaves a stale in-memory copy behind.
func (r *FailoverItemCache) Invalidate(ctx context.Context, id int64) error {
	_ = r.fallback.Invalidate(ctx, id)

	if r.usePrimary() {
		err := r.primary.Invalidate(ctx, id)
		if err == nil {
			r.recovered()
			return nil
		}
		r.markDown(err)
	}
	return nil
}
