package service

import (
	"context"

	"rentflow/internal/domain"
	"rentflow/internal/models"

	"github.com/rs/zerolog"
)

// ItemService is the read-through item lookup used by bookings. cache may be nil.
type ItemService struct {
	tx     domain.TxManager
	repo   domain.ItemRepository
	cache  domain.ItemCache
	logger *zerolog.Logger
}

func NewItemService(tx domain.TxManager, repo domain.ItemRepository, cache domain.ItemCache, logger *zerolog.Logger) *ItemService {
	return &ItemService{
		tx:     tx,
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

func (s *ItemService) GetItemByID(ctx context.Context, id int64) (*models.Item, error) {
	if s.cache != nil {
		item, err := s.cache.Get(ctx, id)
		if err != nil {
			s.logger.Warn().Err(err).Int64("item_id", id).Msg("item cache read failed")
		} else if item != nil {
			return item, nil
		}
	}

	item, err := s.repo.GetItemByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, item); err != nil {
			s.logger.Warn().Err(err).Int64("item_id", id).Msg("item cache write failed")
		}
	}
	return item, nil
}

func (s *ItemService) GetActiveItems(ctx context.Context) ([]*models.Item, error) {
	return s.repo.GetActiveItems(ctx)
}

// SyncItems upserts the catalog in one transaction and drops the cached copies.
func (s *ItemService) SyncItems(ctx context.Context, items []*models.Item) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		for _, item := range items {
			if err := s.repo.UpsertItem(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.cache != nil {
		for _, item := range items {
			if err := s.cache.Invalidate(ctx, item.ID); err != nil {
				s.logger.Warn().Err(err).Int64("item_id", item.ID).Msg("item cache invalidate failed")
			}
		}
	}

	s.logger.Info().Int("count", len(items)).Msg("items synced")
	return nil
}
