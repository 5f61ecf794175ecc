package service

import (
	"context"
	"strings"

	"github.com/ahricool/raise/internal/errors"
	"github.com/ahricool/raise/internal/models"
	"github.com/ahricool/raise/internal/repository"
	"github.com/ahricool/raise/internal/stockcode"
)

type WatchlistService struct {
	Repo repository.WatchlistRepository
}

func (s *WatchlistService) List(ctx context.Context) ([]models.WatchlistStock, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	return s.Repo.ListWatchlist(ctx, models.DefaultUserID)
}

// Add inserts code for the default user, or returns the existing row.
func (s *WatchlistService) Add(ctx context.Context, code, name string) (*models.WatchlistStock, error) {
	normalized := stockcode.Normalize(code)
	if normalized == "" {
		return nil, errors.Wrapf(errors.ErrInvalidCode, "stock code %q", code)
	}
	if s == nil || s.Repo == nil {
		return nil, errors.New("watchlist repository unavailable")
	}
	existing, err := s.Repo.GetWatchlistByCode(ctx, models.DefaultUserID, normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	item := &models.WatchlistStock{
		UserID:    models.DefaultUserID,
		StockCode: normalized,
		StockName: strings.TrimSpace(name),
	}
	if err := s.Repo.InsertWatchlist(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *WatchlistService) Remove(ctx context.Context, id uint64) (bool, error) {
	if s == nil || s.Repo == nil {
		return false, nil
	}
	return s.Repo.DeleteWatchlist(ctx, models.DefaultUserID, id)
}
