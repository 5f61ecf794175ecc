package gormrepository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ahricool/raise/internal/models"
	"github.com/ahricool/raise/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ repository.Repository = (*Store)(nil)

func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.LedgerRepository) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// --- ledger -----------------------------------------------------------------

func (s *Store) GetPosition(ctx context.Context, scope repository.Scope, code string) (*models.LedgerPosition, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	var item models.LedgerPosition
	err := s.db.WithContext(ctx).Model(&models.LedgerPosition{}).
		Where("platform_user_id = ? AND platform_chat_id = ? AND stock_code = ?", scope.UserID, scope.ChatID, code).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) SavePosition(ctx context.Context, item *models.LedgerPosition) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if item.ID == 0 {
		return s.db.WithContext(ctx).Create(item).Error
	}
	return s.db.WithContext(ctx).Save(item).Error
}

func (s *Store) DeletePositions(ctx context.Context, scope repository.Scope, codes []string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	codes = cleanStrings(codes)
	if len(codes) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("platform_user_id = ? AND platform_chat_id = ?", scope.UserID, scope.ChatID).
		Where("stock_code IN ?", codes).
		Delete(&models.LedgerPosition{})
	return res.RowsAffected, res.Error
}

func (s *Store) ListPositions(ctx context.Context, params repository.ListPositionsParams) ([]models.LedgerPosition, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.LedgerPosition{}).
		Where("platform_user_id = ? AND platform_chat_id = ?", params.Scope.UserID, params.Scope.ChatID)
	query = applyOrder(query, params.OrderBy, params.Asc, "updated_at")
	query = query.Order("id desc")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.LedgerPosition
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- watchlist --------------------------------------------------------------

func (s *Store) ListWatchlist(ctx context.Context, userID uint64) ([]models.WatchlistStock, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.WatchlistStock
	if err := s.db.WithContext(ctx).Model(&models.WatchlistStock{}).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Order("id desc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetWatchlistByCode(ctx context.Context, userID uint64, code string) (*models.WatchlistStock, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.WatchlistStock
	err := s.db.WithContext(ctx).Model(&models.WatchlistStock{}).
		Where("user_id = ? AND stock_code = ?", userID, strings.TrimSpace(code)).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) InsertWatchlist(ctx context.Context, item *models.WatchlistStock) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) DeleteWatchlist(ctx context.Context, userID uint64, id uint64) (bool, error) {
	if s == nil || s.db == nil || id == 0 {
		return false, nil
	}
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.WatchlistStock{})
	return res.RowsAffected > 0, res.Error
}

// --- system settings --------------------------------------------------------

func (s *Store) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Key = strings.TrimSpace(item.Key)
	if item.Key == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"value",
			"description",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var item models.SystemSetting
	err := s.db.WithContext(ctx).Model(&models.SystemSetting{}).Where("key = ?", key).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.SystemSetting{})
	if params.Prefix != nil && strings.TrimSpace(*params.Prefix) != "" {
		query = query.Where("key LIKE ?", strings.TrimSpace(*params.Prefix)+"%")
	}
	limit := normalizeLimit(params.Limit, 500)
	offset := normalizeOffset(params.Offset)
	var items []models.SystemSetting
	if err := query.Order("key asc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, raw := range items {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}
