package repository

import (
	"context"

	"github.com/ahricool/raise/internal/models"
)

// Scope identifies one user's ledger inside one chat.
type Scope struct {
	UserID string
	ChatID string
}

type LedgerRepository interface {
	// WithinTx runs fn against a repository bound to a single transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx LedgerRepository) error) error
	GetPosition(ctx context.Context, scope Scope, code string) (*models.LedgerPosition, error)
	SavePosition(ctx context.Context, item *models.LedgerPosition) error
	DeletePositions(ctx context.Context, scope Scope, codes []string) (int64, error)
	ListPositions(ctx context.Context, params ListPositionsParams) ([]models.LedgerPosition, error)
}

type WatchlistRepository interface {
	ListWatchlist(ctx context.Context, userID uint64) ([]models.WatchlistStock, error)
	GetWatchlistByCode(ctx context.Context, userID uint64, code string) (*models.WatchlistStock, error)
	InsertWatchlist(ctx context.Context, item *models.WatchlistStock) error
	DeleteWatchlist(ctx context.Context, userID uint64, id uint64) (bool, error)
}

type SettingsRepository interface {
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	ListSystemSettings(ctx context.Context, params ListSystemSettingsParams) ([]models.SystemSetting, error)
}

type Repository interface {
	LedgerRepository
	WatchlistRepository
	SettingsRepository
}

type ListPositionsParams struct {
	Scope   Scope
	Limit   int
	Offset  int
	OrderBy string
	Asc     *bool
}

type ListSystemSettingsParams struct {
	Prefix *string
	Limit  int
	Offset int
}
