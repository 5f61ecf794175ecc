package db

import (
	"github.com/ahricool/raise/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}
	return db.Gorm.AutoMigrate(
		&models.LedgerPosition{},
		&models.WatchlistStock{},
		&models.SystemSetting{},
	)
}
