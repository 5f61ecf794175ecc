package models

import "time"

// DefaultUserID owns the watchlist while there is no user model.
const DefaultUserID uint64 = 1

type WatchlistStock struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint64    `gorm:"not null;uniqueIndex:uk_watchlist_user_code,priority:1" json:"-"`
	StockCode string    `gorm:"type:varchar(16);not null;uniqueIndex:uk_watchlist_user_code,priority:2" json:"stock_code"`
	StockName string    `gorm:"type:varchar(64)" json:"stock_name,omitempty"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index" json:"created_at"`
}

func (WatchlistStock) TableName() string {
	return "watchlist_stocks"
}
