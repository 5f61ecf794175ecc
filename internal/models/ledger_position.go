package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SourceText  = "text"
	SourceImage = "image"
)

// LedgerPosition is one holding reported through chat. At most one row exists
// per (user, chat, normalized code).
type LedgerPosition struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	UserID    string `gorm:"column:platform_user_id;type:varchar(64);not null;uniqueIndex:uk_ledger_scope_code,priority:1" json:"user_id"`
	ChatID    string `gorm:"column:platform_chat_id;type:varchar(64);not null;uniqueIndex:uk_ledger_scope_code,priority:2" json:"chat_id"`
	StockCode string `gorm:"type:varchar(16);not null;uniqueIndex:uk_ledger_scope_code,priority:3" json:"stock_code"`
	StockName string `gorm:"type:varchar(64)" json:"stock_name,omitempty"`

	Quantity  *decimal.Decimal `gorm:"type:numeric(30,6)" json:"quantity,omitempty"`
	CostPrice *decimal.Decimal `gorm:"type:numeric(20,6)" json:"cost_price,omitempty"`
	Note      string           `gorm:"type:text" json:"note,omitempty"`

	SourceType  string `gorm:"type:varchar(10);not null;default:'text'" json:"source_type"`
	RawText     string `gorm:"type:text" json:"raw_text,omitempty"`
	ImageFileID string `gorm:"type:varchar(255)" json:"image_file_id,omitempty"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime;index" json:"updated_at"`
}

func (LedgerPosition) TableName() string {
	return "ledger_positions"
}
