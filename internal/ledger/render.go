package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ahricool/raise/internal/models"
)

const (
	EmptyLedgerText  = "📭 当前没有持仓记录"
	ParseFailedText  = "❌ 无法识别持仓信息，请发送文字或在图片消息中带上说明。\n示例：600519 200股 成本价 1820"
	NoPositionsText  = "❌ 未识别到有效持仓条目"
	listingHeader    = "📊 当前持仓："
	listingFooter    = "\n删除示例：/position_delete 600519"
	missingNumberTag = "-"
)

func RenderPositions(items []models.LedgerPosition) string {
	if len(items) == 0 {
		return EmptyLedgerText
	}
	lines := make([]string, 0, len(items)+2)
	lines = append(lines, listingHeader)
	for _, p := range items {
		name := ""
		if p.StockName != "" {
			name = " " + p.StockName
		}
		lines = append(lines, fmt.Sprintf("• %s%s | 数量: %s | 成本: %s",
			p.StockCode, name, formatNumber(p.Quantity), formatNumber(p.CostPrice)))
	}
	lines = append(lines, listingFooter)
	return strings.Join(lines, "\n")
}

func DeletedText(n int64) string {
	return fmt.Sprintf("✅ 已删除 %d 条持仓记录", n)
}

func UpsertedText(n int, listing string) string {
	return fmt.Sprintf("✅ 已更新 %d 条持仓\n\n%s", n, listing)
}

func formatNumber(d *decimal.Decimal) string {
	if d == nil {
		return missingNumberTag
	}
	return d.String()
}
