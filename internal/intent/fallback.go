package intent

import (
	"context"
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/ahricool/raise/internal/stockcode"
)

const fallbackMaxCodes = 5

var (
	quantityPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(股|手|shares?)`)
	costPattern     = regexp.MustCompile(`(?i)(?:成本|成本价|cost|买入价)\s*[:：]?\s*(\d+(?:\.\d+)?)`)
)

// Fallback builds rows from code-shaped tokens plus one quantity and one cost
// found anywhere in the text. Every row shares the same numbers.
type Fallback struct{}

func (Fallback) Name() string { return "fallback" }

func (Fallback) Attempt(_ context.Context, in Input) (Intent, bool) {
	if in.Content == "" {
		return Intent{}, false
	}
	codes := stockcode.Extract(in.Content, fallbackMaxCodes)
	if len(codes) == 0 {
		return Intent{}, false
	}
	qty := firstNumber(quantityPattern, in.Content)
	cost := firstNumber(costPattern, in.Content)
	rows := make([]Row, 0, len(codes))
	for _, code := range codes {
		rows = append(rows, Row{StockCode: code, Quantity: qty, CostPrice: cost})
	}
	return Intent{Kind: KindUpsert, Rows: rows, Summary: "fallback_parser"}, true
}

func firstNumber(re *regexp.Regexp, text string) *decimal.Decimal {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return nil
	}
	d, err := decimal.NewFromString(m[1])
	if err != nil {
		return nil
	}
	return &d
}
