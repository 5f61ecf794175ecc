// Package analysis is the client side of the stock analysis pipeline. The
// pipeline itself runs elsewhere; this package only submits a code and maps
// the report it returns.
package analysis

import (
	"context"
)

type Analyzer interface {
	Analyze(ctx context.Context, code, reportType string) (*Result, error)
}

// Result is the slice of an analysis report the digests and task registry use.
type Result struct {
	Code            string   `json:"stock_code"`
	Name            string   `json:"stock_name"`
	OperationAdvice string   `json:"operation_advice"`
	SentimentScore  int      `json:"sentiment_score"`
	Conclusion      string   `json:"conclusion"`
	ChangePct       *float64 `json:"change_pct,omitempty"`
}

var adviceEmoji = map[string]string{
	"强烈买入": "💚",
	"买入":   "🟢",
	"加仓":   "🟢",
	"持有":   "🟡",
	"观望":   "⚪",
	"减仓":   "🟠",
	"卖出":   "🔴",
	"强烈卖出": "❌",
}

// Emoji picks the line marker: the advice wins when it is a known label,
// otherwise the sentiment score bucket decides.
func (r *Result) Emoji() string {
	if r == nil {
		return "⚪"
	}
	if e, ok := adviceEmoji[r.OperationAdvice]; ok {
		return e
	}
	switch {
	case r.SentimentScore >= 80:
		return "💚"
	case r.SentimentScore >= 65:
		return "🟢"
	case r.SentimentScore >= 55:
		return "🟡"
	case r.SentimentScore >= 45:
		return "⚪"
	case r.SentimentScore >= 35:
		return "🟠"
	default:
		return "🔴"
	}
}

const maxConclusionRunes = 80

// CoreConclusion is the first sentence of the conclusion, capped in length.
func (r *Result) CoreConclusion() string {
	if r == nil {
		return ""
	}
	runes := []rune(r.Conclusion)
	for i, c := range runes {
		if c == '。' || c == '\n' {
			runes = runes[:i]
			break
		}
	}
	if len(runes) > maxConclusionRunes {
		return string(runes[:maxConclusionRunes]) + "…"
	}
	return string(runes)
}

// DisplayName falls back to the code when the report carried no name.
func (r *Result) DisplayName() string {
	if r == nil {
		return ""
	}
	if r.Name != "" {
		return r.Name
	}
	return r.Code
}
