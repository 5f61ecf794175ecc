// Package digest builds and sends the morning, noon and evening watchlist
// digests.
package digest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ahricool/raise/internal/analysis"
	"github.com/ahricool/raise/internal/channel"
	"github.com/ahricool/raise/internal/errors"
	"github.com/ahricool/raise/internal/models"
	"github.com/ahricool/raise/internal/repository"
)

type Mode string

const (
	Morning Mode = "morning"
	Noon    Mode = "noon"
	Evening Mode = "evening"
)

func Modes() []Mode {
	return []Mode{Morning, Noon, Evening}
}

func ParseMode(value string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(value))); m {
	case Morning, Noon, Evening:
		return m, nil
	default:
		return "", errors.Wrapf(errors.ErrInvalidMode, "mode %q must be morning, noon or evening", value)
	}
}

// Report describes one digest run. Pushed is 1 when a message went out.
type Report struct {
	Mode     Mode   `json:"mode"`
	Pushed   int    `json:"pushed"`
	Analyzed int    `json:"analyzed"`
	Skipped  string `json:"skipped,omitempty"`
}

type Runner struct {
	Watchlist  repository.WatchlistRepository
	Analyzer   analysis.Analyzer
	Sender     channel.Sender
	ChatID     string
	ReportType string
	Location   *time.Location
	Now        func() time.Time
	Logger     *zap.Logger
}

// Run analyzes every watchlist code in order and sends one digest. Failures
// are logged and end the run with Pushed=0; they are never returned.
func (r *Runner) Run(ctx context.Context, mode Mode) Report {
	logger := r.logger().With(zap.String("mode", string(mode)))
	rep := Report{Mode: mode}

	chatID := strings.TrimSpace(r.ChatID)
	if chatID == "" {
		logger.Warn("digest chat id not configured, skipping")
		rep.Skipped = "chat_id_missing"
		return rep
	}
	if r.Sender == nil || !r.Sender.Configured() {
		logger.Warn("digest send credential not configured, skipping")
		rep.Skipped = "credential_missing"
		return rep
	}

	stocks, err := r.Watchlist.ListWatchlist(ctx, models.DefaultUserID)
	if err != nil {
		logger.Error("read watchlist failed", zap.Error(err))
		rep.Skipped = "watchlist_unavailable"
		return rep
	}
	if len(stocks) == 0 {
		logger.Info("watchlist empty, skipping digest")
		rep.Skipped = "watchlist_empty"
		return rep
	}

	lines := make([]string, 0, len(stocks))
	for _, s := range stocks {
		if s.StockCode == "" {
			continue
		}
		res, err := r.Analyzer.Analyze(ctx, s.StockCode, r.reportType())
		if err != nil {
			logger.Error("digest analysis failed", zap.String("code", s.StockCode), zap.Error(err))
			continue
		}
		if res == nil {
			continue
		}
		if res.Name == "" {
			res.Name = s.StockName
		}
		rep.Analyzed++
		lines = append(lines, Line(mode, res))
	}
	if len(lines) == 0 {
		logger.Info("no analysis results, skipping digest")
		rep.Skipped = "no_results"
		return rep
	}

	text := Compose(mode, r.now(), lines)
	if err := r.Sender.Send(ctx, chatID, text, 0); err != nil {
		logger.Error("digest send failed", zap.String("chat_id", chatID), zap.Error(err))
		rep.Skipped = "send_failed"
		return rep
	}
	rep.Pushed = 1
	logger.Info("digest pushed", zap.String("chat_id", chatID), zap.Int("stocks", len(lines)))
	return rep
}

func (r *Runner) reportType() string {
	if r.ReportType == "" {
		return "simple"
	}
	return r.ReportType
}

func (r *Runner) now() time.Time {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	if r.Location != nil {
		return now().In(r.Location)
	}
	return now()
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func Line(mode Mode, res *analysis.Result) string {
	head := fmt.Sprintf("%s %s(%s)", res.Emoji(), res.DisplayName(), res.Code)
	if mode == Evening {
		pct := "N/A"
		if res.ChangePct != nil {
			pct = fmt.Sprintf("%+.2f%%", *res.ChangePct)
		}
		return fmt.Sprintf("%s | 今日涨跌: %s | 结论: %s", head, pct, res.CoreConclusion())
	}
	return fmt.Sprintf("%s | 建议: %s | 评分: %d | 结论: %s", head, res.OperationAdvice, res.SentimentScore, res.CoreConclusion())
}

func Compose(mode Mode, at time.Time, lines []string) string {
	date := at.Format("2006-01-02")
	var title, footer string
	switch mode {
	case Morning:
		title = fmt.Sprintf("📌 %s 自选股晨间交易建议", date)
		footer = "以上内容仅供参考，不构成投资建议。"
	case Noon:
		title = fmt.Sprintf("🕛 %s 自选股午间行情播报", date)
		footer = "以上内容仅供参考，不构成投资建议。"
	default:
		title = fmt.Sprintf("📈 %s 自选股收盘走势总结", date)
		footer = "以上为今日走势回顾，仅供复盘参考。"
	}
	return title + "\n\n" + strings.Join(lines, "\n") + "\n\n" + footer
}
