// Package ledger applies parsed chat intents to the position ledger.
package ledger

import (
	"context"

	"go.uber.org/zap"

	"github.com/ahricool/raise/internal/errors"
	"github.com/ahricool/raise/internal/intent"
	"github.com/ahricool/raise/internal/models"
	"github.com/ahricool/raise/internal/repository"
	"github.com/ahricool/raise/internal/stockcode"
)

type Reconciler struct {
	Repo   repository.LedgerRepository
	Logger *zap.Logger
}

// Upsert merges rows into the scope's ledger in one transaction and returns
// how many rows were applied. Rows whose code does not normalize are skipped;
// when none qualify no transaction is opened. A given field that is nil or
// empty never overwrites a stored value.
func (r *Reconciler) Upsert(ctx context.Context, scope repository.Scope, rows []intent.Row, rawText, imageFileID string) (int, error) {
	if r == nil || r.Repo == nil {
		return 0, nil
	}
	valid := make([]intent.Row, 0, len(rows))
	for _, row := range rows {
		row.StockCode = stockcode.Normalize(row.StockCode)
		if row.StockCode != "" {
			valid = append(valid, row)
		}
	}
	if len(valid) == 0 {
		return 0, nil
	}

	source := models.SourceText
	if imageFileID != "" {
		source = models.SourceImage
	}
	err := r.Repo.WithinTx(ctx, func(tx repository.LedgerRepository) error {
		for _, row := range valid {
			existing, err := tx.GetPosition(ctx, scope, row.StockCode)
			if err != nil {
				return err
			}
			item := existing
			if item == nil {
				item = &models.LedgerPosition{UserID: scope.UserID, ChatID: scope.ChatID, StockCode: row.StockCode}
			}
			merge(item, row, source, rawText, imageFileID)
			if err := tx.SavePosition(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, errors.Mark(errors.Wrap(err, "upsert positions"), errors.ErrPersistence)
	}
	r.logger().Info("ledger upserted",
		zap.String("user_id", scope.UserID),
		zap.String("chat_id", scope.ChatID),
		zap.Int("count", len(valid)),
		zap.String("source", source),
	)
	return len(valid), nil
}

func merge(item *models.LedgerPosition, row intent.Row, source, rawText, imageFileID string) {
	if row.StockName != "" {
		item.StockName = row.StockName
	}
	if row.Quantity != nil {
		q := *row.Quantity
		item.Quantity = &q
	}
	if row.CostPrice != nil {
		c := *row.CostPrice
		item.CostPrice = &c
	}
	if row.Note != "" {
		item.Note = row.Note
	}
	item.SourceType = source
	if rawText != "" {
		item.RawText = rawText
	}
	if imageFileID != "" {
		item.ImageFileID = imageFileID
	}
}

// Delete removes the scope's positions for codes and returns the count.
func (r *Reconciler) Delete(ctx context.Context, scope repository.Scope, codes []string) (int64, error) {
	if r == nil || r.Repo == nil {
		return 0, nil
	}
	codes = stockcode.NormalizeAll(codes)
	if len(codes) == 0 {
		return 0, nil
	}
	var deleted int64
	err := r.Repo.WithinTx(ctx, func(tx repository.LedgerRepository) error {
		n, err := tx.DeletePositions(ctx, scope, codes)
		deleted = n
		return err
	})
	if err != nil {
		return 0, errors.Mark(errors.Wrap(err, "delete positions"), errors.ErrPersistence)
	}
	r.logger().Info("ledger deleted",
		zap.String("user_id", scope.UserID),
		zap.String("chat_id", scope.ChatID),
		zap.Strings("codes", codes),
		zap.Int64("deleted", deleted),
	)
	return deleted, nil
}

// Render lists the scope's positions, most recently updated first.
func (r *Reconciler) Render(ctx context.Context, scope repository.Scope) (string, error) {
	if r == nil || r.Repo == nil {
		return RenderPositions(nil), nil
	}
	items, err := r.Repo.ListPositions(ctx, repository.ListPositionsParams{Scope: scope})
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "list positions"), errors.ErrPersistence)
	}
	return RenderPositions(items), nil
}

func (r *Reconciler) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
