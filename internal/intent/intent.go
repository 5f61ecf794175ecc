// Package intent turns one chat message into a ledger operation by running an
// ordered chain of strategies. The first strategy that matches wins.
package intent

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ahricool/raise/internal/errors"
	"github.com/ahricool/raise/internal/llm"
)

type Kind string

const (
	KindList   Kind = "list"
	KindDelete Kind = "delete"
	KindUpsert Kind = "upsert"
	KindEmpty  Kind = "empty"
)

// Row is one candidate position. Nil numbers mean "not given".
type Row struct {
	StockCode string
	StockName string
	Quantity  *decimal.Decimal
	CostPrice *decimal.Decimal
	Note      string
}

type Intent struct {
	Kind        Kind
	Strategy    string
	Rows        []Row
	DeleteCodes []string
	Summary     string
}

// ImageFetcher downloads an attached image by its channel file id.
type ImageFetcher interface {
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

type Input struct {
	// Content is the message text, or the photo caption when there is no text.
	Content     string
	ImageFileID string
}

type Strategy interface {
	Name() string
	Attempt(ctx context.Context, in Input) (Intent, bool)
}

type Parser struct {
	Strategies []Strategy
	Logger     *zap.Logger
}

// NewParser wires the standard chain: list command, delete command, delete
// phrase, empty content, model extraction, heuristic fallback.
func NewParser(gateways []llm.Gateway, images ImageFetcher, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{
		Strategies: []Strategy{
			ListCommand{},
			DeleteCommand{},
			DeletePhrase{},
			EmptyContent{},
			&Extractor{Gateways: gateways, Images: images, Logger: logger},
			Fallback{},
		},
		Logger: logger,
	}
}

// Resolve returns the first matching intent, or ErrParseFailure.
func (p *Parser) Resolve(ctx context.Context, in Input) (Intent, error) {
	in.Content = strings.TrimSpace(in.Content)
	in.ImageFileID = strings.TrimSpace(in.ImageFileID)
	for _, s := range p.Strategies {
		if out, ok := s.Attempt(ctx, in); ok {
			out.Strategy = s.Name()
			if p.Logger != nil {
				p.Logger.Debug("intent resolved", zap.String("strategy", s.Name()), zap.String("kind", string(out.Kind)))
			}
			return out, nil
		}
	}
	return Intent{}, errors.ErrParseFailure
}
