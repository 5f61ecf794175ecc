package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/ahricool/raise/internal/channel"
	"github.com/ahricool/raise/internal/errors"
	"github.com/ahricool/raise/internal/logger"
	"github.com/ahricool/raise/internal/intent"
	"github.com/ahricool/raise/internal/ledger"
	"github.com/ahricool/raise/internal/repository"
)

const (
	OutcomeNoMessage     = "no_message"
	OutcomeMissingScope  = "missing_chat_or_user"
	OutcomeListed        = "listed"
	OutcomeDeleted       = "deleted"
	OutcomeEmptyContent  = "empty_content"
	OutcomeParseFailed   = "parse_failed"
	OutcomeNoPositions   = "no_positions"
	OutcomeUpserted      = "upserted"
	OutcomeLedgerFailure = "ledger_error"
)

// Outcome is what the webhook reports back for one update.
type Outcome struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Count   int64  `json:"count,omitempty"`
}

type ChatService struct {
	Parser *intent.Parser
	Ledger *ledger.Reconciler
	Sender channel.Sender
	Logger *zap.Logger
}

// HandleUpdate resolves one inbound message against the sender's ledger and
// replies to it. Failures never escape: they are logged and reflected in the
// outcome.
func (s *ChatService) HandleUpdate(ctx context.Context, msg *channel.Message) Outcome {
	if msg == nil {
		return Outcome{OK: true, Message: OutcomeNoMessage}
	}
	if msg.ChatID == "" || msg.UserID == "" {
		return Outcome{OK: true, Message: OutcomeMissingScope}
	}
	log := s.logger().With(zap.String("chat_id", msg.ChatID), zap.String("user_id", msg.UserID), zap.Int("message_id", msg.MessageID))
	scope := repository.Scope{UserID: msg.UserID, ChatID: msg.ChatID}
	content := msg.Content()

	in, err := s.Parser.Resolve(ctx, intent.Input{Content: content, ImageFileID: msg.PhotoFileID})
	if err != nil {
		log.Info("message not resolved", zap.Error(err))
		s.reply(ctx, msg, ledger.ParseFailedText)
		return Outcome{OK: false, Message: OutcomeParseFailed}
	}

	switch in.Kind {
	case intent.KindEmpty:
		return Outcome{OK: true, Message: OutcomeEmptyContent}

	case intent.KindList:
		text, err := s.Ledger.Render(ctx, scope)
		if err != nil {
			log.Error("render ledger failed", zap.Error(err))
			return Outcome{OK: false, Message: OutcomeLedgerFailure}
		}
		s.reply(ctx, msg, text)
		return Outcome{OK: true, Message: OutcomeListed}

	case intent.KindDelete:
		n, err := s.Ledger.Delete(ctx, scope, in.DeleteCodes)
		if err != nil {
			log.Error("delete positions failed", zap.Error(err))
			return Outcome{OK: false, Message: OutcomeLedgerFailure}
		}
		s.reply(ctx, msg, ledger.DeletedText(n))
		return Outcome{OK: true, Message: OutcomeDeleted, Count: n}
	}

	if len(in.Rows) == 0 {
		s.reply(ctx, msg, ledger.NoPositionsText)
		return Outcome{OK: false, Message: OutcomeNoPositions}
	}
	n, err := s.Ledger.Upsert(ctx, scope, in.Rows, content, msg.PhotoFileID)
	if err != nil {
		log.Error("upsert positions failed", zap.Error(err), zap.String("strategy", in.Strategy))
		return Outcome{OK: false, Message: OutcomeLedgerFailure}
	}
	if n == 0 {
		s.reply(ctx, msg, ledger.NoPositionsText)
		return Outcome{OK: false, Message: OutcomeNoPositions}
	}
	listing, err := s.Ledger.Render(ctx, scope)
	if err != nil {
		log.Warn("render ledger after upsert failed", zap.Error(err))
		listing = ledger.EmptyLedgerText
	}
	s.reply(ctx, msg, ledger.UpsertedText(n, listing))
	return Outcome{OK: true, Message: OutcomeUpserted, Count: int64(n)}
}

func (s *ChatService) reply(ctx context.Context, msg *channel.Message, text string) {
	if s.Sender == nil || !s.Sender.Configured() {
		return
	}
	if err := s.Sender.Send(ctx, msg.ChatID, text, msg.MessageID); err != nil {
		if errors.Is(err, errors.ErrTransientDelivery) {
			s.logger().Warn("reply not delivered", zap.String("chat_id", msg.ChatID), zap.Error(err))
			return
		}
		s.logger().Error("reply failed", zap.String("chat_id", msg.ChatID), zap.Error(err))
	}
}

func (s *ChatService) logger() *zap.Logger {
	return logger.OrNop(s.Logger)
}
