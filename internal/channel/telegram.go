package channel

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ahricool/raise/internal/config"
	"github.com/ahricool/raise/internal/errors"
)

const maxMessageRunes = 4096

type Telegram struct {
	bot             *telego.Bot
	httpClient      *http.Client
	limiter         *rate.Limiter
	timeout         time.Duration
	downloadTimeout time.Duration
	logger          *zap.Logger
}

var _ Sender = (*Telegram)(nil)

// NewTelegram returns an unconfigured sender when the bot token is empty;
// every call on it is a logged no-op.
func NewTelegram(cfg config.TelegramConfig, httpClient *http.Client, logger *zap.Logger) (*Telegram, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	t := &Telegram{
		httpClient:      httpClient,
		timeout:         cfg.Timeout,
		downloadTimeout: cfg.DownloadTimeout,
		logger:          logger,
	}
	if cfg.SendRate > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(cfg.SendRate), 1)
	}
	token := strings.TrimSpace(cfg.BotToken)
	if token == "" {
		return t, nil
	}
	opts := []telego.BotOption{telego.WithHTTPClient(httpClient), telego.WithDiscardLogger()}
	if cfg.APIServer != "" {
		opts = append(opts, telego.WithAPIServer(strings.TrimRight(cfg.APIServer, "/")))
	}
	bot, err := telego.NewBot(token, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create telegram bot")
	}
	t.bot = bot
	return t, nil
}

func (t *Telegram) Configured() bool {
	return t != nil && t.bot != nil
}

func (t *Telegram) Send(ctx context.Context, chatID, text string, replyTo int) error {
	if !t.Configured() {
		t.logger.Warn("telegram bot token not configured, message dropped", zap.String("chat_id", chatID))
		return nil
	}
	if strings.TrimSpace(chatID) == "" || text == "" {
		return nil
	}
	target := chatRef(chatID)
	for i, chunk := range splitMessage(text, maxMessageRunes) {
		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return errors.Mark(errors.Wrap(err, "send rate limit"), errors.ErrTransientDelivery)
			}
		}
		params := tu.Message(target, chunk)
		if i == 0 && replyTo > 0 {
			params = params.WithReplyParameters(&telego.ReplyParameters{MessageID: replyTo, AllowSendingWithoutReply: true})
		}
		if err := t.sendOne(ctx, params); err != nil {
			return err
		}
	}
	return nil
}

func (t *Telegram) sendOne(ctx context.Context, params *telego.SendMessageParams) error {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	if _, err := t.bot.SendMessage(ctx, params); err != nil {
		return errors.Mark(errors.Wrap(err, "telegram sendMessage"), errors.ErrTransientDelivery)
	}
	return nil
}

// DownloadFile resolves fileID with getFile and fetches the bytes.
func (t *Telegram) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	if !t.Configured() || fileID == "" {
		return nil, errors.Mark(errors.New("telegram bot token not configured"), errors.ErrTransientDelivery)
	}
	if t.downloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.downloadTimeout)
		defer cancel()
	}
	file, err := t.bot.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "telegram getFile"), errors.ErrTransientDelivery)
	}
	if strings.TrimSpace(file.FilePath) == "" {
		return nil, errors.Mark(errors.Newf("file %s has no path", fileID), errors.ErrTransientDelivery)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.bot.FileDownloadURL(file.FilePath), nil)
	if err != nil {
		return nil, errors.Wrap(err, "create download request")
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "download file"), errors.ErrTransientDelivery)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Mark(errors.Newf("download file: status %d", resp.StatusCode), errors.ErrTransientDelivery)
	}
	return io.ReadAll(resp.Body)
}

func chatRef(chatID string) telego.ChatID {
	chatID = strings.TrimSpace(chatID)
	if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		return tu.ID(id)
	}
	return tu.Username(chatID)
}

// splitMessage cuts text into chunks of at most limit runes, preferring line
// breaks.
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var (
		out []string
		cur strings.Builder
		n   int
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
			n = 0
		}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		runes := []rune(line)
		for len(runes) > 0 {
			room := limit - n
			if len(runes) <= room {
				cur.WriteString(string(runes))
				n += len(runes)
				break
			}
			if n > 0 {
				flush()
				continue
			}
			cur.WriteString(string(runes[:limit]))
			runes = runes[limit:]
			flush()
		}
	}
	flush()
	return out
}
