package handler

import (
	"crypto/subtle"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ahricool/raise/internal/channel"
	"github.com/ahricool/raise/internal/logger"
	"github.com/ahricool/raise/internal/service"
)

const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// TelegramHandler receives bot webhooks. It answers 200 for every well-formed
// update so the platform does not redeliver it.
type TelegramHandler struct {
	Chat   *service.ChatService
	Secret string
	Logger *zap.Logger
}

func (h *TelegramHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/bot/telegram", h.webhook)
}

// @Summary Telegram webhook
// @Tags bot
// @Success 200 {object} service.Outcome
// @Failure 400 {object} map[string]any
// @Failure 403 {object} map[string]any
// @Router /api/v1/bot/telegram [post]
func (h *TelegramHandler) webhook(c *gin.Context) {
	if h.Secret != "" {
		got := c.GetHeader(telegramSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.Secret)) != 1 {
			Error(c, http.StatusForbidden, "invalid secret token", nil)
			return
		}
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	msg, err := channel.ParseUpdate(body)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if h.Chat == nil {
		h.logger().Error("chat service not configured")
		c.JSON(http.StatusOK, service.Outcome{OK: false, Message: "unavailable"})
		return
	}
	out := h.Chat.HandleUpdate(c.Request.Context(), msg)
	h.logger().Info("telegram update handled",
		zap.String("outcome", out.Message),
		zap.Bool("ok", out.OK),
		zap.Int64("count", out.Count),
	)
	c.JSON(http.StatusOK, out)
}

func (h *TelegramHandler) logger() *zap.Logger {
	return logger.OrNop(h.Logger)
}
