package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/ahricool/raise/internal/dispatch"
	"github.com/ahricool/raise/internal/logger"
)

type TaskDispatcher interface {
	Submit(req dispatch.Request) dispatch.Submission
	ListTasks(status dispatch.Status, limit int) dispatch.TaskList
	Hub() *dispatch.Hub
}

type AnalysisHandler struct {
	Dispatcher TaskDispatcher
	ReportType string
	Logger     *zap.Logger
}

func (h *AnalysisHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/analysis")
	g.POST("/analyze", h.analyze)
	g.GET("/tasks", h.tasks)
	g.GET("/tasks/stream", h.stream)
}

type analyzeRequest struct {
	StockCode  string `json:"stock_code"`
	StockName  string `json:"stock_name"`
	ReportType string `json:"report_type"`
}

// @Summary Submit one stock for analysis
// @Tags analysis
// @Param body body analyzeRequest true "request"
// @Success 202 {object} dispatch.TaskInfo
// @Failure 409 {object} map[string]any
// @Failure 422 {object} map[string]any
// @Router /api/v1/analysis/analyze [post]
func (h *AnalysisHandler) analyze(c *gin.Context) {
	if h.Dispatcher == nil {
		Error(c, http.StatusInternalServerError, "dispatcher unavailable", nil)
		return
	}
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	reportType := strings.TrimSpace(req.ReportType)
	if reportType == "" {
		reportType = h.ReportType
	}
	sub := h.Dispatcher.Submit(dispatch.Request{Code: req.StockCode, Name: req.StockName, ReportType: reportType})
	switch sub.Outcome {
	case dispatch.Accepted:
		Accepted(c, sub.Task)
	case dispatch.Duplicate:
		meta := map[string]any{"stock_code": sub.Code}
		if sub.Task != nil {
			meta["task_id"] = sub.Task.TaskID
		}
		Error(c, http.StatusConflict, "duplicate_task", meta)
	default:
		Error(c, http.StatusUnprocessableEntity, "invalid_code", nil)
	}
}

func (h *AnalysisHandler) tasks(c *gin.Context) {
	if h.Dispatcher == nil {
		Error(c, http.StatusInternalServerError, "dispatcher unavailable", nil)
		return
	}
	status := dispatch.Status(strings.ToLower(strings.TrimSpace(c.Query("status"))))
	switch status {
	case "", dispatch.StatusPending, dispatch.StatusProcessing, dispatch.StatusCompleted, dispatch.StatusFailed:
	default:
		Error(c, http.StatusBadRequest, "invalid status", nil)
		return
	}
	Ok(c, h.Dispatcher.ListTasks(status, intQuery(c, "limit", 20)), nil)
}

// stream pushes task lifecycle events to a websocket until the client leaves.
func (h *AnalysisHandler) stream(c *gin.Context) {
	if h.Dispatcher == nil || h.Dispatcher.Hub() == nil {
		Error(c, http.StatusInternalServerError, "dispatcher unavailable", nil)
		return
	}
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		h.logger().Debug("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	events, cancel := h.Dispatcher.Hub().Subscribe(64)
	defer cancel()
	ctx := conn.CloseRead(c.Request.Context())

	if err := writeEvent(ctx, conn, map[string]any{"type": "connected"}); err != nil {
		return
	}
	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(ctx, conn, ev); err != nil {
				h.logger().Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			if err := writeEvent(ctx, conn, map[string]any{"type": "heartbeat"}); err != nil {
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}

func (h *AnalysisHandler) logger() *zap.Logger {
	return logger.OrNop(h.Logger)
}
