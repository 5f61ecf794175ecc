package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ahricool/raise/internal/errors"
	"github.com/ahricool/raise/internal/service"
)

type SchedulerHandler struct {
	Service *service.SchedulerService
}

func (h *SchedulerHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/system/scheduler")
	g.GET("/status", h.status)
	g.GET("/jobs", h.jobs)
	g.GET("/trigger", h.trigger)
	g.GET("/trigger/push", h.triggerPush)
	g.PUT("/reschedule", h.reschedule)
	g.PUT("/enable", h.enable)
	g.PUT("/disable", h.disable)
}

// @Summary Daily watchlist schedule status
// @Tags scheduler
// @Success 200 {object} service.SchedulerStatus
// @Router /api/v1/system/scheduler/status [get]
func (h *SchedulerHandler) status(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "scheduler unavailable", nil)
		return
	}
	Ok(c, h.Service.Status(), nil)
}

func (h *SchedulerHandler) jobs(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "scheduler unavailable", nil)
		return
	}
	Ok(c, h.Service.Jobs(), nil)
}

// @Summary Run the watchlist scan now
// @Tags scheduler
// @Success 200 {object} service.TriggerResult
// @Router /api/v1/system/scheduler/trigger [get]
func (h *SchedulerHandler) trigger(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "scheduler unavailable", nil)
		return
	}
	Ok(c, h.Service.TriggerNow(c.Request.Context()), nil)
}

// @Summary Push one digest now
// @Tags scheduler
// @Param mode query string true "morning, noon or evening"
// @Success 200 {object} service.PushResult
// @Failure 422 {object} map[string]any
// @Router /api/v1/system/scheduler/trigger/push [get]
func (h *SchedulerHandler) triggerPush(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "scheduler unavailable", nil)
		return
	}
	res, err := h.Service.TriggerPush(c.Request.Context(), c.Query("mode"))
	if err != nil {
		Error(c, http.StatusUnprocessableEntity, "invalid_mode", map[string]any{"detail": err.Error()})
		return
	}
	Ok(c, res, nil)
}

// @Summary Move the daily watchlist scan
// @Tags scheduler
// @Param schedule_time query string true "HH:MM"
// @Success 200 {object} service.SchedulerStatus
// @Failure 422 {object} map[string]any
// @Router /api/v1/system/scheduler/reschedule [put]
func (h *SchedulerHandler) reschedule(c *gin.Context) {
	h.applyTime(c, h.Service.Reschedule)
}

func (h *SchedulerHandler) enable(c *gin.Context) {
	h.applyTime(c, h.Service.Enable)
}

func (h *SchedulerHandler) disable(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "scheduler unavailable", nil)
		return
	}
	h.Service.Disable(c.Request.Context())
	Ok(c, h.Service.Status(), nil)
}

func (h *SchedulerHandler) applyTime(c *gin.Context, apply func(ctx context.Context, clock string) error) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "scheduler unavailable", nil)
		return
	}
	clock := c.Query("schedule_time")
	if clock == "" {
		clock = c.Query("time")
	}
	if err := apply(c.Request.Context(), clock); err != nil {
		if errors.Is(err, errors.ErrInvalidScheduleSpec) {
			Error(c, http.StatusUnprocessableEntity, "invalid_time", map[string]any{"detail": err.Error()})
			return
		}
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, h.Service.Status(), nil)
}
