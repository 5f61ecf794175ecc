package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ahricool/raise/internal/errors"
	"github.com/ahricool/raise/internal/service"
)

type WatchlistHandler struct {
	Service *service.WatchlistService
}

func (h *WatchlistHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/watchlist")
	g.GET("", h.list)
	g.POST("", h.add)
	g.DELETE("/:id", h.remove)
}

func (h *WatchlistHandler) list(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "watchlist unavailable", nil)
		return
	}
	items, err := h.Service.List(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"total": len(items)})
}

type addWatchlistRequest struct {
	StockCode string `json:"stock_code"`
	StockName string `json:"stock_name"`
}

// @Summary Add a stock to the watchlist
// @Tags watchlist
// @Param body body addWatchlistRequest true "stock"
// @Success 200 {object} models.WatchlistStock
// @Failure 422 {object} map[string]any
// @Router /api/v1/watchlist [post]
func (h *WatchlistHandler) add(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "watchlist unavailable", nil)
		return
	}
	var req addWatchlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	item, err := h.Service.Add(c.Request.Context(), req.StockCode, req.StockName)
	if errors.Is(err, errors.ErrInvalidCode) {
		Error(c, http.StatusUnprocessableEntity, "invalid_code", nil)
		return
	}
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

func (h *WatchlistHandler) remove(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "watchlist unavailable", nil)
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	ok, err := h.Service.Remove(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if !ok {
		Error(c, http.StatusNotFound, "watchlist item not found", nil)
		return
	}
	Ok(c, gin.H{"id": id, "deleted": true}, nil)
}
