package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cortexa-labs/ragserve/internal/pkg/response"
	"github.com/cortexa-labs/ragserve/internal/service"
)

type HistoryHandler struct {
	history *service.HistoryService
}

func NewHistoryHandler(history *service.HistoryService) *HistoryHandler {
	return &HistoryHandler{history: history}
}

func (h *HistoryHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	msgs, err := h.history.List(c.Request.Context(), getUserID(c), limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"messages": msgs})
}

func (h *HistoryHandler) Clear(c *gin.Context) {
	deleted, err := h.history.Clear(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": deleted})
}
