package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/cortexa-labs/ragserve/internal/pkg/errcode"
	"github.com/cortexa-labs/ragserve/internal/pkg/response"
	"github.com/cortexa-labs/ragserve/internal/service"
)

type ChatHandler struct {
	chat *service.ChatService
}

func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type chatRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id"`
	// Optional per-request knobs; absent fields use the server config.
	Temperature     *float32 `json:"temperature"`
	StrictRAG       *bool    `json:"strict_rag"`
	RerankThreshold *float64 `json:"rerank_threshold"`
}

// Ask streams the answer as server-sent events: one sources event, then
// delta events as text arrives, then a [DONE] sentinel. Errors after the
// stream opened arrive as an error event instead of an HTTP status.
func (h *ChatHandler) Ask(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.Query == "" {
		response.Error(c, errcode.ErrInvalid, "query is required")
		return
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		response.Error(c, errcode.ErrInvalid, "temperature must be between 0 and 2")
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	flusher, _ := c.Writer.(http.Flusher)

	sink := func(ev service.ChatEvent) error {
		if err := c.Request.Context().Err(); err != nil {
			return err
		}
		payload, err := encodeEvent(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	opts := service.AskOptions{
		Temperature:     req.Temperature,
		Strict:          req.StrictRAG,
		RerankThreshold: req.RerankThreshold,
	}
	err := h.chat.Ask(c.Request.Context(), getUserID(c), req.ConversationID, req.Query, opts, sink)
	if err != nil {
		logutil.GetLogger(c.Request.Context()).Error("chat stream ended with error", zap.Error(err))
		return
	}
	fmt.Fprint(c.Writer, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

func encodeEvent(ev service.ChatEvent) ([]byte, error) {
	switch ev.Type {
	case service.EventSources:
		return json.Marshal(gin.H{"type": "sources", "data": ev.Sources})
	case service.EventDelta:
		return json.Marshal(gin.H{"type": "delta", "content": ev.Delta})
	case service.EventError:
		return json.Marshal(gin.H{"type": "error", "content": ev.Message})
	default:
		return json.Marshal(ev)
	}
}
