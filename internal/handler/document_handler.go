package handler

import (
	"context"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/cortexa-labs/ragserve/internal/pkg/errcode"
	"github.com/cortexa-labs/ragserve/internal/pkg/response"
	"github.com/cortexa-labs/ragserve/internal/service"
)

const syncTimeout = 30 * time.Minute

type DocumentHandler struct {
	documents *service.DocumentService
	sync      *service.SyncService
}

func NewDocumentHandler(documents *service.DocumentService, sync *service.SyncService) *DocumentHandler {
	return &DocumentHandler{documents: documents, sync: sync}
}

func (h *DocumentHandler) List(c *gin.Context) {
	files, err := h.documents.List(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"files": files})
}

// Upload stores the file and kicks off indexing in the background; the
// client polls the file list for status.
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID := getUserID(c)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalid, "file field is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, errcode.ErrUploadFailed, "cannot open upload")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, errcode.ErrUploadFailed, "cannot read upload")
		return
	}
	if err := h.documents.Upload(c.Request.Context(), userID, fileHeader.Filename, data); err != nil {
		handleError(c, err)
		return
	}
	go h.syncAsync(userID)
	response.Success(c, gin.H{"filename": fileHeader.Filename, "status": "pending"})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	filename := c.Param("filename")
	if err := h.documents.Delete(c.Request.Context(), getUserID(c), filename); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"filename": filename})
}

// Ingest runs a full reconciliation for the caller and waits for it.
func (h *DocumentHandler) Ingest(c *gin.Context) {
	result, err := h.sync.Sync(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *DocumentHandler) syncAsync(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()
	if _, err := h.sync.Sync(ctx, userID); err != nil {
		logutil.GetLogger(ctx).Warn("background sync failed",
			zap.String("user_id", userID), zap.Error(err))
	}
}
