package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/cortexa-labs/ragserve/internal/blobstore"
	"github.com/cortexa-labs/ragserve/internal/model"
	appErr "github.com/cortexa-labs/ragserve/internal/pkg/errors"
)

const maxUploadBytes = 50 << 20

var allowedMimePrefixes = []string{
	"application/pdf",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"text/markdown",
	"text/plain",
}

// FileCatalog is the slice of the file repository the document flow
// needs.
type FileCatalog interface {
	Upsert(ctx context.Context, file *model.DocumentFile) error
	ListByUser(ctx context.Context, userID string) ([]model.DocumentFile, error)
	Delete(ctx context.Context, userID, filename string) error
}

// DocumentService manages the user's uploaded files. The blob store holds
// the bytes; status rows track what the indexer has done with them.
type DocumentService struct {
	store blobstore.Store
	index VectorIndex
	files FileCatalog
}

func NewDocumentService(store blobstore.Store, index VectorIndex, files FileCatalog) *DocumentService {
	return &DocumentService{store: store, index: index, files: files}
}

func (s *DocumentService) List(ctx context.Context, userID string) ([]model.DocumentFile, error) {
	return s.files.ListByUser(ctx, userID)
}

// Upload validates and stores one file, then records it as pending so
// the next sync run picks it up.
func (s *DocumentService) Upload(ctx context.Context, userID, filename string, data []byte) error {
	filename = strings.TrimSpace(filename)
	if filename == "" || strings.Contains(filename, "/") || strings.Contains(filename, "\\") {
		return fmt.Errorf("%w: bad filename", appErr.ErrInvalid)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty file", appErr.ErrInvalid)
	}
	if len(data) > maxUploadBytes {
		return appErr.ErrFileTooLarge
	}
	detected := mimetype.Detect(data)
	if !mimeAllowed(detected.String()) {
		return fmt.Errorf("%w: %s", appErr.ErrFileType, detected.String())
	}
	if err := s.store.Upload(ctx, userID, filename, bytes.NewReader(data), int64(len(data))); err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	now := time.Now().UnixMilli()
	if err := s.files.Upsert(ctx, &model.DocumentFile{
		ID:       newID(),
		UserID:   userID,
		Filename: filename,
		Status:   model.FileStatusPending,
		Ctime:    now,
		Mtime:    now,
	}); err != nil {
		logutil.GetLogger(ctx).Warn("failed to record pending file", zap.String("filename", filename), zap.Error(err))
	}
	logutil.GetLogger(ctx).Info("file uploaded",
		zap.String("user_id", userID),
		zap.String("filename", filename),
		zap.Int("size", len(data)),
		zap.String("mime", detected.String()),
	)
	return nil
}

// Delete removes the file everywhere: blob store, vector index and the
// status row.
func (s *DocumentService) Delete(ctx context.Context, userID, filename string) error {
	if err := s.store.Delete(ctx, userID, filename); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	if err := s.index.DeleteBySource(ctx, userID, filename); err != nil {
		return fmt.Errorf("delete from index: %w", err)
	}
	if err := s.files.Delete(ctx, userID, filename); err != nil {
		return fmt.Errorf("delete status row: %w", err)
	}
	return nil
}

func mimeAllowed(mime string) bool {
	for _, allowed := range allowedMimePrefixes {
		if strings.HasPrefix(mime, allowed) {
			return true
		}
	}
	return false
}
