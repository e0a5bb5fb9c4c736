package service

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/cortexa-labs/ragserve/internal/model"
	"github.com/cortexa-labs/ragserve/internal/repo"
)

type HistoryService struct {
	messages *repo.MessageRepo
}

func NewHistoryService(messages *repo.MessageRepo) *HistoryService {
	return &HistoryService{messages: messages}
}

// List returns the user's messages oldest first. A zero limit means the
// repository default window.
func (s *HistoryService) List(ctx context.Context, userID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	return s.messages.ListByUser(ctx, userID, limit)
}

func (s *HistoryService) Clear(ctx context.Context, userID string) (int64, error) {
	deleted, err := s.messages.ClearByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	logutil.GetLogger(ctx).Info("chat history cleared",
		zap.String("user_id", userID), zap.Int64("deleted", deleted))
	return deleted, nil
}
