package job

import (
	"context"
	"errors"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/cortexa-labs/ragserve/internal/pkg/errors"
	"github.com/cortexa-labs/ragserve/internal/repo"
	"github.com/cortexa-labs/ragserve/internal/service"
)

// ReindexJob periodically reconciles every user's index against the blob
// store, picking up uploads whose post-upload sync failed and files
// changed out of band.
type ReindexJob struct {
	users *repo.UserRepo
	sync  *service.SyncService
}

func NewReindexJob(users *repo.UserRepo, sync *service.SyncService) *ReindexJob {
	return &ReindexJob{users: users, sync: sync}
}

func (j *ReindexJob) Name() string {
	return "reindex"
}

func (j *ReindexJob) Run(ctx context.Context) error {
	ids, err := j.users.ListIDs(ctx)
	if err != nil {
		return err
	}
	logger := logutil.GetLogger(ctx)
	for _, userID := range ids {
		result, err := j.sync.Sync(ctx, userID)
		if err != nil {
			if errors.Is(err, appErr.ErrConflict) {
				continue
			}
			logger.Warn("reindex failed for user", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		if result.Indexed > 0 || result.Deleted > 0 || result.Failed > 0 {
			logger.Info("reindex updated user",
				zap.String("user_id", userID),
				zap.Int("indexed", result.Indexed),
				zap.Int("deleted", result.Deleted),
				zap.Int("failed", result.Failed),
			)
		}
	}
	return nil
}
