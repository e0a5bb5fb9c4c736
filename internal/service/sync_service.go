package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/cortexa-labs/ragserve/internal/ai"
	"github.com/cortexa-labs/ragserve/internal/blobstore"
	"github.com/cortexa-labs/ragserve/internal/extract"
	"github.com/cortexa-labs/ragserve/internal/metrics"
	"github.com/cortexa-labs/ragserve/internal/model"
	appErr "github.com/cortexa-labs/ragserve/internal/pkg/errors"
	"github.com/cortexa-labs/ragserve/internal/splitter"
)

// TaskTypeDocument is passed to embedders that distinguish document
// vectors from query vectors.
const TaskTypeDocument = "RETRIEVAL_DOCUMENT"

// VectorIndex is the slice of the index repository the sync flow needs.
type VectorIndex interface {
	ExistingFiles(ctx context.Context, owner string) (map[string]string, error)
	DeleteBySource(ctx context.Context, owner, source string) error
	AddDocuments(ctx context.Context, owner string, parents []model.ParentDocument, children []model.ChildChunk) error
	Count(ctx context.Context, owner string) (int64, error)
}

// FileTracker records per-file sync status alongside the index.
type FileTracker interface {
	Upsert(ctx context.Context, file *model.DocumentFile) error
	UpdateStatus(ctx context.Context, userID, filename string, status model.FileStatus, errMsg string, mtime int64) error
	DeleteMissing(ctx context.Context, userID string, keep []string) (int64, error)
}

// SyncResult summarizes one sync run. Chunks is the total indexed chunk
// count for the owner after the run, not just what this run added.
type SyncResult struct {
	Indexed int   `json:"indexed"`
	Deleted int   `json:"deleted"`
	Failed  int   `json:"failed"`
	Chunks  int64 `json:"chunks"`
}

// SyncService reconciles the vector index with the blob store. The blob
// store is the source of truth: files present there get indexed, stale
// index generations get replaced, vanished files get purged.
type SyncService struct {
	store    blobstore.Store
	index    VectorIndex
	files    FileTracker
	embedder ai.IEmbedder
	parents  *splitter.Splitter
	children *splitter.Splitter

	mu      sync.Mutex
	running map[string]bool
}

func NewSyncService(store blobstore.Store, index VectorIndex, files FileTracker, embedder ai.IEmbedder, parents, children *splitter.Splitter) *SyncService {
	return &SyncService{
		store:    store,
		index:    index,
		files:    files,
		embedder: embedder,
		parents:  parents,
		children: children,
		running:  make(map[string]bool),
	}
}

// Sync runs one reconciliation for the owner. Only one run per owner may
// be in flight; a second caller gets ErrConflict instead of queueing.
// One file failing marks that file and moves on, so a single bad upload
// cannot wedge the rest of the corpus.
func (s *SyncService) Sync(ctx context.Context, owner string) (*SyncResult, error) {
	if !s.tryAcquire(owner) {
		return nil, fmt.Errorf("%w: sync already running for this user", appErr.ErrConflict)
	}
	defer s.release(owner)

	logger := logutil.GetLogger(ctx).With(zap.String("owner", owner))
	started := time.Now()
	defer func() {
		metrics.SyncRunDuration.Observe(time.Since(started).Seconds())
	}()

	stored, err := s.store.List(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list blob store: %w", err)
	}
	indexed, err := s.index.ExistingFiles(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list index: %w", err)
	}

	var result SyncResult
	for source := range indexed {
		fingerprint, exists := stored[source]
		if exists && fingerprint == indexed[source] {
			continue
		}
		if err := s.index.DeleteBySource(ctx, owner, source); err != nil {
			logger.Error("failed to purge stale file from index", zap.String("source", source), zap.Error(err))
			metrics.SyncFilesTotal.WithLabelValues("delete", "error").Inc()
			result.Failed++
			continue
		}
		metrics.SyncFilesTotal.WithLabelValues("delete", "ok").Inc()
		if !exists {
			result.Deleted++
			logger.Info("removed vanished file from index", zap.String("source", source))
		}
	}

	keep := make([]string, 0, len(stored))
	for filename := range stored {
		keep = append(keep, filename)
	}
	if _, err := s.files.DeleteMissing(ctx, owner, keep); err != nil {
		logger.Warn("failed to prune file status rows", zap.Error(err))
	}

	for filename, fingerprint := range stored {
		if indexed[filename] == fingerprint {
			continue
		}
		if !extract.Supported(filename) {
			logger.Warn("skipping file with unsupported extension", zap.String("filename", filename))
			metrics.SyncFilesTotal.WithLabelValues("index", "skipped").Inc()
			continue
		}
		if err := s.indexOne(ctx, owner, filename, fingerprint); err != nil {
			logger.Error("failed to index file", zap.String("filename", filename), zap.Error(err))
			metrics.SyncFilesTotal.WithLabelValues("index", "error").Inc()
			s.markStatus(ctx, owner, filename, fingerprint, model.FileStatusFailed, err.Error())
			result.Failed++
			continue
		}
		metrics.SyncFilesTotal.WithLabelValues("index", "ok").Inc()
		s.markStatus(ctx, owner, filename, fingerprint, model.FileStatusCompleted, "")
		result.Indexed++
	}

	result.Chunks, err = s.index.Count(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	logger.Info("sync finished",
		zap.Int("indexed", result.Indexed),
		zap.Int("deleted", result.Deleted),
		zap.Int("failed", result.Failed),
		zap.Int64("chunks", result.Chunks),
		zap.Duration("cost", time.Since(started)),
	)
	return &result, nil
}

func (s *SyncService) indexOne(ctx context.Context, owner, filename, fingerprint string) error {
	s.markStatus(ctx, owner, filename, fingerprint, model.FileStatusProcessing, "")

	data, err := s.store.Download(ctx, owner, filename)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	pages, err := extract.Pages(filename, fingerprint, data)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	var parents []model.ParentDocument
	var children []model.ChildChunk
	for _, page := range pages {
		for _, parentText := range s.parents.Split(page.Content) {
			parent := model.ParentDocument{
				ID:          newID(),
				Content:     parentText,
				Source:      page.Source,
				Fingerprint: page.Fingerprint,
				Page:        page.Page,
			}
			parents = append(parents, parent)
			for _, childText := range s.children.Split(parentText) {
				vector, err := s.embedder.Embed(ctx, childText, TaskTypeDocument)
				if err != nil {
					return fmt.Errorf("embed chunk: %w", err)
				}
				children = append(children, model.ChildChunk{
					ParentID:    parent.ID,
					Content:     childText,
					Embedding:   vector,
					Source:      page.Source,
					Fingerprint: page.Fingerprint,
					Page:        page.Page,
				})
			}
		}
	}
	if len(children) == 0 {
		return fmt.Errorf("no indexable text extracted")
	}

	// Replace the previous generation atomically per table write; the
	// delete and add are separate transactions, so a concurrent query
	// may briefly see the file absent rather than doubled.
	if err := s.index.DeleteBySource(ctx, owner, filename); err != nil {
		return fmt.Errorf("delete previous generation: %w", err)
	}
	if err := s.index.AddDocuments(ctx, owner, parents, children); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	return nil
}

// markStatus upserts the row when a file enters processing and flips the
// status in place for the completed and failed transitions.
func (s *SyncService) markStatus(ctx context.Context, owner, filename, fingerprint string, status model.FileStatus, errMsg string) {
	now := time.Now().UnixMilli()
	var err error
	if status == model.FileStatusProcessing {
		err = s.files.Upsert(ctx, &model.DocumentFile{
			ID:           newID(),
			UserID:       owner,
			Filename:     filename,
			Fingerprint:  fingerprint,
			Status:       status,
			ErrorMessage: errMsg,
			Ctime:        now,
			Mtime:        now,
		})
	} else {
		err = s.files.UpdateStatus(ctx, owner, filename, status, errMsg, now)
	}
	if err != nil {
		logutil.GetLogger(ctx).Warn("failed to record file status",
			zap.String("filename", filename), zap.String("status", string(status)), zap.Error(err))
	}
}

func (s *SyncService) tryAcquire(owner string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[owner] {
		return false
	}
	s.running[owner] = true
	return true
}

func (s *SyncService) release(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, owner)
}
