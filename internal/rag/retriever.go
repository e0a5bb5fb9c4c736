package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cortexa-labs/ragserve/internal/ai"
	"github.com/cortexa-labs/ragserve/internal/model"
)

// TaskTypeQuery is passed to embedders that distinguish query vectors
// from document vectors.
const TaskTypeQuery = "RETRIEVAL_QUERY"

// Searcher is the vector index lookup: nearest child chunks for a query
// vector, folded up to parent level.
type Searcher interface {
	Search(ctx context.Context, owner string, queryVector []float32, topK int) ([]model.RetrievedChunk, error)
}

// Retriever fans one retrieval call per query out concurrently and merges
// the results deterministically: original query first, then expansion
// order, deduplicated by exact chunk text.
type Retriever struct {
	embedder ai.IEmbedder
	index    Searcher
	topK     int
	timeout  time.Duration
}

func NewRetriever(embedder ai.IEmbedder, index Searcher, topK int, timeout time.Duration) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Retriever{embedder: embedder, index: index, topK: topK, timeout: timeout}
}

func (r *Retriever) Retrieve(ctx context.Context, owner string, queries []string) ([]model.RetrievedChunk, error) {
	logger := logutil.GetLogger(ctx)
	results := make([][]model.RetrievedChunk, len(queries))
	errs := make([]error, len(queries))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, query := range queries {
		group.Go(func() error {
			subCtx, cancel := context.WithTimeout(groupCtx, r.timeout)
			defer cancel()
			chunks, err := r.retrieveOne(subCtx, owner, query)
			if err != nil {
				// Recorded, not returned: one slow or failed sub-query
				// must not cancel its siblings.
				errs[i] = err
				return nil
			}
			results[i] = chunks
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			logger.Warn("sub-query retrieval failed", zap.String("query", queries[i]), zap.Error(err))
		}
	}
	if failed == len(queries) {
		return nil, fmt.Errorf("all %d retrieval sub-queries failed: %w", failed, errs[0])
	}

	seen := make(map[string]bool)
	var merged []model.RetrievedChunk
	for _, chunks := range results {
		for _, chunk := range chunks {
			if seen[chunk.Content] {
				continue
			}
			seen[chunk.Content] = true
			merged = append(merged, chunk)
		}
	}
	logger.Info("retrieval merged", zap.Int("queries", len(queries)), zap.Int("unique_chunks", len(merged)))
	return merged, nil
}

func (r *Retriever) retrieveOne(ctx context.Context, owner, query string) ([]model.RetrievedChunk, error) {
	vector, err := r.embedder.Embed(ctx, query, TaskTypeQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	chunks, err := r.index.Search(ctx, owner, vector, r.topK)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}
	return chunks, nil
}
