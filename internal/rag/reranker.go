package rag

import (
	"context"
	"sort"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/cortexa-labs/ragserve/internal/model"
	"github.com/cortexa-labs/ragserve/internal/rerank"
)

// maxRerankCandidates bounds cross-encoder cost; anything past the first
// 15 retrieved chunks is not scored.
const maxRerankCandidates = 15

// Reranker refines retrieval order with a cross-encoder. It is an
// enhancement, never a hard dependency: when scoring fails the input
// passes through unchanged (capped), and when nothing clears the
// threshold the single best chunk survives so the answer always has at
// least one citation.
type Reranker struct {
	scorer rerank.Scorer
}

func NewReranker(scorer rerank.Scorer) *Reranker {
	return &Reranker{scorer: scorer}
}

func (r *Reranker) Rerank(ctx context.Context, query string, chunks []model.RetrievedChunk, threshold float64) []model.RetrievedChunk {
	logger := logutil.GetLogger(ctx)
	if len(chunks) == 0 {
		return chunks
	}
	candidates := chunks
	if len(candidates) > maxRerankCandidates {
		logger.Info("limiting rerank candidates", zap.Int("total", len(chunks)), zap.Int("cap", maxRerankCandidates))
		candidates = candidates[:maxRerankCandidates]
	}
	if r == nil || r.scorer == nil {
		return candidates
	}

	texts := make([]string, len(candidates))
	for i, chunk := range candidates {
		texts[i] = chunk.Content
	}
	scores, err := r.scorer.Score(ctx, query, texts)
	if err != nil || len(scores) != len(candidates) {
		logger.Warn("reranking failed, passing candidates through", zap.Error(err))
		return candidates
	}

	scored := make([]model.RetrievedChunk, len(candidates))
	for i, chunk := range candidates {
		chunk.Score = scores[i]
		scored[i] = chunk
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	var kept []model.RetrievedChunk
	for _, chunk := range scored {
		if chunk.Score > threshold {
			kept = append(kept, chunk)
		}
	}
	if len(kept) == 0 {
		best := scored[0]
		logger.Warn("no chunks cleared rerank threshold, keeping single best",
			zap.Float64("threshold", threshold),
			zap.Float64("best_score", best.Score),
		)
		return []model.RetrievedChunk{best}
	}
	logger.Info("reranking kept chunks", zap.Int("kept", len(kept)), zap.Float64("threshold", threshold))
	return kept
}
