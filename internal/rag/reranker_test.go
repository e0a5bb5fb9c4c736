package rag

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cortexa-labs/ragserve/internal/model"
)

type fakeScorer struct {
	scores []float64
	err    error
	calls  int
	docs   []string
}

func (f *fakeScorer) Score(_ context.Context, _ string, documents []string) ([]float64, error) {
	f.calls++
	f.docs = documents
	if f.err != nil {
		return nil, f.err
	}
	return f.scores, nil
}

func makeChunks(n int) []model.RetrievedChunk {
	out := make([]model.RetrievedChunk, n)
	for i := range out {
		out[i] = chunk(fmt.Sprintf("chunk-%d", i))
	}
	return out
}

func TestRerank_EmptyInputPassesThrough(t *testing.T) {
	r := NewReranker(&fakeScorer{})
	require.Empty(t, r.Rerank(context.Background(), "q", nil, 0.5))
}

func TestRerank_NilScorerReturnsCappedInput(t *testing.T) {
	r := NewReranker(nil)
	out := r.Rerank(context.Background(), "q", makeChunks(20), 0.5)
	require.Len(t, out, maxRerankCandidates)
}

func TestRerank_CapsCandidatesBeforeScoring(t *testing.T) {
	scorer := &fakeScorer{scores: make([]float64, maxRerankCandidates)}
	for i := range scorer.scores {
		scorer.scores[i] = 0.9
	}
	r := NewReranker(scorer)
	r.Rerank(context.Background(), "q", makeChunks(20), 0.5)
	require.Len(t, scorer.docs, maxRerankCandidates)
}

func TestRerank_SortsByScoreAndFilters(t *testing.T) {
	scorer := &fakeScorer{scores: []float64{0.2, 0.9, 0.7}}
	r := NewReranker(scorer)
	out := r.Rerank(context.Background(), "q", makeChunks(3), 0.5)
	require.Equal(t, []string{"chunk-1", "chunk-2"}, contents(out))
	require.Equal(t, 0.9, out[0].Score)
}

func TestRerank_NothingAboveThresholdKeepsSingleBest(t *testing.T) {
	scorer := &fakeScorer{scores: []float64{0.1, 0.3, 0.2}}
	r := NewReranker(scorer)
	out := r.Rerank(context.Background(), "q", makeChunks(3), 0.5)
	require.Len(t, out, 1)
	require.Equal(t, "chunk-1", out[0].Content)
}

func TestRerank_ScorerErrorPassesThrough(t *testing.T) {
	r := NewReranker(&fakeScorer{err: errors.New("rerank down")})
	in := makeChunks(3)
	out := r.Rerank(context.Background(), "q", in, 0.5)
	require.Equal(t, contents(in), contents(out))
}

func TestRerank_ScoreCountMismatchPassesThrough(t *testing.T) {
	r := NewReranker(&fakeScorer{scores: []float64{0.9}})
	in := makeChunks(3)
	out := r.Rerank(context.Background(), "q", in, 0.5)
	require.Equal(t, contents(in), contents(out))
}
