package rag

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cortexa-labs/ragserve/internal/model"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text))}, nil
}

func (f *fakeEmbedder) ModelName() string { return "fake-embed" }

type fakeSearcher struct {
	results map[string][]model.RetrievedChunk
	failOn  map[string]bool
}

func (f *fakeSearcher) Search(_ context.Context, _ string, queryVector []float32, _ int) ([]model.RetrievedChunk, error) {
	key := keyForLen(int(queryVector[0]))
	if f.failOn[key] {
		return nil, errors.New("search failed")
	}
	return f.results[key], nil
}

// The fake embedder encodes the query length into the vector, which lets
// the fake searcher route per query without sharing state.
func keyForLen(n int) string {
	switch n {
	case 1:
		return "a"
	case 2:
		return "bb"
	case 3:
		return "ccc"
	}
	return ""
}

func chunk(content string) model.RetrievedChunk {
	return model.RetrievedChunk{ParentID: content, Content: content, Source: "doc.md", Page: 1}
}

func TestRetrieve_MergesInQueryOrder(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]model.RetrievedChunk{
		"a":  {chunk("one"), chunk("two")},
		"bb": {chunk("three")},
	}}
	r := NewRetriever(&fakeEmbedder{}, searcher, 5, time.Second)
	out, err := r.Retrieve(context.Background(), "user", []string{"a", "bb"})
	require.NoError(t, err)
	require.Equal(t, []string{"one", "two", "three"}, contents(out))
}

func TestRetrieve_DedupsExactContent(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]model.RetrievedChunk{
		"a":  {chunk("shared"), chunk("only-a")},
		"bb": {chunk("shared"), chunk("only-b")},
	}}
	r := NewRetriever(&fakeEmbedder{}, searcher, 5, time.Second)
	out, err := r.Retrieve(context.Background(), "user", []string{"a", "bb"})
	require.NoError(t, err)
	require.Equal(t, []string{"shared", "only-a", "only-b"}, contents(out))
}

func TestRetrieve_OneFailingSubQueryIsTolerated(t *testing.T) {
	searcher := &fakeSearcher{
		results: map[string][]model.RetrievedChunk{"a": {chunk("kept")}},
		failOn:  map[string]bool{"bb": true},
	}
	r := NewRetriever(&fakeEmbedder{}, searcher, 5, time.Second)
	out, err := r.Retrieve(context.Background(), "user", []string{"a", "bb"})
	require.NoError(t, err)
	require.Equal(t, []string{"kept"}, contents(out))
}

func TestRetrieve_AllSubQueriesFailingErrors(t *testing.T) {
	searcher := &fakeSearcher{failOn: map[string]bool{"a": true, "bb": true}}
	r := NewRetriever(&fakeEmbedder{}, searcher, 5, time.Second)
	_, err := r.Retrieve(context.Background(), "user", []string{"a", "bb"})
	require.Error(t, err)
}

func TestRetrieve_EmbedFailureCountsAsSubQueryFailure(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{err: errors.New("embed down")}, &fakeSearcher{}, 5, time.Second)
	_, err := r.Retrieve(context.Background(), "user", []string{"a"})
	require.Error(t, err)
}

func contents(chunks []model.RetrievedChunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Content
	}
	return out
}
