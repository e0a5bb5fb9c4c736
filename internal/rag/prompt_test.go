package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cortexa-labs/ragserve/internal/model"
)

func TestBuildPrompt_ShapesMessages(t *testing.T) {
	msgs, _, sources := BuildPrompt(context.Background(), PromptInput{
		Query: "what is the refund policy?",
		History: []model.Message{
			{Role: model.RoleUser, Content: "hi"},
			{Role: model.RoleAssistant, Content: "hello"},
		},
		Chunks:        []model.RetrievedChunk{chunk("refunds take 30 days")},
		Strict:        true,
		ContextWindow: 30000,
	})
	require.Len(t, msgs, 4)
	require.Equal(t, model.RoleSystem, msgs[0].Role)
	require.Equal(t, model.RoleUser, msgs[3].Role)
	require.Equal(t, "what is the refund policy?", msgs[3].Content)
	require.Contains(t, msgs[0].Content, "[1] Content: refunds take 30 days")
	require.Contains(t, msgs[0].Content, "(Source: doc.md [Page 1])")
	require.Len(t, sources, 1)
	require.Equal(t, 1, sources[0].Index)
}

func TestBuildPrompt_StrictAndPermissiveRules(t *testing.T) {
	strict, _, _ := BuildPrompt(context.Background(), PromptInput{Query: "q", ContextWindow: 30000, Strict: true})
	permissive, _, _ := BuildPrompt(context.Background(), PromptInput{Query: "q", ContextWindow: 30000})
	require.Contains(t, strict[0].Content, "Only answer using the context")
	require.Contains(t, permissive[0].Content, "general knowledge")
}

func TestBuildPrompt_ContextBudgetCapsChunks(t *testing.T) {
	// Window 1000 gives a 600 token context budget; each chunk is ~200
	// tokens so only two fit.
	big := strings.Repeat("word ", 200)
	chunks := []model.RetrievedChunk{chunk(big), chunk(big + "a"), chunk(big + "b"), chunk(big + "c")}
	_, _, sources := BuildPrompt(context.Background(), PromptInput{
		Query:         "q",
		Chunks:        chunks,
		ContextWindow: 1000,
	})
	require.Len(t, sources, 2)
}

func TestBuildPrompt_HistoryKeepsNewestWithinBudget(t *testing.T) {
	old := model.Message{Role: model.RoleUser, Content: strings.Repeat("old ", 5000)}
	recent := model.Message{Role: model.RoleAssistant, Content: "recent reply"}
	msgs, _, _ := BuildPrompt(context.Background(), PromptInput{
		Query:         "q",
		History:       []model.Message{old, recent},
		ContextWindow: 1000,
	})
	// System prompt, surviving history message, current query.
	require.Len(t, msgs, 3)
	require.Equal(t, "recent reply", msgs[1].Content)
}

func TestBuildPrompt_EmptyContextStillAnswers(t *testing.T) {
	msgs, total, sources := BuildPrompt(context.Background(), PromptInput{
		Query:         "anything",
		ContextWindow: 30000,
		Strict:        true,
	})
	require.Len(t, msgs, 2)
	require.Empty(t, sources)
	require.Greater(t, total, 0)
}

func TestHistoryBudget_ScalesRemainderBySafetyMargin(t *testing.T) {
	// 1000 - 10 - 90 - 600 (context) - 100 (response) = 200, then * 0.95.
	require.Equal(t, 190, historyBudget(1000, 10, 90))
	require.Negative(t, historyBudget(1000, 200, 200))
}

func TestTruncateHistory_NonPositiveBudgetEmpties(t *testing.T) {
	history := []model.Message{{Role: model.RoleUser, Content: "hello"}}
	require.Nil(t, truncateHistory(history, 0))
	require.Nil(t, truncateHistory(history, -10))
}
