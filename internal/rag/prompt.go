package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/cortexa-labs/ragserve/internal/ai"
	"github.com/cortexa-labs/ragserve/internal/model"
)

const systemInstructions = `You are an assistant answering questions about the user's uploaded documents.
Use the numbered context excerpts below when forming your answer and cite them by number, e.g. [1].

CONTEXT:
%s

%s`

const strictRule = `RULE: Only answer using the context above. If the context does not contain the answer, say that you cannot answer from the provided documents.`

const permissiveRule = `RULE: Prefer the context above, but you may fall back to general knowledge when the context is insufficient. Make clear which parts are not grounded in the documents.`

// Budget fractions of the model context window. The remainder after
// query, template and these two reservations belongs to history, scaled
// by a safety margin against token estimation error.
const (
	responseBudgetRatio = 0.10
	contextBudgetRatio  = 0.60
	safetyMargin        = 0.95
)

type PromptInput struct {
	Query         string
	History       []model.Message
	Chunks        []model.RetrievedChunk
	Strict        bool
	ContextWindow int
}

// BuildPrompt assembles the final message list under the token budgets.
// It never fails: an empty context section and an empty history are both
// valid outcomes.
func BuildPrompt(ctx context.Context, in PromptInput) ([]ai.ChatMessage, int, []model.SourceRef) {
	logger := logutil.GetLogger(ctx)

	contextBudget := int(float64(in.ContextWindow) * contextBudgetRatio)

	queryTokens := EstimateTokens(in.Query)
	rule := permissiveRule
	if in.Strict {
		rule = strictRule
	}
	templateTokens := EstimateTokens(systemInstructions + rule)

	history := truncateHistory(in.History, historyBudget(in.ContextWindow, queryTokens, templateTokens))
	historyTokens := 0
	for _, msg := range history {
		historyTokens += EstimateTokens(msg.Content)
	}

	var (
		contextParts  []string
		sources       []model.SourceRef
		contextTokens int
	)
	for i, chunk := range in.Chunks {
		chunkTokens := EstimateTokens(chunk.Content)
		if contextTokens+chunkTokens > contextBudget {
			logger.Info("context token budget reached", zap.Int("included", len(contextParts)), zap.Int("budget", contextBudget))
			break
		}
		contextTokens += chunkTokens
		contextParts = append(contextParts,
			fmt.Sprintf("[%d] Content: %s (Source: %s [Page %d])", i+1, chunk.Content, chunk.Source, chunk.Page))
		sources = append(sources, model.SourceRef{
			Index:   i + 1,
			Content: chunk.Content,
			Source:  chunk.Source,
			Page:    chunk.Page,
		})
	}
	contextStr := strings.Join(contextParts, "\n\n")
	if contextStr == "" {
		logger.Warn("no chunks made it into the prompt context")
	}

	system := fmt.Sprintf(systemInstructions, contextStr, rule)
	messages := make([]ai.ChatMessage, 0, len(history)+2)
	messages = append(messages, ai.ChatMessage{Role: model.RoleSystem, Content: system})
	for _, msg := range history {
		messages = append(messages, ai.ChatMessage{Role: msg.Role, Content: msg.Content})
	}
	messages = append(messages, ai.ChatMessage{Role: model.RoleUser, Content: in.Query})

	totalTokens := queryTokens + historyTokens + EstimateTokens(system)
	logger.Info("prompt assembled",
		zap.Int("total_tokens", totalTokens),
		zap.Int("history_messages", len(history)),
		zap.Int("context_chunks", len(sources)),
	)
	return messages, totalTokens, sources
}

// historyBudget is what remains of the window after the query, the
// template and the context and response reservations, scaled by the
// safety margin against token estimation error.
func historyBudget(window, queryTokens, templateTokens int) int {
	responseBudget := int(float64(window) * responseBudgetRatio)
	contextBudget := int(float64(window) * contextBudgetRatio)
	remainder := window - queryTokens - templateTokens - contextBudget - responseBudget
	return int(float64(remainder) * safetyMargin)
}

// truncateHistory keeps the newest messages that fit the budget. A
// non-positive budget empties the history rather than failing.
func truncateHistory(history []model.Message, budget int) []model.Message {
	if budget <= 0 {
		return nil
	}
	total := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		tokens := EstimateTokens(history[i].Content)
		if total+tokens > budget {
			break
		}
		total += tokens
		start = i
	}
	if start == len(history) {
		return nil
	}
	return history[start:]
}
