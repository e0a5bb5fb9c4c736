package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/cortexa-labs/ragserve/internal/ai"
	"github.com/cortexa-labs/ragserve/internal/model"
)

const (
	maxExpandedQueries = 3
	maxHistoryChars    = 4000
)

const expansionPrompt = `You are a search query generator.
Given a user question and the conversation so far, produce up to %d alternative standalone search queries that would help retrieve relevant documents.
- Each query must be self-contained and understandable without the conversation.
- Rephrase, decompose or generalize the question; do not answer it.
- Return a JSON object of the form {"queries": ["...", "..."]}. No extra text.

CONVERSATION:
%s

QUESTION:
%s`

// Expander widens a query into alternative search queries with a side
// model. Expansion is best-effort: every failure path degrades to the
// original query alone.
type Expander struct {
	gen ai.IGenerator
}

func NewExpander(gen ai.IGenerator) *Expander {
	return &Expander{gen: gen}
}

func (e *Expander) Expand(ctx context.Context, query string, history []model.Message) []string {
	logger := logutil.GetLogger(ctx)
	if e == nil || e.gen == nil {
		logger.Warn("query expansion skipped: no generator configured")
		return []string{query}
	}
	prompt := fmt.Sprintf(expansionPrompt, maxExpandedQueries, formatHistory(history), query)
	raw, err := e.gen.Generate(ctx, prompt)
	if err != nil {
		logger.Warn("query expansion failed, using original query", zap.Error(err))
		return []string{query}
	}
	expanded, err := parseQueries(raw)
	if err != nil {
		logger.Warn("query expansion output unparsable, using original query", zap.Error(err))
		return []string{query}
	}
	logger.Info("query expansion generated variants", zap.Int("count", len(expanded)))
	return append([]string{query}, expanded...)
}

func parseQueries(output string) ([]string, error) {
	clean := strings.TrimSpace(output)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start >= 0 && end > start {
		clean = clean[start : end+1]
	}
	var parsed struct {
		Queries []string `json:"queries"`
	}
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, fmt.Errorf("parse queries: %w", err)
	}
	uniq := make([]string, 0, len(parsed.Queries))
	seen := make(map[string]bool)
	for _, q := range parsed.Queries {
		normalized := strings.TrimSpace(q)
		if normalized == "" {
			continue
		}
		key := strings.ToLower(normalized)
		if seen[key] {
			continue
		}
		seen[key] = true
		uniq = append(uniq, normalized)
		if len(uniq) >= maxExpandedQueries {
			break
		}
	}
	return uniq, nil
}

func formatHistory(history []model.Message) string {
	var sb strings.Builder
	for _, msg := range history {
		sb.WriteString(string(msg.Role))
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	formatted := sb.String()
	if len(formatted) > maxHistoryChars {
		formatted = formatted[len(formatted)-maxHistoryChars:]
	}
	return formatted
}
