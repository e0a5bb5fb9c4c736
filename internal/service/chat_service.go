package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/cortexa-labs/ragserve/internal/ai"
	"github.com/cortexa-labs/ragserve/internal/metrics"
	"github.com/cortexa-labs/ragserve/internal/model"
	appErr "github.com/cortexa-labs/ragserve/internal/pkg/errors"
	"github.com/cortexa-labs/ragserve/internal/rag"
)

const historyWindowMessages = 50

// ChatEvent is one unit of streamed output. Sources arrive once before
// the first delta; deltas carry completion text; an error event ends a
// failed stream.
type ChatEvent struct {
	Type    string            `json:"type"`
	Delta   string            `json:"delta,omitempty"`
	Sources []model.SourceRef `json:"sources,omitempty"`
	Message string            `json:"message,omitempty"`
}

const (
	EventSources = "sources"
	EventDelta   = "delta"
	EventError   = "error"
)

// EventSink receives chat events in order. Returning an error aborts the
// stream, which is how client disconnects propagate back.
type EventSink func(ev ChatEvent) error

type QueryExpander interface {
	Expand(ctx context.Context, query string, history []model.Message) []string
}

type ChunkRetriever interface {
	Retrieve(ctx context.Context, owner string, queries []string) ([]model.RetrievedChunk, error)
}

type ChunkReranker interface {
	Rerank(ctx context.Context, query string, chunks []model.RetrievedChunk, threshold float64) []model.RetrievedChunk
}

// MessageLog is the slice of the message repository the chat flow needs.
type MessageLog interface {
	Append(ctx context.Context, msg *model.Message) error
	ListByUser(ctx context.Context, userID string, limit int) ([]model.Message, error)
}

type ConversationLog interface {
	Create(ctx context.Context, conv *model.Conversation) error
	GetByID(ctx context.Context, userID, convID string) (*model.Conversation, error)
}

type ChatConfig struct {
	ContextWindow   int
	RerankThreshold float64
	Strict          bool
	Temperature     float32
}

// AskOptions carries per-request overrides for the pipeline knobs. Nil
// fields fall back to the service configuration.
type AskOptions struct {
	Temperature     *float32
	Strict          *bool
	RerankThreshold *float64
}

// ChatService runs one question through the full pipeline: expand the
// query, retrieve and rerank chunks, assemble the prompt under budget,
// then stream the completion while recording both sides of the exchange.
type ChatService struct {
	expander      QueryExpander
	retriever     ChunkRetriever
	reranker      ChunkReranker
	chat          ai.IChatStreamer
	messages      MessageLog
	conversations ConversationLog
	cfg           ChatConfig
}

func NewChatService(expander QueryExpander, retriever ChunkRetriever, reranker ChunkReranker, chat ai.IChatStreamer, messages MessageLog, conversations ConversationLog, cfg ChatConfig) *ChatService {
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = 30000
	}
	return &ChatService{
		expander:      expander,
		retriever:     retriever,
		reranker:      reranker,
		chat:          chat,
		messages:      messages,
		conversations: conversations,
		cfg:           cfg,
	}
}

// Ask streams the answer to one question into sink. The user message is
// persisted before any model call so a failed answer still shows up in
// history; the assistant message is persisted only when at least some
// completion text was produced.
func (s *ChatService) Ask(ctx context.Context, userID, convID, query string, opts AskOptions, sink EventSink) error {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID))
	if query == "" {
		return fmt.Errorf("%w: empty query", appErr.ErrInvalid)
	}
	temperature := s.cfg.Temperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	strict := s.cfg.Strict
	if opts.Strict != nil {
		strict = *opts.Strict
	}
	threshold := s.cfg.RerankThreshold
	if opts.RerankThreshold != nil {
		threshold = *opts.RerankThreshold
	}

	conv, err := s.resolveConversation(ctx, userID, convID, query)
	if err != nil {
		return err
	}
	history, err := s.messages.ListByUser(ctx, userID, historyWindowMessages)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	now := time.Now().UnixMilli()
	if err := s.messages.Append(ctx, &model.Message{
		ID:             newID(),
		ConversationID: conv.ID,
		UserID:         userID,
		Role:           model.RoleUser,
		Content:        query,
		Ctime:          now,
	}); err != nil {
		return fmt.Errorf("persist user message: %w", err)
	}

	stage := time.Now()
	queries := s.expander.Expand(ctx, query, history)
	metrics.QueryStageDuration.WithLabelValues("expand").Observe(time.Since(stage).Seconds())

	normalized := make([]string, len(queries))
	for i, q := range queries {
		normalized[i] = rag.NormalizeQuery(q)
	}

	stage = time.Now()
	chunks, err := s.retriever.Retrieve(ctx, userID, normalized)
	metrics.QueryStageDuration.WithLabelValues("retrieve").Observe(time.Since(stage).Seconds())
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		s.emitError(sink, "retrieval failed")
		return fmt.Errorf("retrieve: %w", err)
	}
	metrics.RetrievedChunks.Observe(float64(len(chunks)))

	stage = time.Now()
	chunks = s.reranker.Rerank(ctx, query, chunks, threshold)
	metrics.QueryStageDuration.WithLabelValues("rerank").Observe(time.Since(stage).Seconds())

	stage = time.Now()
	prompt, totalTokens, sources := rag.BuildPrompt(ctx, rag.PromptInput{
		Query:         query,
		History:       history,
		Chunks:        chunks,
		Strict:        strict,
		ContextWindow: s.cfg.ContextWindow,
	})
	metrics.QueryStageDuration.WithLabelValues("assemble").Observe(time.Since(stage).Seconds())
	logger.Info("prompt ready", zap.Int("tokens", totalTokens), zap.Int("sources", len(sources)))

	if err := sink(ChatEvent{Type: EventSources, Sources: sources}); err != nil {
		return err
	}

	stage = time.Now()
	var answer []byte
	streamErr := s.chat.ChatStream(ctx, prompt, temperature, func(delta string) error {
		answer = append(answer, delta...)
		return sink(ChatEvent{Type: EventDelta, Delta: delta})
	})
	metrics.QueryStageDuration.WithLabelValues("stream").Observe(time.Since(stage).Seconds())

	// Partial answers are still answers: whatever text made it out is
	// preserved even when the stream died midway. The request context is
	// already canceled when the client hung up, so persistence runs on a
	// detached context.
	if len(answer) > 0 {
		persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.messages.Append(persistCtx, &model.Message{
			ID:             newID(),
			ConversationID: conv.ID,
			UserID:         userID,
			Role:           model.RoleAssistant,
			Content:        string(answer),
			Sources:        sources,
			Ctime:          time.Now().UnixMilli(),
		}); err != nil {
			logger.Error("failed to persist assistant message", zap.Error(err))
		}
	}
	if streamErr != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		logger.Error("completion stream failed", zap.Int("partial_bytes", len(answer)), zap.Error(streamErr))
		s.emitError(sink, "completion failed")
		return fmt.Errorf("%w: %v", appErr.ErrLLMUnavailable, streamErr)
	}
	metrics.QueriesTotal.WithLabelValues("ok").Inc()
	return nil
}

func (s *ChatService) resolveConversation(ctx context.Context, userID, convID, query string) (*model.Conversation, error) {
	if convID != "" {
		conv, err := s.conversations.GetByID(ctx, userID, convID)
		if err != nil {
			return nil, fmt.Errorf("load conversation: %w", err)
		}
		return conv, nil
	}
	conv := &model.Conversation{
		ID:     newID(),
		UserID: userID,
		Title:  truncateTitle(query),
		Ctime:  time.Now().UnixMilli(),
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

func (s *ChatService) emitError(sink EventSink, msg string) {
	_ = sink(ChatEvent{Type: EventError, Message: msg})
}

func truncateTitle(query string) string {
	const maxTitle = 80
	runes := []rune(query)
	if len(runes) <= maxTitle {
		return query
	}
	return string(runes[:maxTitle])
}
