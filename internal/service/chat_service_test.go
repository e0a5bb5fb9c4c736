package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cortexa-labs/ragserve/internal/ai"
	"github.com/cortexa-labs/ragserve/internal/model"
	appErr "github.com/cortexa-labs/ragserve/internal/pkg/errors"
)

type fakeExpander struct{ queries []string }

func (f *fakeExpander) Expand(_ context.Context, query string, _ []model.Message) []string {
	if f.queries != nil {
		return f.queries
	}
	return []string{query}
}

type fakeRetriever struct {
	chunks  []model.RetrievedChunk
	err     error
	queries []string
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, queries []string) ([]model.RetrievedChunk, error) {
	f.queries = queries
	return f.chunks, f.err
}

type fakeReranker struct {
	threshold float64
}

func (f *fakeReranker) Rerank(_ context.Context, _ string, chunks []model.RetrievedChunk, threshold float64) []model.RetrievedChunk {
	f.threshold = threshold
	return chunks
}

type fakeStreamer struct {
	deltas      []string
	err         error
	temperature float32
}

func (f *fakeStreamer) ChatStream(_ context.Context, _ []ai.ChatMessage, temperature float32, onDelta ai.DeltaFunc) error {
	f.temperature = temperature
	for _, d := range f.deltas {
		if err := onDelta(d); err != nil {
			return err
		}
	}
	return f.err
}

// hangupStreamer emits its deltas and then simulates the client
// disconnecting: the request context is canceled before the stream
// returns.
type hangupStreamer struct {
	deltas []string
	cancel context.CancelFunc
}

func (f *hangupStreamer) ChatStream(ctx context.Context, _ []ai.ChatMessage, _ float32, onDelta ai.DeltaFunc) error {
	for _, d := range f.deltas {
		if err := onDelta(d); err != nil {
			return err
		}
	}
	f.cancel()
	return ctx.Err()
}

type fakeMessageLog struct {
	appended []model.Message
	history  []model.Message
}

func (f *fakeMessageLog) Append(ctx context.Context, msg *model.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.appended = append(f.appended, *msg)
	return nil
}

func (f *fakeMessageLog) ListByUser(_ context.Context, _ string, _ int) ([]model.Message, error) {
	return f.history, nil
}

type fakeConvLog struct {
	created []model.Conversation
}

func (f *fakeConvLog) Create(_ context.Context, conv *model.Conversation) error {
	f.created = append(f.created, *conv)
	return nil
}

func (f *fakeConvLog) GetByID(_ context.Context, userID, convID string) (*model.Conversation, error) {
	return &model.Conversation{ID: convID, UserID: userID}, nil
}

func collectEvents(events *[]ChatEvent) EventSink {
	return func(ev ChatEvent) error {
		*events = append(*events, ev)
		return nil
	}
}

func testChunks() []model.RetrievedChunk {
	return []model.RetrievedChunk{{ParentID: "p1", Content: "fact", Source: "doc.md", Page: 2}}
}

func TestAsk_StreamsSourcesThenDeltas(t *testing.T) {
	msgs := &fakeMessageLog{}
	svc := NewChatService(&fakeExpander{}, &fakeRetriever{chunks: testChunks()}, &fakeReranker{},
		&fakeStreamer{deltas: []string{"The ", "answer"}}, msgs, &fakeConvLog{}, ChatConfig{ContextWindow: 30000})

	var events []ChatEvent
	err := svc.Ask(context.Background(), "u1", "", "what?", AskOptions{}, collectEvents(&events))
	require.NoError(t, err)

	require.Equal(t, EventSources, events[0].Type)
	require.Len(t, events[0].Sources, 1)
	require.Equal(t, "doc.md", events[0].Sources[0].Source)
	require.Equal(t, []ChatEvent{
		{Type: EventDelta, Delta: "The "},
		{Type: EventDelta, Delta: "answer"},
	}, events[1:])
}

func TestAsk_PersistsBothSidesOfExchange(t *testing.T) {
	msgs := &fakeMessageLog{}
	svc := NewChatService(&fakeExpander{}, &fakeRetriever{chunks: testChunks()}, &fakeReranker{},
		&fakeStreamer{deltas: []string{"answer"}}, msgs, &fakeConvLog{}, ChatConfig{ContextWindow: 30000})

	var events []ChatEvent
	require.NoError(t, svc.Ask(context.Background(), "u1", "", "what?", AskOptions{}, collectEvents(&events)))

	require.Len(t, msgs.appended, 2)
	require.Equal(t, model.RoleUser, msgs.appended[0].Role)
	require.Equal(t, "what?", msgs.appended[0].Content)
	require.Equal(t, model.RoleAssistant, msgs.appended[1].Role)
	require.Equal(t, "answer", msgs.appended[1].Content)
	require.Len(t, msgs.appended[1].Sources, 1)
}

func TestAsk_NoTextMeansNoAssistantMessage(t *testing.T) {
	msgs := &fakeMessageLog{}
	svc := NewChatService(&fakeExpander{}, &fakeRetriever{}, &fakeReranker{},
		&fakeStreamer{err: errors.New("model down")}, msgs, &fakeConvLog{}, ChatConfig{ContextWindow: 30000})

	var events []ChatEvent
	err := svc.Ask(context.Background(), "u1", "", "what?", AskOptions{}, collectEvents(&events))
	require.ErrorIs(t, err, appErr.ErrLLMUnavailable)

	require.Len(t, msgs.appended, 1)
	require.Equal(t, model.RoleUser, msgs.appended[0].Role)
	last := events[len(events)-1]
	require.Equal(t, EventError, last.Type)
}

func TestAsk_PartialAnswerIsPreserved(t *testing.T) {
	msgs := &fakeMessageLog{}
	svc := NewChatService(&fakeExpander{}, &fakeRetriever{chunks: testChunks()}, &fakeReranker{},
		&fakeStreamer{deltas: []string{"half an "}, err: errors.New("cut off")}, msgs, &fakeConvLog{}, ChatConfig{ContextWindow: 30000})

	var events []ChatEvent
	err := svc.Ask(context.Background(), "u1", "", "what?", AskOptions{}, collectEvents(&events))
	require.Error(t, err)

	require.Len(t, msgs.appended, 2)
	require.Equal(t, "half an ", msgs.appended[1].Content)
}

func TestAsk_ClientHangupStillPersistsPartialAnswer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs := &fakeMessageLog{}
	svc := NewChatService(&fakeExpander{}, &fakeRetriever{chunks: testChunks()}, &fakeReranker{},
		&hangupStreamer{deltas: []string{"partial answer "}, cancel: cancel}, msgs, &fakeConvLog{}, ChatConfig{ContextWindow: 30000})

	var events []ChatEvent
	err := svc.Ask(ctx, "u1", "", "what?", AskOptions{}, collectEvents(&events))
	require.ErrorIs(t, err, appErr.ErrLLMUnavailable)

	require.Len(t, msgs.appended, 2)
	require.Equal(t, model.RoleAssistant, msgs.appended[1].Role)
	require.Equal(t, "partial answer ", msgs.appended[1].Content)
}

func TestAsk_PerRequestOverridesReachPipeline(t *testing.T) {
	reranker := &fakeReranker{}
	streamer := &fakeStreamer{deltas: []string{"ok"}}
	svc := NewChatService(&fakeExpander{}, &fakeRetriever{chunks: testChunks()}, reranker,
		streamer, &fakeMessageLog{}, &fakeConvLog{},
		ChatConfig{ContextWindow: 30000, RerankThreshold: 0.4, Temperature: 0.7, Strict: true})

	temperature := float32(1.5)
	strict := false
	threshold := 0.9
	var events []ChatEvent
	err := svc.Ask(context.Background(), "u1", "", "what?", AskOptions{
		Temperature:     &temperature,
		Strict:          &strict,
		RerankThreshold: &threshold,
	}, collectEvents(&events))
	require.NoError(t, err)
	require.Equal(t, float32(1.5), streamer.temperature)
	require.Equal(t, 0.9, reranker.threshold)
}

func TestAsk_ConfigDefaultsApplyWithoutOverrides(t *testing.T) {
	reranker := &fakeReranker{}
	streamer := &fakeStreamer{deltas: []string{"ok"}}
	svc := NewChatService(&fakeExpander{}, &fakeRetriever{chunks: testChunks()}, reranker,
		streamer, &fakeMessageLog{}, &fakeConvLog{},
		ChatConfig{ContextWindow: 30000, RerankThreshold: 0.4, Temperature: 0.7})

	var events []ChatEvent
	err := svc.Ask(context.Background(), "u1", "", "what?", AskOptions{}, collectEvents(&events))
	require.NoError(t, err)
	require.Equal(t, float32(0.7), streamer.temperature)
	require.Equal(t, 0.4, reranker.threshold)
}

func TestAsk_RetrievalFailureEmitsErrorEvent(t *testing.T) {
	msgs := &fakeMessageLog{}
	svc := NewChatService(&fakeExpander{}, &fakeRetriever{err: errors.New("index down")}, &fakeReranker{},
		&fakeStreamer{}, msgs, &fakeConvLog{}, ChatConfig{ContextWindow: 30000})

	var events []ChatEvent
	err := svc.Ask(context.Background(), "u1", "", "what?", AskOptions{}, collectEvents(&events))
	require.Error(t, err)
	require.Len(t, events, 1)
	require.Equal(t, EventError, events[0].Type)
}

func TestAsk_QueriesAreNormalizedForRetrieval(t *testing.T) {
	retriever := &fakeRetriever{chunks: testChunks()}
	svc := NewChatService(&fakeExpander{}, retriever, &fakeReranker{},
		&fakeStreamer{deltas: []string{"ok"}}, &fakeMessageLog{}, &fakeConvLog{}, ChatConfig{ContextWindow: 30000})

	var events []ChatEvent
	require.NoError(t, svc.Ask(context.Background(), "u1", "", "Qu'est-ce Que Go?", AskOptions{}, collectEvents(&events)))
	require.Equal(t, []string{"qu est-ce que go?"}, retriever.queries)
}

func TestAsk_EmptyQueryRejected(t *testing.T) {
	svc := NewChatService(&fakeExpander{}, &fakeRetriever{}, &fakeReranker{},
		&fakeStreamer{}, &fakeMessageLog{}, &fakeConvLog{}, ChatConfig{ContextWindow: 30000})
	var events []ChatEvent
	err := svc.Ask(context.Background(), "u1", "", "", AskOptions{}, collectEvents(&events))
	require.ErrorIs(t, err, appErr.ErrInvalid)
	require.Empty(t, events)
}

func TestAsk_NewConversationCreatedWhenMissing(t *testing.T) {
	convs := &fakeConvLog{}
	svc := NewChatService(&fakeExpander{}, &fakeRetriever{chunks: testChunks()}, &fakeReranker{},
		&fakeStreamer{deltas: []string{"ok"}}, &fakeMessageLog{}, convs, ChatConfig{ContextWindow: 30000})

	var events []ChatEvent
	require.NoError(t, svc.Ask(context.Background(), "u1", "", "a question", AskOptions{}, collectEvents(&events)))
	require.Len(t, convs.created, 1)
	require.Equal(t, "a question", convs.created[0].Title)
}
