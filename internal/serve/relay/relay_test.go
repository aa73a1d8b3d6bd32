package relay

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/samsaffron/relaychat/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, s *Stream) ([]string, error) {
	t.Helper()
	var chunks []string
	for {
		chunk, err := s.Next()
		if err == io.EOF {
			return chunks, nil
		}
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, chunk)
	}
}

func TestOpenAppliesPreambleAndDefaults(t *testing.T) {
	provider := llm.NewMockProvider("mock").AddTextResponse("ok")
	r := New(provider, Options{})

	s, err := r.Open(context.Background(), ChatRequest{Messages: []llm.Message{llm.UserText("hi")}})
	require.NoError(t, err)
	defer s.Close()
	_, err = drain(t, s)
	require.NoError(t, err)

	req := provider.LastRequest()
	assert.Equal(t, DefaultModel, req.Model)
	assert.Equal(t, 0.7, req.Temperature)
	assert.Equal(t, 1000, req.MaxOutputTokens)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.SystemText(SystemPreamble), req.Messages[0])
	assert.Equal(t, llm.UserText("hi"), req.Messages[1])
}

func TestOpenUsesRequestedModel(t *testing.T) {
	provider := llm.NewMockProvider("mock").AddTextResponse("ok")
	r := New(provider, Options{DefaultModel: "gemma2-9b-it"})

	s, err := r.Open(context.Background(), ChatRequest{Messages: []llm.Message{llm.UserText("hi")}, Model: "llama3-70b-8192"})
	require.NoError(t, err)
	s.Close()
	assert.Equal(t, "llama3-70b-8192", provider.LastRequest().Model)
	assert.Equal(t, "gemma2-9b-it", r.DefaultModel())
}

func TestStreamPreservesOrderAndSkipsEmptyDeltas(t *testing.T) {
	provider := llm.NewMockProvider("mock").
		AddTurn(llm.MockTurn{Chunks: []string{"", "Hel", "", "lo", " world", ""}, Usage: &llm.Usage{InputTokens: 7, OutputTokens: 3}})
	r := New(provider, Options{})

	s, err := r.Open(context.Background(), ChatRequest{Messages: []llm.Message{}})
	require.NoError(t, err)
	defer s.Close()

	chunks, err := drain(t, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo", " world"}, chunks)
	assert.Equal(t, 3, s.Chunks())
	require.NotNil(t, s.Usage())
	assert.Equal(t, 7, s.Usage().InputTokens)
}

func TestOpenEmptyUpstream(t *testing.T) {
	provider := llm.NewMockProvider("mock").AddChunks()
	s, err := New(provider, Options{}).Open(context.Background(), ChatRequest{Messages: []llm.Message{}})
	require.NoError(t, err)
	defer s.Close()

	chunks, err := drain(t, s)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestOpenFailures(t *testing.T) {
	tests := []struct {
		name string
		turn llm.MockTurn
		want error
	}{
		{
			name: "start error",
			turn: llm.MockTurn{StartError: errors.New("connection refused")},
			want: ErrUpstreamFailure,
		},
		{
			name: "error before first chunk",
			turn: llm.MockTurn{Error: errors.New("401 unauthorized")},
			want: ErrUpstreamFailure,
		},
		{
			name: "timeout before first chunk",
			turn: llm.MockTurn{Text: "late", Delay: time.Second},
			want: ErrUpstreamTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := llm.NewMockProvider("mock").AddTurn(tt.turn)
			r := New(provider, Options{Timeout: 50 * time.Millisecond})

			start := time.Now()
			_, err := r.Open(context.Background(), ChatRequest{Messages: []llm.Message{llm.UserText("x")}})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Less(t, time.Since(start), 900*time.Millisecond)
		})
	}
}

func TestStreamMidResponseFailures(t *testing.T) {
	t.Run("upstream error", func(t *testing.T) {
		provider := llm.NewMockProvider("mock").
			AddTurn(llm.MockTurn{Chunks: []string{"a", "b"}, Error: errors.New("reset"), ErrorAfter: true})
		s, err := New(provider, Options{}).Open(context.Background(), ChatRequest{Messages: []llm.Message{}})
		require.NoError(t, err)
		defer s.Close()

		chunks, err := drain(t, s)
		assert.Equal(t, []string{"a", "b"}, chunks)
		assert.ErrorIs(t, err, ErrUpstreamFailure)
		assert.Equal(t, CodeUpstream, Code(err))
	})

	t.Run("timeout", func(t *testing.T) {
		provider := llm.NewMockProvider("mock").
			AddTurn(llm.MockTurn{Chunks: []string{"a", "b", "c"}, ChunkDelay: 40 * time.Millisecond})
		s, err := New(provider, Options{Timeout: 100 * time.Millisecond}).Open(context.Background(), ChatRequest{Messages: []llm.Message{}})
		require.NoError(t, err)
		defer s.Close()

		chunks, err := drain(t, s)
		assert.Equal(t, []string{"a", "b"}, chunks)
		assert.ErrorIs(t, err, ErrUpstreamTimeout)
		assert.Equal(t, CodeTimeout, Code(err))
	})
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, ChatRequest{}.Validate(), ErrMalformedRequest)
	assert.ErrorIs(t, ChatRequest{Messages: []llm.Message{{Role: "tool", Content: "x"}}}.Validate(), ErrMalformedRequest)
	assert.NoError(t, ChatRequest{Messages: []llm.Message{llm.SystemText("s"), llm.UserText("u"), llm.AssistantText("a")}}.Validate())
	assert.Equal(t, CodeMalformed, Code(ChatRequest{}.Validate()))
}
