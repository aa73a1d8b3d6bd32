package relay

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/samsaffron/relaychat/internal/catalog"
	"github.com/samsaffron/relaychat/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, provider llm.Provider, opts Options, token string) *httptest.Server {
	t.Helper()
	h := NewHandler(New(provider, opts), HandlerOptions{Token: token, Logger: zerolog.Nop()})
	srv := httptest.NewServer(h.HTTPHandler())
	t.Cleanup(srv.Close)
	return srv
}

func postChat(t *testing.T, url, body string, trailers bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url+"/api/chat", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if trailers {
		req.Header.Set("TE", "trailers")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error
}

func TestChatStreamsChunks(t *testing.T) {
	provider := llm.NewMockProvider("mock").
		AddTurn(llm.MockTurn{Chunks: []string{"Hello", "", " there"}, Usage: &llm.Usage{InputTokens: 12, OutputTokens: 2}})
	srv := newTestServer(t, provider, Options{}, "")

	resp := postChat(t, srv.URL, `{"messages":[{"role":"user","content":"hi"}]}`, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Hello there", string(body))
	assert.Empty(t, resp.Trailer.Get(TrailerError))
	assert.Equal(t, "12", resp.Trailer.Get(TrailerInputTokens))
	assert.Equal(t, "2", resp.Trailer.Get(TrailerOutputTokens))

	req := provider.LastRequest()
	assert.Equal(t, DefaultModel, req.Model)
	assert.Equal(t, SystemPreamble, req.Messages[0].Content)
}

func TestChatTimeoutBeforeFirstChunk(t *testing.T) {
	provider := llm.NewMockProvider("mock").AddTurn(llm.MockTurn{Text: "late", Delay: time.Second})
	srv := newTestServer(t, provider, Options{Timeout: 50 * time.Millisecond}, "")

	resp := postChat(t, srv.URL, `{"messages":[]}`, false)
	assert.Equal(t, http.StatusRequestTimeout, resp.StatusCode)
	assert.Equal(t, "Request timeout", decodeError(t, resp))
}

func TestChatUpstreamFailureBeforeFirstChunk(t *testing.T) {
	provider := llm.NewMockProvider("mock").AddError(errors.New("invalid api key"))
	srv := newTestServer(t, provider, Options{}, "")

	resp := postChat(t, srv.URL, `{"messages":[]}`, false)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Internal server error", decodeError(t, resp))
}

func TestChatMalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `{"messages":`},
		{name: "missing messages", body: `{"model":"gemma2-9b-it"}`},
		{name: "bad role", body: `{"messages":[{"role":"tool","content":"x"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := llm.NewMockProvider("mock")
			srv := newTestServer(t, provider, Options{}, "")

			resp := postChat(t, srv.URL, tt.body, false)
			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
			assert.Equal(t, "Internal server error", decodeError(t, resp))
			assert.Zero(t, provider.RequestCount())
		})
	}
}

func TestChatMidStreamFailureTrailer(t *testing.T) {
	tests := []struct {
		name string
		turn llm.MockTurn
		opts Options
		want string
	}{
		{
			name: "upstream",
			turn: llm.MockTurn{Chunks: []string{"a", "b"}, Error: errors.New("reset"), ErrorAfter: true},
			want: CodeUpstream,
		},
		{
			name: "timeout",
			turn: llm.MockTurn{Chunks: []string{"a", "b", "c"}, ChunkDelay: 40 * time.Millisecond},
			opts: Options{Timeout: 100 * time.Millisecond},
			want: CodeTimeout,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := llm.NewMockProvider("mock").AddTurn(tt.turn)
			srv := newTestServer(t, provider, tt.opts, "")

			start := time.Now()
			resp := postChat(t, srv.URL, `{"messages":[]}`, true)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, "ab", string(body))
			assert.Equal(t, tt.want, resp.Trailer.Get(TrailerError))
			assert.Less(t, time.Since(start), time.Second)
		})
	}
}

func TestChatMidStreamFailureWithoutTrailersAborts(t *testing.T) {
	provider := llm.NewMockProvider("mock").
		AddTurn(llm.MockTurn{Chunks: []string{"partial"}, Error: errors.New("reset"), ErrorAfter: true})
	srv := newTestServer(t, provider, Options{}, "")

	resp := postChat(t, srv.URL, `{"messages":[]}`, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	assert.Error(t, err)
	assert.Equal(t, "partial", string(body))
}

func TestChatMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, llm.NewMockProvider("mock"), Options{}, "")

	resp, err := http.Get(srv.URL + "/api/chat")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, http.MethodPost, resp.Header.Get("Allow"))
}

func TestModelsAndHealth(t *testing.T) {
	srv := newTestServer(t, llm.NewMockProvider("mock"), Options{DefaultModel: "gemma2-9b-it"}, "")

	resp, err := http.Get(srv.URL + "/api/models")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Models  []catalog.ModelDescriptor `json:"models"`
		Default string                    `json:"default"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, catalog.Builtin, body.Models)
	assert.Equal(t, "gemma2-9b-it", body.Default)

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestModelsUnknownDefaultFallsBackToCatalog(t *testing.T) {
	srv := newTestServer(t, llm.NewMockProvider("mock"), Options{DefaultModel: "custom-model"}, "")

	resp, err := http.Get(srv.URL + "/api/models")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body ModelsBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, catalog.Builtin[0].ID, body.Default)
}

func TestBearerToken(t *testing.T) {
	provider := llm.NewMockProvider("mock").AddTextResponse("ok")
	srv := newTestServer(t, provider, Options{}, "s3cret")

	resp := postChat(t, srv.URL, `{"messages":[]}`, false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/chat", strings.NewReader(`{"messages":[]}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer s3cret")
	authed, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer authed.Body.Close()
	body, err := io.ReadAll(authed.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestWebSocketCalls(t *testing.T) {
	provider := llm.NewMockProvider("mock").
		AddTurn(llm.MockTurn{Chunks: []string{"Hi", "", "!"}, Usage: &llm.Usage{InputTokens: 4, OutputTokens: 2}}).
		AddError(errors.New("boom"))
	srv := newTestServer(t, provider, Options{}, "")

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	call := Frame{Type: FrameChat, Messages: []llm.Message{llm.UserText("hello")}, Model: "gemma2-9b-it"}
	require.NoError(t, conn.WriteJSON(call))

	var frames []Frame
	for {
		var f Frame
		require.NoError(t, conn.ReadJSON(&f))
		frames = append(frames, f)
		if f.Type == FrameDone || f.Type == FrameError {
			break
		}
	}
	require.Len(t, frames, 3)
	assert.Equal(t, Frame{Type: FrameChunk, Text: "Hi"}, frames[0])
	assert.Equal(t, Frame{Type: FrameChunk, Text: "!"}, frames[1])
	assert.Equal(t, FrameDone, frames[2].Type)
	require.NotNil(t, frames[2].Usage)
	assert.Equal(t, 2, frames[2].Usage.OutputTokens)
	assert.Equal(t, "gemma2-9b-it", provider.LastRequest().Model)

	// Second call on the same connection fails before any chunk.
	require.NoError(t, conn.WriteJSON(call))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, FrameError, f.Type)
	assert.Equal(t, CodeUpstream, f.Code)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)))
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, CodeMalformed, f.Code)
}

func TestWebSocketEmptyMessagesMatchesHTTP(t *testing.T) {
	provider := llm.NewMockProvider("mock").
		AddTextResponse("hello").
		AddTextResponse("hello")
	srv := newTestServer(t, provider, Options{}, "")

	resp, err := http.Post(srv.URL+"/api/chat", "application/json", strings.NewReader(`{"messages":[]}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Frame{Type: FrameChat, Messages: []llm.Message{}}))
	var f Frame
	for f.Type != FrameDone && f.Type != FrameError {
		require.NoError(t, conn.ReadJSON(&f))
	}
	assert.Equal(t, FrameDone, f.Type)
	assert.Empty(t, f.Code)

	// A chat frame without a messages field is still malformed.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat"}`)))
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, FrameError, f.Type)
	assert.Equal(t, CodeMalformed, f.Code)
}
