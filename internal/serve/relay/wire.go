package relay

import "github.com/samsaffron/relaychat/internal/llm"

// HTTP trailers carried by a streamed /api/chat response.
const (
	TrailerError        = "X-Relay-Error"
	TrailerInputTokens  = "X-Relay-Input-Tokens"
	TrailerOutputTokens = "X-Relay-Output-Tokens"
)

// Frame types exchanged on /api/chat/ws.
const (
	FrameChat  = "chat"
	FrameChunk = "chunk"
	FrameDone  = "done"
	FrameError = "error"
)

// Frame is the JSON envelope for every WebSocket message in either direction.
type Frame struct {
	Type string `json:"type"`

	// chat
	Messages []llm.Message `json:"messages"`
	Model    string        `json:"model,omitempty"`

	// chunk
	Text string `json:"text,omitempty"`

	// done
	Usage *llm.Usage `json:"usage,omitempty"`

	// error
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorBody is the JSON body of a non-streamed failure.
type ErrorBody struct {
	Error string `json:"error"`
}

// ModelsBody is the response of GET /api/models.
type ModelsBody struct {
	Models  any    `json:"models"`
	Default string `json:"default"`
}
