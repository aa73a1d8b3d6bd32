package llm

import "context"

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a role the relay forwards upstream.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is a single plain-text chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func SystemText(text string) Message    { return Message{Role: RoleSystem, Content: text} }
func UserText(text string) Message      { return Message{Role: RoleUser, Content: text} }
func AssistantText(text string) Message { return Message{Role: RoleAssistant, Content: text} }

// Request is a provider-agnostic streaming completion request.
type Request struct {
	Model           string
	Messages        []Message
	Temperature     float64
	MaxOutputTokens int
}

// EventType tags an Event emitted by a Stream.
type EventType string

const (
	EventTextDelta EventType = "text_delta"
	EventUsage     EventType = "usage"
	EventDone      EventType = "done"
	EventError     EventType = "error"
)

// Usage reports token accounting for one completion.
type Usage struct {
	InputTokens  int `json:"input"`
	OutputTokens int `json:"output"`
}

// Event is one item of a provider stream.
type Event struct {
	Type EventType
	Text string
	Use  *Usage
	Err  error
}

// Stream yields events until io.EOF. Close releases the upstream call.
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// Provider is an upstream completion service.
type Provider interface {
	Name() string
	Stream(ctx context.Context, req Request) (Stream, error)
}
