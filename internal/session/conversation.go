package session

import (
	"time"

	"github.com/samsaffron/relaychat/internal/llm"
)

// DefaultTitle names conversations until a title is generated.
const DefaultTitle = "New Chat"

// Message is one immutable chat message.
type Message struct {
	Role    llm.Role `json:"role"`
	Content string   `json:"content"`
}

// ToLLMMessage converts to the provider-facing message type.
func (m Message) ToLLMMessage() llm.Message {
	return llm.Message{Role: m.Role, Content: m.Content}
}

// Turn is a message with a stable identity inside its conversation.
type Turn struct {
	ID      string  `json:"id"`
	Message Message `json:"message"`
}

// Conversation is the persisted unit of chat history.
// Messages only grow; UpdatedAt strictly increases with every mutation.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Turn    `json:"messages"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Now returns the wall clock in the form conversations store it.
func Now() time.Time {
	return time.Now().UTC().Round(0)
}

// NewConversation returns an empty conversation bound to model.
func NewConversation(model string, now time.Time) Conversation {
	return Conversation{
		ID:        NewID(),
		Title:     DefaultTitle,
		Messages:  []Turn{},
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a copy that shares no turn storage with c.
func (c Conversation) Clone() Conversation {
	out := c
	out.Messages = append([]Turn(nil), c.Messages...)
	if out.Messages == nil {
		out.Messages = []Turn{}
	}
	return out
}

// AppendTurn adds msg as a new turn and advances UpdatedAt.
func (c *Conversation) AppendTurn(msg Message, now time.Time) Turn {
	turn := Turn{ID: NewID(), Message: msg}
	c.Messages = append(c.Messages, turn)
	c.Touch(now)
	return turn
}

// Touch sets UpdatedAt to now, or just past the previous value if the clock has not moved.
func (c *Conversation) Touch(now time.Time) {
	if !now.After(c.UpdatedAt) {
		now = c.UpdatedAt.Add(time.Millisecond)
	}
	c.UpdatedAt = now
}

// History returns the turns as provider messages, in order.
func (c Conversation) History() []llm.Message {
	out := make([]llm.Message, 0, len(c.Messages))
	for _, t := range c.Messages {
		out = append(out, t.Message.ToLLMMessage())
	}
	return out
}

// List is an ordered set of conversations. New ones go first; updates keep position.
type List []Conversation

// Prepend returns the list with conv at the front.
func (l List) Prepend(conv Conversation) List {
	out := make(List, 0, len(l)+1)
	out = append(out, conv)
	return append(out, l...)
}

// Index returns the position of id, or -1.
func (l List) Index(id string) int {
	for i := range l {
		if l[i].ID == id {
			return i
		}
	}
	return -1
}

// Replace swaps in conv at the position of the conversation with the same id.
func (l List) Replace(conv Conversation) bool {
	i := l.Index(conv.ID)
	if i < 0 {
		return false
	}
	l[i] = conv
	return true
}

// Remove returns the list without id.
func (l List) Remove(id string) (List, bool) {
	i := l.Index(id)
	if i < 0 {
		return l, false
	}
	out := make(List, 0, len(l)-1)
	out = append(out, l[:i]...)
	return append(out, l[i+1:]...), true
}
