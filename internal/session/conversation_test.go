package session

import (
	"testing"
	"time"

	"github.com/samsaffron/relaychat/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConversation(t *testing.T) {
	now := Now()
	c := NewConversation("gemma2-9b-it", now)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, DefaultTitle, c.Title)
	assert.Equal(t, "gemma2-9b-it", c.Model)
	assert.Empty(t, c.Messages)
	assert.NotNil(t, c.Messages)
	assert.Equal(t, now, c.CreatedAt)
	assert.Equal(t, now, c.UpdatedAt)
}

func TestAppendTurnAdvancesUpdatedAt(t *testing.T) {
	now := Now()
	c := NewConversation("m", now)

	// Same instant twice: UpdatedAt must still move forward.
	first := c.AppendTurn(Message{Role: llm.RoleUser, Content: "hi"}, now)
	afterFirst := c.UpdatedAt
	second := c.AppendTurn(Message{Role: llm.RoleAssistant, Content: "hello"}, now)

	assert.True(t, afterFirst.After(now))
	assert.True(t, c.UpdatedAt.After(afterFirst))
	assert.NotEqual(t, first.ID, second.ID)
	require.Len(t, c.Messages, 2)
	assert.Equal(t, []llm.Message{llm.UserText("hi"), llm.AssistantText("hello")}, c.History())

	later := now.Add(time.Hour)
	c.Touch(later)
	assert.Equal(t, later, c.UpdatedAt)
}

func TestCloneIsIndependent(t *testing.T) {
	c := NewConversation("m", Now())
	c.AppendTurn(Message{Role: llm.RoleUser, Content: "a"}, Now())
	cp := c.Clone()
	cp.AppendTurn(Message{Role: llm.RoleAssistant, Content: "b"}, Now())
	cp.Messages[0].Message.Content = "changed"

	assert.Len(t, c.Messages, 1)
	assert.Equal(t, "a", c.Messages[0].Message.Content)
}

func TestListOrdering(t *testing.T) {
	a := NewConversation("m", Now())
	b := NewConversation("m", Now())
	c := NewConversation("m", Now())

	var l List
	l = l.Prepend(a)
	l = l.Prepend(b)
	l = l.Prepend(c)
	require.Len(t, l, 3)
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, []string{l[0].ID, l[1].ID, l[2].ID})

	a.Title = "Updated"
	require.True(t, l.Replace(a))
	assert.Equal(t, a.ID, l[2].ID, "update keeps position")
	assert.Equal(t, "Updated", l[2].Title)

	assert.False(t, l.Replace(NewConversation("m", Now())))

	l, ok := l.Remove(b.ID)
	require.True(t, ok)
	assert.Equal(t, -1, l.Index(b.ID))
	assert.Len(t, l, 2)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "3f2b9c1e", ShortID("3f2b9c1e-8d4a-4f6e-9b7a-2c1d0e5f6a7b"))
	assert.Equal(t, "12345678", ShortID("1234567890"))
	assert.Equal(t, "abc", ShortID("abc"))
}
