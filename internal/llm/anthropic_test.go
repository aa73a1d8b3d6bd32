package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem([]Message{
		SystemText("You are a helpful assistant."),
		SystemText("Only return the title."),
		UserText("hi"),
	})
	assert.Equal(t, "You are a helpful assistant.\n\nOnly return the title.", system)
	assert.Equal(t, []Message{UserText("hi")}, rest)
}

func TestBuildAnthropicMessagesMergesRepeatedRoles(t *testing.T) {
	out := buildAnthropicMessages([]Message{
		UserText("one"),
		UserText("two"),
		AssistantText("three"),
		UserText("four"),
	})
	require.Len(t, out, 3)
	assert.Len(t, out[0].Content, 2)
	assert.Equal(t, "assistant", string(out[1].Role))
	assert.Equal(t, "user", string(out[2].Role))
}
